package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/samuel/go-metrics/metrics"
	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/dal"
	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/gateway"
	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/guard"
	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/payment"
	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/testutil"
	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/vault"
	"github.com/sprucehealth/payflow/libs/httputil"
	"github.com/sprucehealth/payflow/libs/sig"
	"github.com/sprucehealth/payflow/libs/test"
	"github.com/sprucehealth/payflow/libs/testhelpers/mock"
)

type checkoutTestEnv struct {
	h      httputil.ContextHandler
	gw     *testutil.MockGateway
	d      *testutil.MockDAL
	nonces *guard.Nonces
}

func newCheckoutTestEnv(t *testing.T) *checkoutTestEnv {
	signer, err := sig.NewSigner([][]byte{[]byte("test-key")}, nil)
	test.OK(t, err)
	nonces := guard.NewNonces(signer, nil)
	g := guard.New(&guard.Config{
		Nonces:     nonces,
		UsedNonces: guard.NewMemoryNonceStore(nil),
	})
	gw := testutil.NewMockGateway(t)
	d := testutil.NewMockDAL(t)
	processor := payment.NewProcessor(gw, map[string]string{"USD": "acct_us"}, payment.NewNormalizer(nil, ""))
	vaultMgr := vault.New(gw, d)
	return &checkoutTestEnv{
		h:      NewCheckout(g, gw, processor, vaultMgr, metrics.NewRegistry()),
		gw:     gw,
		d:      d,
		nonces: nonces,
	}
}

func (e *checkoutTestEnv) post(ctx context.Context, form url.Values) *httptest.ResponseRecorder {
	r := httptest.NewRequest("POST", "/checkout", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.RemoteAddr = "203.0.113.7:52100"
	w := httptest.NewRecorder()
	e.h.ServeHTTP(ctx, w, r)
	return w
}

func (e *checkoutTestEnv) checkoutForm(t *testing.T) url.Values {
	nonce, err := e.nonces.Issue(ActionCheckout, time.Minute)
	test.OK(t, err)
	return url.Values{
		"nonce":       []string{nonce},
		"amount":      []string{"12.50"},
		"currency":    []string{"USD"},
		"card_number": []string{"4111111111111111"},
		"exp_month":   []string{"12"},
		"exp_year":    []string{"2030"},
		"cvv":         []string{"123"},
	}
}

func TestCheckoutSuccess(t *testing.T) {
	e := newCheckoutTestEnv(t)
	defer mock.FinishAll(e.gw, e.d)

	e.gw.Expect(mock.NewExpectation(e.gw.CreateSingleUseToken, &gateway.CardFields{
		Number:   "4111111111111111",
		ExpMonth: 12,
		ExpYear:  2030,
		CVV:      "123",
	}).WithReturns("tok_su", nil))
	e.gw.Expect(mock.NewExpectation(e.gw.Authorize, "acct_us", &gateway.AuthorizationParams{
		Amount:    1250,
		Currency:  "USD",
		Token:     "tok_su",
		TokenKind: gateway.TokenKindSingleUse,
	}).WithReturns(&gateway.Authorization{ID: "auth_1", Status: gateway.StatusCompleted, AuthCode: "A1"}, nil))

	w := e.post(context.Background(), e.checkoutForm(t))
	test.HTTPResponseCode(t, http.StatusOK, w)
	var res checkoutPOSTResponse
	test.OK(t, json.Unmarshal(w.Body.Bytes(), &res))
	test.Equals(t, true, res.Success)
	test.Equals(t, "auth_1", res.TransactionID)
	test.Equals(t, "A1", res.AuthCode)
	test.Equals(t, "visa", res.Brand)
	test.Equals(t, "1111", res.Last4)
}

func TestCheckoutMissingNonce(t *testing.T) {
	e := newCheckoutTestEnv(t)
	defer mock.FinishAll(e.gw, e.d)

	form := e.checkoutForm(t)
	form.Del("nonce")
	w := e.post(context.Background(), form)
	test.HTTPResponseCode(t, http.StatusForbidden, w)
	var res errorResponse
	test.OK(t, json.Unmarshal(w.Body.Bytes(), &res))
	test.Equals(t, errTypeSecurity, res.Error.Type)
	test.Equals(t, guard.ErrCodeMissingNonce, res.Error.Code)
	test.Equals(t, 0, e.gw.CallCount())
}

func TestCheckoutReplayedNonceRejected(t *testing.T) {
	e := newCheckoutTestEnv(t)
	defer mock.FinishAll(e.gw, e.d)

	e.gw.Expect(mock.NewExpectation(e.gw.CreateSingleUseToken, &gateway.CardFields{
		Number:   "4111111111111111",
		ExpMonth: 12,
		ExpYear:  2030,
		CVV:      "123",
	}).WithReturns("tok_su", nil))
	e.gw.Expect(mock.NewExpectation(e.gw.Authorize, "acct_us", &gateway.AuthorizationParams{
		Amount:    1250,
		Currency:  "USD",
		Token:     "tok_su",
		TokenKind: gateway.TokenKindSingleUse,
	}).WithReturns(&gateway.Authorization{ID: "auth_1", Status: gateway.StatusCompleted}, nil))

	form := e.checkoutForm(t)
	w := e.post(context.Background(), form)
	test.HTTPResponseCode(t, http.StatusOK, w)

	// Same form again: the nonce was consumed by the first request.
	w = e.post(context.Background(), form)
	test.HTTPResponseCode(t, http.StatusForbidden, w)
	var res errorResponse
	test.OK(t, json.Unmarshal(w.Body.Bytes(), &res))
	test.Equals(t, guard.ErrCodeNonceAlreadyUsed, res.Error.Code)
}

func TestCheckoutInvalidAmount(t *testing.T) {
	e := newCheckoutTestEnv(t)
	defer mock.FinishAll(e.gw, e.d)

	form := e.checkoutForm(t)
	form.Set("amount", "0")
	w := e.post(context.Background(), form)
	test.HTTPResponseCode(t, http.StatusBadRequest, w)
	var res errorResponse
	test.OK(t, json.Unmarshal(w.Body.Bytes(), &res))
	test.Equals(t, payment.ErrCodeInvalidAmount, res.Error.Code)
	// Amount validation comes before tokenization, so the card data never
	// reaches the processor.
	test.Equals(t, 0, e.gw.CallCount())
}

func TestCheckoutUnknownCurrency(t *testing.T) {
	e := newCheckoutTestEnv(t)
	defer mock.FinishAll(e.gw, e.d)

	form := e.checkoutForm(t)
	form.Set("currency", "EUR")
	w := e.post(context.Background(), form)
	test.HTTPResponseCode(t, http.StatusBadRequest, w)
	var res errorResponse
	test.OK(t, json.Unmarshal(w.Body.Bytes(), &res))
	test.Equals(t, payment.ErrCodeNoAccountForCurrency, res.Error.Code)
	test.Assert(t, strings.Contains(res.Error.Message, "EUR"), "message should name the currency: %q", res.Error.Message)
	test.Equals(t, 0, e.gw.CallCount())
}

func TestCheckoutDeclined(t *testing.T) {
	e := newCheckoutTestEnv(t)
	defer mock.FinishAll(e.gw, e.d)

	e.gw.Expect(mock.NewExpectation(e.gw.CreateSingleUseToken, &gateway.CardFields{
		Number:   "4111111111111111",
		ExpMonth: 12,
		ExpYear:  2030,
		CVV:      "123",
	}).WithReturns("tok_su", nil))
	e.gw.Expect(mock.NewExpectation(e.gw.Authorize, "acct_us", &gateway.AuthorizationParams{
		Amount:    1250,
		Currency:  "USD",
		Token:     "tok_su",
		TokenKind: gateway.TokenKindSingleUse,
	}).WithReturns(&gateway.Authorization{Status: gateway.StatusFailed, ErrorCode: "3005", ErrorMessage: "Transaction failed the AVS check"}, nil))
	e.gw.Expect(mock.NewExpectation(e.gw.Authorize, "acct_us", &gateway.AuthorizationParams{
		Amount:    1250,
		Currency:  "USD",
		Token:     "tok_su",
		TokenKind: gateway.TokenKindPermanent,
	}).WithReturns(&gateway.Authorization{Status: gateway.StatusFailed, ErrorCode: "3005", ErrorMessage: "Transaction failed the AVS check"}, nil))

	w := e.post(context.Background(), e.checkoutForm(t))
	test.HTTPResponseCode(t, http.StatusPaymentRequired, w)
	var res errorResponse
	test.OK(t, json.Unmarshal(w.Body.Bytes(), &res))
	test.Equals(t, errTypeGateway, res.Error.Type)
	test.Equals(t, payment.CategoryAVSFailed, res.Error.Category)
}

func TestCheckoutSavesCard(t *testing.T) {
	e := newCheckoutTestEnv(t)
	defer mock.FinishAll(e.gw, e.d)

	e.gw.Expect(mock.NewExpectation(e.gw.CreateSingleUseToken, &gateway.CardFields{
		Number:   "4111111111111111",
		ExpMonth: 12,
		ExpYear:  2030,
		CVV:      "123",
	}).WithReturns("tok_su", nil))
	e.gw.Expect(mock.NewExpectation(e.gw.Authorize, "acct_us", &gateway.AuthorizationParams{
		Amount:    1250,
		Currency:  "USD",
		Token:     "tok_su",
		TokenKind: gateway.TokenKindSingleUse,
	}).WithReturns(&gateway.Authorization{ID: "auth_1", Status: gateway.StatusCompleted}, nil))
	e.d.Expect(mock.NewExpectation(e.d.ProfileForUser, "user_1").WithReturns((*dal.Profile)(nil), dal.ErrNotFound))
	e.gw.Expect(mock.NewExpectation(e.gw.CreateCustomerProfile, &gateway.ProfileParams{
		UserRef:     "user_1",
		Email:       "pat@example.com",
		Description: "Pat Example",
	}).WithReturns(&gateway.Profile{ID: "prof_1"}, nil))
	e.d.Expect(mock.NewExpectation(e.d.UpsertProfile, "user_1", "prof_1"))
	e.d.Expect(mock.NewExpectation(e.d.ProfileForUser, "user_1").WithReturns(&dal.Profile{UserID: "user_1", ProfileID: "prof_1"}, nil))
	e.gw.Expect(mock.NewExpectation(e.gw.ConvertTokenToCard, "prof_1", "tok_su").WithReturns(&gateway.Card{
		ID:           "card_1",
		PaymentToken: "tok_perm",
		Brand:        "visa",
		Last4:        "1111",
	}, nil))
	e.d.Expect(mock.NewExpectation(e.d.InsertCard, &dal.Card{
		UserID:       "user_1",
		ProfileID:    "prof_1",
		CardID:       "card_1",
		PaymentToken: "tok_perm",
		Brand:        "visa",
		Last4:        "1111",
	}).WithReturns(int64(7), nil))

	ctx := CtxWithAccount(context.Background(), &Account{
		ID:    "user_1",
		Email: "pat@example.com",
		Name:  "Pat Example",
	})
	form := e.checkoutForm(t)
	form.Set("save_card", "true")
	w := e.post(ctx, form)
	test.HTTPResponseCode(t, http.StatusOK, w)
}

func TestCheckoutVaultFailureDoesNotFailPayment(t *testing.T) {
	e := newCheckoutTestEnv(t)
	defer mock.FinishAll(e.gw, e.d)

	e.gw.Expect(mock.NewExpectation(e.gw.CreateSingleUseToken, &gateway.CardFields{
		Number:   "4111111111111111",
		ExpMonth: 12,
		ExpYear:  2030,
		CVV:      "123",
	}).WithReturns("tok_su", nil))
	e.gw.Expect(mock.NewExpectation(e.gw.Authorize, "acct_us", &gateway.AuthorizationParams{
		Amount:    1250,
		Currency:  "USD",
		Token:     "tok_su",
		TokenKind: gateway.TokenKindSingleUse,
	}).WithReturns(&gateway.Authorization{ID: "auth_1", Status: gateway.StatusCompleted}, nil))
	e.d.Expect(mock.NewExpectation(e.d.ProfileForUser, "user_1").WithReturns((*dal.Profile)(nil), dal.ErrNotFound))
	e.gw.Expect(mock.NewExpectation(e.gw.CreateCustomerProfile, &gateway.ProfileParams{
		UserRef:     "user_1",
		Email:       "pat@example.com",
		Description: "Pat Example",
	}).WithReturns((*gateway.Profile)(nil), &gateway.Error{Message: "processor unavailable", StatusCode: 503}))

	ctx := CtxWithAccount(context.Background(), &Account{
		ID:    "user_1",
		Email: "pat@example.com",
		Name:  "Pat Example",
	})
	form := e.checkoutForm(t)
	form.Set("save_card", "true")
	w := e.post(ctx, form)
	// The payment still reports success.
	test.HTTPResponseCode(t, http.StatusOK, w)
	var res checkoutPOSTResponse
	test.OK(t, json.Unmarshal(w.Body.Bytes(), &res))
	test.Equals(t, true, res.Success)
}

func TestCheckoutWithSavedCard(t *testing.T) {
	e := newCheckoutTestEnv(t)
	defer mock.FinishAll(e.gw, e.d)

	e.d.Expect(mock.NewExpectation(e.d.Card, "user_1", int64(7)).WithReturns(&dal.Card{
		ID:           7,
		UserID:       "user_1",
		ProfileID:    "prof_1",
		CardID:       "card_1",
		PaymentToken: "tok_perm",
		Brand:        "visa",
		Last4:        "1111",
	}, nil))
	// A stored card authorizes with its permanent token first.
	e.gw.Expect(mock.NewExpectation(e.gw.Authorize, "acct_us", &gateway.AuthorizationParams{
		Amount:    1250,
		Currency:  "USD",
		Token:     "tok_perm",
		TokenKind: gateway.TokenKindPermanent,
	}).WithReturns(&gateway.Authorization{ID: "auth_2", Status: gateway.StatusCompleted}, nil))

	ctx := CtxWithAccount(context.Background(), &Account{ID: "user_1"})
	form := e.checkoutForm(t)
	form.Del("card_number")
	form.Del("exp_month")
	form.Del("exp_year")
	form.Del("cvv")
	form.Set("card_id", "7")
	w := e.post(ctx, form)
	test.HTTPResponseCode(t, http.StatusOK, w)
	var res checkoutPOSTResponse
	test.OK(t, json.Unmarshal(w.Body.Bytes(), &res))
	test.Equals(t, "auth_2", res.TransactionID)
	test.Equals(t, "1111", res.Last4)
}
