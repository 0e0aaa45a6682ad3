package payment

import (
	"context"
	"strings"
	"testing"

	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/cards"
	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/gateway"
	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/testutil"
	"github.com/sprucehealth/payflow/libs/errors"
	"github.com/sprucehealth/payflow/libs/test"
	"github.com/sprucehealth/payflow/libs/testhelpers/mock"
)

var testAccounts = map[string]string{
	"USD": "acct_us",
	"GBP": "acct_uk",
}

func testRequest() *Request {
	return &Request{
		Amount:   1250,
		Currency: "USD",
		OrderRef: "order_1",
	}
}

func singleUseToken() *cards.Token {
	return &cards.Token{
		Value: "tok_su",
		Kind:  gateway.TokenKindSingleUse,
		Brand: cards.BrandVisa,
		Last4: "1111",
	}
}

func authParams(req *Request, kind gateway.TokenKind) *gateway.AuthorizationParams {
	return &gateway.AuthorizationParams{
		Amount:    req.Amount,
		Currency:  req.Currency,
		Token:     "tok_su",
		TokenKind: kind,
		OrderRef:  req.OrderRef,
	}
}

func TestAuthorizeFirstAttemptSucceeds(t *testing.T) {
	gw := testutil.NewMockGateway(t)
	defer gw.Finish()
	p := NewProcessor(gw, testAccounts, NewNormalizer(nil, ""))

	req := testRequest()
	gw.Expect(mock.NewExpectation(gw.Authorize, "acct_us", authParams(req, gateway.TokenKindSingleUse)).WithReturns(
		&gateway.Authorization{ID: "auth_1", Status: gateway.StatusCompleted, AuthCode: "OK123"}, nil))

	res, err := p.Authorize(context.Background(), req, singleUseToken())
	test.OK(t, err)
	test.Equals(t, "auth_1", res.TransactionID)
	test.Equals(t, "OK123", res.AuthCode)
	test.Equals(t, gateway.TokenKindSingleUse, res.UsedTokenKind)
}

func TestAuthorizeFallbackSucceeds(t *testing.T) {
	gw := testutil.NewMockGateway(t)
	defer gw.Finish()
	p := NewProcessor(gw, testAccounts, NewNormalizer(nil, ""))

	req := testRequest()
	gw.Expect(mock.NewExpectation(gw.Authorize, "acct_us", authParams(req, gateway.TokenKindSingleUse)).WithReturns(
		&gateway.Authorization{ID: "auth_1", Status: gateway.StatusFailed, ErrorCode: "1002", ErrorMessage: "Token expired"}, nil))
	gw.Expect(mock.NewExpectation(gw.Authorize, "acct_us", authParams(req, gateway.TokenKindPermanent)).WithReturns(
		&gateway.Authorization{ID: "auth_2", Status: gateway.StatusCompleted, AuthCode: "OK456"}, nil))

	res, err := p.Authorize(context.Background(), req, singleUseToken())
	test.OK(t, err)
	test.Equals(t, "auth_2", res.TransactionID)
	test.Equals(t, gateway.TokenKindPermanent, res.UsedTokenKind)
}

func TestAuthorizeNeverAThirdCall(t *testing.T) {
	gw := testutil.NewMockGateway(t)
	defer gw.Finish()
	p := NewProcessor(gw, testAccounts, NewNormalizer(nil, ""))

	req := testRequest()
	gw.Expect(mock.NewExpectation(gw.Authorize, "acct_us", authParams(req, gateway.TokenKindSingleUse)).WithReturns(
		&gateway.Authorization{Status: gateway.StatusFailed, ErrorCode: "1002", ErrorMessage: "Token expired"}, nil))
	gw.Expect(mock.NewExpectation(gw.Authorize, "acct_us", authParams(req, gateway.TokenKindPermanent)).WithReturns(
		&gateway.Authorization{Status: gateway.StatusFailed, ErrorCode: "2001", ErrorMessage: "Insufficient funds"}, nil))

	_, err := p.Authorize(context.Background(), req, singleUseToken())
	test.Assert(t, err != nil, "expected error")
	// The reported failure is the fallback's, not the first attempt's.
	ge := GatewayErrorOf(err)
	test.Assert(t, ge != nil, "expected a gateway error, got %T", err)
	test.Equals(t, CategoryGeneric, ge.Category)
	test.Equals(t, "Insufficient funds", ge.Message)
	// Finish on the mock asserts both calls happened; CallCount pins that
	// no third was made.
	test.Equals(t, 2, gw.CallCount())
}

func TestAuthorizePendingIsFailure(t *testing.T) {
	gw := testutil.NewMockGateway(t)
	defer gw.Finish()
	p := NewProcessor(gw, testAccounts, NewNormalizer(nil, ""))

	req := testRequest()
	gw.Expect(mock.NewExpectation(gw.Authorize, "acct_us", authParams(req, gateway.TokenKindSingleUse)).WithReturns(
		&gateway.Authorization{ID: "auth_1", Status: gateway.StatusPending}, nil))
	gw.Expect(mock.NewExpectation(gw.Authorize, "acct_us", authParams(req, gateway.TokenKindPermanent)).WithReturns(
		&gateway.Authorization{ID: "auth_2", Status: gateway.StatusPending}, nil))

	_, err := p.Authorize(context.Background(), req, singleUseToken())
	test.Assert(t, err != nil, "expected error")
}

func TestAuthorizePermanentTokenFallsBackToSingleUse(t *testing.T) {
	gw := testutil.NewMockGateway(t)
	defer gw.Finish()
	p := NewProcessor(gw, testAccounts, NewNormalizer(nil, ""))

	req := testRequest()
	permParams := authParams(req, gateway.TokenKindPermanent)
	permParams.Token = "tok_perm"
	suParams := authParams(req, gateway.TokenKindSingleUse)
	suParams.Token = "tok_perm"
	gw.Expect(mock.NewExpectation(gw.Authorize, "acct_us", permParams).WithReturns(
		&gateway.Authorization{Status: gateway.StatusFailed, ErrorCode: "1003"}, nil))
	gw.Expect(mock.NewExpectation(gw.Authorize, "acct_us", suParams).WithReturns(
		&gateway.Authorization{ID: "auth_3", Status: gateway.StatusCompleted}, nil))

	res, err := p.Authorize(context.Background(), req, cards.TokenFromValue("tok_perm", cards.BrandVisa, "1111"))
	test.OK(t, err)
	test.Equals(t, gateway.TokenKindSingleUse, res.UsedTokenKind)
}

func TestAuthorizeNoAccountForCurrency(t *testing.T) {
	gw := testutil.NewMockGateway(t)
	defer gw.Finish()
	p := NewProcessor(gw, testAccounts, NewNormalizer(nil, ""))

	req := testRequest()
	req.Currency = "EUR"
	_, err := p.Authorize(context.Background(), req, singleUseToken())
	test.Equals(t, ErrCodeNoAccountForCurrency, ErrCode(err))
	verr, ok := errors.Cause(err).(*Error)
	test.Assert(t, ok, "expected a validation error, got %T", errors.Cause(err))
	test.Assert(t, strings.Contains(verr.Message, "EUR"), "message should name the currency: %q", verr.Message)
	test.Equals(t, 0, gw.CallCount())
}

func TestAuthorizeInvalidAmount(t *testing.T) {
	gw := testutil.NewMockGateway(t)
	defer gw.Finish()
	p := NewProcessor(gw, testAccounts, NewNormalizer(nil, ""))

	for _, amount := range []int64{0, -100} {
		req := testRequest()
		req.Amount = amount
		_, err := p.Authorize(context.Background(), req, singleUseToken())
		test.Equals(t, ErrCodeInvalidAmount, ErrCode(err))
	}
	test.Equals(t, 0, gw.CallCount())
}

func TestValidateRequest(t *testing.T) {
	gw := testutil.NewMockGateway(t)
	defer gw.Finish()
	p := NewProcessor(gw, testAccounts, NewNormalizer(nil, ""))

	test.OK(t, p.ValidateRequest(testRequest()))

	req := testRequest()
	req.Currency = "EUR"
	test.Equals(t, ErrCodeNoAccountForCurrency, ErrCode(p.ValidateRequest(req)))

	req = testRequest()
	req.Amount = 0
	test.Equals(t, ErrCodeInvalidAmount, ErrCode(p.ValidateRequest(req)))
}
