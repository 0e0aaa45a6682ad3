// Package handlers exposes the payment service over HTTP. Requests are
// form encoded; responses are JSON.
package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/schema"
	"github.com/samuel/go-metrics/metrics"
	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/cards"
	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/dal"
	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/gateway"
	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/guard"
	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/payment"
	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/vault"
	"github.com/sprucehealth/payflow/libs/errors"
	"github.com/sprucehealth/payflow/libs/httputil"
)

// Guard action names.
const (
	ActionCheckout       = "checkout"
	ActionManageCards    = "manage_cards"
	ActionConnectionTest = "connection_test"
)

var formDecoder = schema.NewDecoder()

func init() {
	formDecoder.IgnoreUnknownKeys(true)
}

type checkoutHandler struct {
	g             *guard.Guard
	gw            gateway.Gateway
	processor     *payment.Processor
	vault         *vault.Manager
	statAttempted *metrics.Counter
	statSucceeded *metrics.Counter
	statDeclined  *metrics.Counter
	statBlocked   *metrics.Counter
}

// NewCheckout returns the handler for POST /checkout: guard, tokenize,
// authorize, and optionally vault the card.
func NewCheckout(g *guard.Guard, gw gateway.Gateway, processor *payment.Processor, vaultMgr *vault.Manager, metricsRegistry metrics.Registry) httputil.ContextHandler {
	h := &checkoutHandler{
		g:             g,
		gw:            gw,
		processor:     processor,
		vault:         vaultMgr,
		statAttempted: metrics.NewCounter(),
		statSucceeded: metrics.NewCounter(),
		statDeclined:  metrics.NewCounter(),
		statBlocked:   metrics.NewCounter(),
	}
	metricsRegistry.Add("checkout.attempted", h.statAttempted)
	metricsRegistry.Add("checkout.succeeded", h.statSucceeded)
	metricsRegistry.Add("checkout.declined", h.statDeclined)
	metricsRegistry.Add("checkout.blocked", h.statBlocked)
	return httputil.SupportedMethods(h, httputil.Post)
}

func (h *checkoutHandler) ServeHTTP(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	h.statAttempted.Inc(1)
	if err := r.ParseForm(); err != nil {
		writeBadRequest(w, "Unable to parse request parameters.")
		return
	}
	rd := &checkoutPOSTRequest{}
	if err := formDecoder.Decode(rd, r.Form); err != nil {
		writeBadRequest(w, "Unable to parse request parameters.")
		return
	}

	if err := h.g.Verify(ctx, guardParams(ctx, r, rd.Nonce), ActionCheckout, ""); err != nil {
		h.statBlocked.Inc(1)
		writeError(ctx, w, err)
		return
	}

	// Amount and currency validation come before tokenization so a request
	// that can only be rejected never sends card data to the processor.
	amount, err := payment.ParseAmount(rd.Amount, rd.Currency)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	preq := &payment.Request{
		Amount:   amount,
		Currency: rd.Currency,
		OrderRef: rd.OrderRef,
		Billing:  billingDetails(rd),
	}
	if err := h.processor.ValidateRequest(preq); err != nil {
		writeError(ctx, w, err)
		return
	}

	token, err := h.resolveToken(ctx, rd)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	res, err := h.processor.Authorize(ctx, preq, token)
	if err != nil {
		if payment.GatewayErrorOf(err) != nil {
			h.statDeclined.Inc(1)
		}
		writeError(ctx, w, err)
		return
	}
	h.statSucceeded.Inc(1)

	// Vaulting is strictly after a completed payment and can never fail
	// the request.
	acc := AccountFromContext(ctx)
	if rd.SaveCard && acc != nil && token.Kind == gateway.TokenKindSingleUse {
		h.vault.SaveCard(ctx, &vault.User{
			ID:    acc.ID,
			Email: acc.Email,
			Name:  acc.Name,
		}, token)
	}

	httputil.JSONResponse(w, http.StatusOK, &checkoutPOSTResponse{
		Success:       true,
		Message:       "Payment completed.",
		TransactionID: res.TransactionID,
		AuthCode:      res.AuthCode,
		Brand:         token.Brand,
		Last4:         token.Last4,
	})
}

// resolveToken produces the card token for the request: either a fresh
// single use token minted from raw card fields, or the permanent token of
// one of the caller's vaulted cards.
func (h *checkoutHandler) resolveToken(ctx context.Context, rd *checkoutPOSTRequest) (*cards.Token, error) {
	if rd.CardID == 0 {
		return cards.Tokenize(ctx, h.gw, &cards.Input{
			Number:   rd.CardNumber,
			ExpMonth: rd.ExpMonth,
			ExpYear:  rd.ExpYear,
			CVV:      rd.CVV,
			Name:     rd.NameOnCard,
		})
	}
	acc := AccountFromContext(ctx)
	if acc == nil {
		return nil, errors.Trace(&cards.Error{
			Code:    cards.ErrCodeMissingCardFields,
			Message: "Sign in to pay with a saved card, or enter the card details.",
		})
	}
	saved, err := h.vault.Card(ctx, acc.ID, rd.CardID)
	if errors.Cause(err) == dal.ErrNotFound {
		return nil, errors.Trace(&cards.Error{
			Code:    cards.ErrCodeMissingCardFields,
			Message: "The selected card could not be found.",
		})
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return cards.TokenFromValue(saved.PaymentToken, saved.Brand, saved.Last4), nil
}

func billingDetails(rd *checkoutPOSTRequest) *gateway.BillingDetails {
	if rd.NameOnCard == "" && rd.Address1 == "" && rd.City == "" && rd.PostalCode == "" {
		return nil
	}
	return &gateway.BillingDetails{
		Name:       rd.NameOnCard,
		Address1:   rd.Address1,
		Address2:   rd.Address2,
		City:       rd.City,
		State:      rd.State,
		PostalCode: rd.PostalCode,
		Country:    rd.Country,
	}
}
