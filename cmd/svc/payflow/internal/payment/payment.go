// Package payment runs card authorizations against the processor, with
// per-currency account routing, a single fallback retry, and error
// normalization.
package payment

import (
	"context"

	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/cards"
	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/gateway"
	"github.com/sprucehealth/payflow/libs/errors"
	"github.com/sprucehealth/payflow/libs/golog"
)

// Validation error codes.
const (
	ErrCodeInvalidAmount        = "invalid_amount"
	ErrCodeNoAccountForCurrency = "no_account_for_currency"
)

// Error is a request validation failure raised before any processor call.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// ErrCode returns the validation code for err, or "" for other errors.
func ErrCode(err error) string {
	if e, ok := errors.Cause(err).(*Error); ok {
		return e.Code
	}
	return ""
}

// Request is one authorization to run.
type Request struct {
	Amount   int64 // minor units
	Currency string
	OrderRef string
	Billing  *gateway.BillingDetails
}

// Result is a completed authorization.
type Result struct {
	TransactionID string
	AuthCode      string
	// UsedTokenKind is the token representation the processor accepted,
	// which on a fallback success differs from the one submitted first.
	UsedTokenKind gateway.TokenKind
}

// Processor routes authorizations to the right merchant account and
// enforces the retry discipline.
type Processor struct {
	gw gateway.Gateway
	// accounts maps an upper case currency code to the processor account
	// configured for it.
	accounts   map[string]string
	normalizer *Normalizer
}

func NewProcessor(gw gateway.Gateway, accounts map[string]string, normalizer *Normalizer) *Processor {
	return &Processor{
		gw:         gw,
		accounts:   accounts,
		normalizer: normalizer,
	}
}

// ValidateRequest runs the pre-network checks for req: currency account
// routing and amount. Authorize performs the same checks, but callers that
// do other processor work first (such as minting a token) should call this
// before any of it so an invalid request never reaches the gateway.
func (p *Processor) ValidateRequest(req *Request) error {
	if _, ok := p.accounts[req.Currency]; !ok {
		return errors.Trace(&Error{
			Code:    ErrCodeNoAccountForCurrency,
			Message: "No payment account is configured for currency " + req.Currency + ".",
		})
	}
	if req.Amount <= 0 {
		return errors.Trace(&Error{
			Code:    ErrCodeInvalidAmount,
			Message: "The amount must be a positive number.",
		})
	}
	return nil
}

// Authorize submits req with token. The first attempt uses the token's own
// representation; if the processor rejects it for any reason, exactly one
// more attempt is made with the alternate representation. There is never a
// third call. Only a COMPLETED status counts as success; anything else is
// normalized into a GatewayError.
func (p *Processor) Authorize(ctx context.Context, req *Request, token *cards.Token) (*Result, error) {
	if err := p.ValidateRequest(req); err != nil {
		return nil, errors.Trace(err)
	}
	account := p.accounts[req.Currency]

	kind := token.Kind
	if kind == "" {
		kind = gateway.TokenKindSingleUse
	}
	res, rawCode, rawMessage := p.attempt(ctx, account, req, token.Value, kind)
	if res != nil {
		return res, nil
	}

	golog.Context(
		"currency", req.Currency,
		"token_kind", string(kind),
	).Infof("payment: first attempt failed (%s), retrying with alternate token representation", rawCode)
	res, rawCode, rawMessage = p.attempt(ctx, account, req, token.Value, alternateKind(kind))
	if res != nil {
		return res, nil
	}
	return nil, errors.Trace(p.normalizer.Normalize(rawCode, rawMessage))
}

// attempt runs one authorization call. On success it returns a result; on
// any failure it returns the raw processor error code and message for
// normalization.
func (p *Processor) attempt(ctx context.Context, account string, req *Request, token string, kind gateway.TokenKind) (*Result, string, string) {
	auth, err := p.gw.Authorize(ctx, account, &gateway.AuthorizationParams{
		Amount:    req.Amount,
		Currency:  req.Currency,
		Token:     token,
		TokenKind: kind,
		OrderRef:  req.OrderRef,
		Billing:   req.Billing,
	})
	if err != nil {
		if e, ok := errors.Cause(err).(*gateway.Error); ok {
			return nil, e.Code, e.Message
		}
		// Transport level failure. The raw error may name hosts or
		// internals, so it is logged here and replaced with fixed text.
		golog.Errorf("payment: authorize call failed: %s", err)
		return nil, "", "The payment could not be processed. Please try again."
	}
	if auth.Status != gateway.StatusCompleted {
		return nil, auth.ErrorCode, auth.ErrorMessage
	}
	return &Result{
		TransactionID: auth.ID,
		AuthCode:      auth.AuthCode,
		UsedTokenKind: kind,
	}, "", ""
}

func alternateKind(kind gateway.TokenKind) gateway.TokenKind {
	if kind == gateway.TokenKindSingleUse {
		return gateway.TokenKindPermanent
	}
	return gateway.TokenKindSingleUse
}
