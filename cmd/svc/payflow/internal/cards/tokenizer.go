// Package cards turns raw card input into processor tokens. Raw PANs and
// CVVs exist only inside this package and the gateway call; they are never
// stored or logged.
package cards

import (
	"context"
	"strings"

	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/gateway"
	"github.com/sprucehealth/payflow/libs/errors"
)

// ErrCodeMissingCardFields is returned when required card input is absent.
const ErrCodeMissingCardFields = "missing_card_fields"

// Error is a card validation failure safe to surface to the client.
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

// Token is a processor token plus the card metadata derived before the PAN
// was discarded.
type Token struct {
	Value string
	Kind  gateway.TokenKind
	Brand string
	Last4 string
}

// Input is the card data submitted with a checkout.
type Input struct {
	Number   string
	ExpMonth int
	ExpYear  int
	CVV      string
	Name     string
}

// Tokenize validates card input, exchanges it for a single use token at the
// processor, and returns the token with derived brand and last four digits.
func Tokenize(ctx context.Context, gw gateway.Gateway, in *Input) (*Token, error) {
	number := normalizeNumber(in.Number)
	if number == "" || in.ExpMonth == 0 || in.ExpYear == 0 || in.CVV == "" {
		return nil, errors.Trace(&Error{
			Code:    ErrCodeMissingCardFields,
			Message: "Card number, expiration, and security code are all required.",
		})
	}
	value, err := gw.CreateSingleUseToken(ctx, &gateway.CardFields{
		Number:   number,
		ExpMonth: in.ExpMonth,
		ExpYear:  in.ExpYear,
		CVV:      in.CVV,
		Name:     in.Name,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	last4 := number
	if len(last4) > 4 {
		last4 = last4[len(last4)-4:]
	}
	return &Token{
		Value: value,
		Kind:  gateway.TokenKindSingleUse,
		Brand: BrandForNumber(number),
		Last4: last4,
	}, nil
}

// TokenFromValue wraps a stored permanent payment token for reuse in an
// authorization. Brand and last four come from the vault record.
func TokenFromValue(value, brand, last4 string) *Token {
	return &Token{
		Value: value,
		Kind:  gateway.TokenKindPermanent,
		Brand: brand,
		Last4: last4,
	}
}

func normalizeNumber(number string) string {
	var b strings.Builder
	for _, r := range number {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
