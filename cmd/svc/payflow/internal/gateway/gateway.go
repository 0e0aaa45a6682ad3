// Package gateway wraps the upstream card processor's REST API behind a
// narrow interface so the rest of the service never deals with raw HTTP.
package gateway

import (
	"context"

	"github.com/sprucehealth/payflow/libs/errors"
)

// Status is the processor's final disposition for an authorization attempt.
type Status string

const (
	StatusCompleted Status = "COMPLETED"
	StatusPending   Status = "PENDING"
	StatusFailed    Status = "FAILED"
)

// TokenKind distinguishes the two token representations the processor accepts.
type TokenKind string

const (
	// TokenKindSingleUse tokens are minted per checkout and die after one call.
	TokenKindSingleUse TokenKind = "SINGLE_USE"
	// TokenKindPermanent tokens reference a card stored on a customer profile.
	TokenKindPermanent TokenKind = "PERMANENT"
)

// CardFields is the raw card data collected at checkout. Never logged.
type CardFields struct {
	Number   string
	ExpMonth int
	ExpYear  int
	CVV      string
	Name     string
}

// BillingDetails is the optional address block sent with an authorization.
type BillingDetails struct {
	Name       string `json:"name,omitempty"`
	Address1   string `json:"address1,omitempty"`
	Address2   string `json:"address2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// AuthorizationParams describes a single authorization call against one
// merchant account.
type AuthorizationParams struct {
	Amount    int64 // minor units
	Currency  string
	Token     string
	TokenKind TokenKind
	OrderRef  string
	Billing   *BillingDetails
}

// Authorization is the processor's response to an authorization call. A
// declined attempt can come back as a 200 with StatusFailed and the error
// fields set rather than as a transport-level error.
type Authorization struct {
	ID           string `json:"id"`
	Status       Status `json:"status"`
	AuthCode     string `json:"auth_code"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// ProfileParams creates a customer profile keyed to one of our users.
type ProfileParams struct {
	UserRef     string
	Email       string
	Description string
}

// Profile is a customer profile stored at the processor.
type Profile struct {
	ID          string `json:"id"`
	UserRef     string `json:"user_ref"`
	Email       string `json:"email"`
	Description string `json:"description"`
}

// Card is a card as stored on a customer profile.
type Card struct {
	ID           string `json:"id"`
	PaymentToken string `json:"payment_token"`
	Brand        string `json:"brand"`
	Last4        string `json:"last4"`
	ExpMonth     int    `json:"exp_month"`
	ExpYear      int    `json:"exp_year"`
}

// Credentials are the values checked by TestConnection.
type Credentials struct {
	APIKey string
}

// ConnectionStatus reports whether the processor accepted our credentials.
type ConnectionStatus struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Gateway is the set of processor operations the service uses.
type Gateway interface {
	CreateSingleUseToken(ctx context.Context, card *CardFields) (string, error)
	Authorize(ctx context.Context, accountID string, params *AuthorizationParams) (*Authorization, error)
	CreateCustomerProfile(ctx context.Context, params *ProfileParams) (*Profile, error)
	CustomerProfile(ctx context.Context, profileID string) (*Profile, error)
	ConvertTokenToCard(ctx context.Context, profileID, singleUseToken string) (*Card, error)
	DeleteCardFromProfile(ctx context.Context, profileID, cardID string) error
	TestConnection(ctx context.Context, creds *Credentials) (*ConnectionStatus, error)
}

// Error codes returned by the processor that the service cares about.
const (
	ErrCodeNotFound = "not_found"
)

// Error is a structured error from the processor API.
type Error struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return "gateway: [" + e.Code + "] " + e.Message
	}
	return "gateway: " + e.Message
}

// ErrCode returns the processor error code for err, or "" if err is not a
// gateway error.
func ErrCode(err error) string {
	if e, ok := errors.Cause(err).(*Error); ok {
		return e.Code
	}
	return ""
}

// IsNotFound reports whether err means the referenced object does not exist
// at the processor.
func IsNotFound(err error) bool {
	return ErrCode(err) == ErrCodeNotFound
}
