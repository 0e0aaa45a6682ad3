package handlers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/cards"
	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/guard"
	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/payment"
	"github.com/sprucehealth/payflow/libs/golog"
	"github.com/sprucehealth/payflow/libs/httputil"
)

// Error types on the wire.
const (
	errTypeSecurity   = "security"
	errTypeValidation = "validation"
	errTypeGateway    = "gateway"
	errTypeInternal   = "internal"
)

type apiError struct {
	Type     string `json:"type"`
	Code     string `json:"code,omitempty"`
	Category string `json:"category,omitempty"`
	Message  string `json:"message"`
}

type errorResponse struct {
	Success bool      `json:"success"`
	Error   *apiError `json:"error"`
}

type checkoutPOSTRequest struct {
	Nonce      string `schema:"nonce"`
	Amount     string `schema:"amount,required"`
	Currency   string `schema:"currency,required"`
	OrderRef   string `schema:"order_ref"`
	CardNumber string `schema:"card_number"`
	ExpMonth   int    `schema:"exp_month"`
	ExpYear    int    `schema:"exp_year"`
	CVV        string `schema:"cvv"`
	NameOnCard string `schema:"name_on_card"`
	CardID     int64  `schema:"card_id"`
	SaveCard   bool   `schema:"save_card"`
	Address1   string `schema:"address1"`
	Address2   string `schema:"address2"`
	City       string `schema:"city"`
	State      string `schema:"state"`
	PostalCode string `schema:"postal_code"`
	Country    string `schema:"country"`
}

type checkoutPOSTResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message,omitempty"`
	TransactionID string `json:"transaction_id"`
	AuthCode      string `json:"auth_code,omitempty"`
	Brand         string `json:"brand,omitempty"`
	Last4         string `json:"last4,omitempty"`
}

type cardResponse struct {
	ID        int64  `json:"id,string"`
	Brand     string `json:"brand"`
	Last4     string `json:"last4"`
	ExpMonth  int    `json:"exp_month"`
	ExpYear   int    `json:"exp_year"`
	IsDefault bool   `json:"is_default"`
}

type cardsGETResponse struct {
	Cards []*cardResponse `json:"cards"`
}

type cardsRequestData struct {
	CardID int64  `schema:"card_id,required"`
	Nonce  string `schema:"nonce"`
}

type connectionTestPOSTRequest struct {
	Nonce  string `schema:"nonce"`
	APIKey string `schema:"api_key"`
}

type connectionTestPOSTResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type nonceGETRequest struct {
	Action string `schema:"action,required"`
}

type nonceGETResponse struct {
	Nonce string `json:"nonce"`
}

// writeError maps the service's typed errors onto HTTP. Anything not
// recognized is a 500 with fixed text, logged with its trace.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	if code := guard.ErrCode(err); code != "" {
		status := http.StatusForbidden
		if code == guard.ErrCodeRateLimitExceeded {
			status = http.StatusTooManyRequests
		}
		httputil.JSONResponse(w, status, &errorResponse{Error: &apiError{
			Type:    errTypeSecurity,
			Code:    code,
			Message: err.Error(),
		}})
		return
	}
	if code := cards.ErrCode(err); code != "" {
		httputil.JSONResponse(w, http.StatusBadRequest, &errorResponse{Error: &apiError{
			Type:    errTypeValidation,
			Code:    code,
			Message: err.Error(),
		}})
		return
	}
	if code := payment.ErrCode(err); code != "" {
		httputil.JSONResponse(w, http.StatusBadRequest, &errorResponse{Error: &apiError{
			Type:    errTypeValidation,
			Code:    code,
			Message: err.Error(),
		}})
		return
	}
	if ge := payment.GatewayErrorOf(err); ge != nil {
		httputil.JSONResponse(w, http.StatusPaymentRequired, &errorResponse{Error: &apiError{
			Type:     errTypeGateway,
			Category: ge.Category,
			Message:  ge.Message,
		}})
		return
	}
	golog.LogDepthf(1, golog.ERR, "request failed: %s", err)
	httputil.JSONResponse(w, http.StatusInternalServerError, &errorResponse{Error: &apiError{
		Type:    errTypeInternal,
		Message: "Something went wrong. Please try again.",
	}})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	httputil.JSONResponse(w, http.StatusBadRequest, &errorResponse{Error: &apiError{
		Type:    errTypeValidation,
		Message: message,
	}})
}

// requestOrigin resolves the origin the client claims to be calling from,
// preferring the Origin header and falling back to the Referer's
// scheme://host.
func requestOrigin(r *http.Request) string {
	if o := r.Header.Get("Origin"); o != "" {
		return o
	}
	ref := r.Referer()
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func guardParams(ctx context.Context, r *http.Request, nonce string) *guard.Params {
	return &guard.Params{
		Nonce:         nonce,
		RemoteAddr:    r.RemoteAddr,
		XForwardedFor: r.Header.Get("X-Forwarded-For"),
		Origin:        requestOrigin(r),
		Permissions:   permissionsFromContext(ctx),
	}
}
