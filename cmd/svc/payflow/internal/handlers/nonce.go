package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/guard"
	"github.com/sprucehealth/payflow/libs/httputil"
)

const nonceTTL = time.Minute * 15

// issuableActions is the set of actions a client may request a nonce for.
var issuableActions = map[string]bool{
	ActionCheckout:       true,
	ActionManageCards:    true,
	ActionConnectionTest: true,
}

type nonceHandler struct {
	nonces *guard.Nonces
}

// NewNonce returns the handler for GET /nonce, which issues a short lived
// security token bound to the requested action.
func NewNonce(nonces *guard.Nonces) httputil.ContextHandler {
	return httputil.SupportedMethods(&nonceHandler{nonces: nonces}, httputil.Get)
}

func (h *nonceHandler) ServeHTTP(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeBadRequest(w, "Unable to parse request parameters.")
		return
	}
	rd := &nonceGETRequest{}
	if err := formDecoder.Decode(rd, r.Form); err != nil {
		writeBadRequest(w, "An action must be provided.")
		return
	}
	if !issuableActions[rd.Action] {
		writeBadRequest(w, "Unknown action.")
		return
	}
	nonce, err := h.nonces.Issue(rd.Action, nonceTTL)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	httputil.JSONResponse(w, http.StatusOK, &nonceGETResponse{Nonce: nonce})
}
