package handlers

import (
	"context"
	"net/http"

	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/gateway"
	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/guard"
	"github.com/sprucehealth/payflow/libs/errors"
	"github.com/sprucehealth/payflow/libs/httputil"
)

// PermManagePayments is required to run processor connection tests.
const PermManagePayments = "payments.manage"

type connectionTestHandler struct {
	g  *guard.Guard
	gw gateway.Gateway
}

// NewConnectionTest returns the handler for POST /admin/connection-test.
// It is a privileged action: the guard requires the admin origin and the
// payments management permission.
func NewConnectionTest(g *guard.Guard, gw gateway.Gateway) httputil.ContextHandler {
	return httputil.SupportedMethods(&connectionTestHandler{g: g, gw: gw}, httputil.Post)
}

func (h *connectionTestHandler) ServeHTTP(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeBadRequest(w, "Unable to parse request parameters.")
		return
	}
	rd := &connectionTestPOSTRequest{}
	if err := formDecoder.Decode(rd, r.Form); err != nil {
		writeBadRequest(w, "Unable to parse request parameters.")
		return
	}
	if err := h.g.Verify(ctx, guardParams(ctx, r, rd.Nonce), ActionConnectionTest, PermManagePayments); err != nil {
		writeError(ctx, w, err)
		return
	}
	var creds *gateway.Credentials
	if rd.APIKey != "" {
		creds = &gateway.Credentials{APIKey: rd.APIKey}
	}
	status, err := h.gw.TestConnection(ctx, creds)
	if err != nil {
		// Rejected credentials are a result here, not a failure of the
		// endpoint itself.
		if e, ok := errors.Cause(err).(*gateway.Error); ok {
			httputil.JSONResponse(w, http.StatusOK, &connectionTestPOSTResponse{
				Success: false,
				Message: e.Message,
			})
			return
		}
		writeError(ctx, w, err)
		return
	}
	httputil.JSONResponse(w, http.StatusOK, &connectionTestPOSTResponse{
		Success: status.Success,
		Message: status.Message,
	})
}
