package handlers

import (
	"context"
	"net/http"

	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/dal"
	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/guard"
	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/vault"
	"github.com/sprucehealth/payflow/libs/errors"
	"github.com/sprucehealth/payflow/libs/httputil"
)

type cardsHandler struct {
	g     *guard.Guard
	vault *vault.Manager
}

// NewCards returns the handler for /cards: GET lists the caller's vaulted
// cards, DELETE removes one, PUT makes one the default. The card is
// selected with the card_id form parameter.
func NewCards(g *guard.Guard, vaultMgr *vault.Manager) httputil.ContextHandler {
	return httputil.SupportedMethods(&cardsHandler{
		g:     g,
		vault: vaultMgr,
	}, httputil.Get, httputil.Delete, httputil.Put)
}

func (h *cardsHandler) ServeHTTP(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	acc := AccountFromContext(ctx)
	if acc == nil {
		httputil.JSONResponse(w, http.StatusUnauthorized, &errorResponse{Error: &apiError{
			Type:    errTypeSecurity,
			Message: "Sign in to manage saved cards.",
		}})
		return
	}
	switch r.Method {
	case httputil.Get:
		h.serveGET(ctx, w, acc)
	case httputil.Delete:
		h.serveDELETE(ctx, w, r, acc)
	case httputil.Put:
		h.servePUT(ctx, w, r, acc)
	}
}

func (h *cardsHandler) serveGET(ctx context.Context, w http.ResponseWriter, acc *Account) {
	cs, err := h.vault.Cards(ctx, acc.ID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	res := &cardsGETResponse{Cards: make([]*cardResponse, len(cs))}
	for i, c := range cs {
		res.Cards[i] = transformCard(c)
	}
	httputil.JSONResponse(w, http.StatusOK, res)
}

func (h *cardsHandler) serveDELETE(ctx context.Context, w http.ResponseWriter, r *http.Request, acc *Account) {
	rd, ok := h.decodeAndGuard(ctx, w, r)
	if !ok {
		return
	}
	err := h.vault.DeleteCard(ctx, acc.ID, rd.CardID)
	if errors.Cause(err) == dal.ErrNotFound {
		writeCardNotFound(w)
		return
	}
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	httputil.JSONResponse(w, http.StatusOK, struct {
		Success bool `json:"success"`
	}{Success: true})
}

func (h *cardsHandler) servePUT(ctx context.Context, w http.ResponseWriter, r *http.Request, acc *Account) {
	rd, ok := h.decodeAndGuard(ctx, w, r)
	if !ok {
		return
	}
	err := h.vault.MakeDefault(ctx, acc.ID, rd.CardID)
	if errors.Cause(err) == dal.ErrNotFound {
		writeCardNotFound(w)
		return
	}
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	httputil.JSONResponse(w, http.StatusOK, struct {
		Success bool `json:"success"`
	}{Success: true})
}

func (h *cardsHandler) decodeAndGuard(ctx context.Context, w http.ResponseWriter, r *http.Request) (*cardsRequestData, bool) {
	if err := r.ParseForm(); err != nil {
		writeBadRequest(w, "Unable to parse request parameters.")
		return nil, false
	}
	rd := &cardsRequestData{}
	if err := formDecoder.Decode(rd, r.Form); err != nil {
		writeBadRequest(w, "A card_id must be provided.")
		return nil, false
	}
	if err := h.g.Verify(ctx, guardParams(ctx, r, rd.Nonce), ActionManageCards, ""); err != nil {
		writeError(ctx, w, err)
		return nil, false
	}
	return rd, true
}

func writeCardNotFound(w http.ResponseWriter) {
	httputil.JSONResponse(w, http.StatusNotFound, &errorResponse{Error: &apiError{
		Type:    errTypeValidation,
		Message: "The selected card could not be found.",
	}})
}

func transformCard(c *dal.Card) *cardResponse {
	return &cardResponse{
		ID:        c.ID,
		Brand:     c.Brand,
		Last4:     c.Last4,
		ExpMonth:  c.ExpMonth,
		ExpYear:   c.ExpYear,
		IsDefault: c.IsDefault,
	}
}
