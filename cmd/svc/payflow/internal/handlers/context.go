package handlers

import (
	"context"

	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/guard"
)

// Account is the authenticated caller, resolved by whatever authentication
// layer fronts this service and injected into the request context.
type Account struct {
	ID          string
	Email       string
	Name        string
	Permissions guard.Permissions
}

type contextKey int

const ctxAccount contextKey = iota

// CtxWithAccount attaches the authenticated account to the context.
func CtxWithAccount(ctx context.Context, acc *Account) context.Context {
	return context.WithValue(ctx, ctxAccount, acc)
}

// AccountFromContext returns the authenticated account, or nil for an
// anonymous request.
func AccountFromContext(ctx context.Context) *Account {
	acc, _ := ctx.Value(ctxAccount).(*Account)
	return acc
}

func permissionsFromContext(ctx context.Context) guard.Permissions {
	if acc := AccountFromContext(ctx); acc != nil {
		return acc.Permissions
	}
	return nil
}
