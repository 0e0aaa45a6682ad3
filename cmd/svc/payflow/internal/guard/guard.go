// Package guard fronts the checkout endpoints with replay and rate
// protection. Every verdict it returns is decided before any processor
// call is made.
package guard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"strings"
	"time"

	"github.com/sprucehealth/payflow/libs/errors"
	"github.com/sprucehealth/payflow/libs/golog"
	"github.com/sprucehealth/payflow/libs/ratelimit"
)

const (
	ErrCodeRateLimitExceeded       = "rate_limit_exceeded"
	ErrCodeMissingNonce            = "missing_nonce"
	ErrCodeNonceAlreadyUsed        = "nonce_already_used"
	ErrCodeInvalidNonce            = "invalid_nonce"
	ErrCodeInsufficientPermissions = "insufficient_permissions"
	ErrCodeInvalidReferer          = "invalid_referer"
)

// PermUnlimitedCheckout lets a caller skip identity rate limiting entirely.
const PermUnlimitedCheckout = "checkout.unlimited"

// minUsedNonceTTL bounds the blacklist entry lifetime from below so a
// consumed nonce cannot be replayed after an early cache eviction of a
// too-short entry.
const minUsedNonceTTL = time.Hour

// Error is a security failure safe to surface to the client.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// ErrCode returns the security code for err, or "" for other errors.
func ErrCode(err error) string {
	if e, ok := errors.Cause(err).(*Error); ok {
		return e.Code
	}
	return ""
}

// Permissions is the set of capabilities attached to the caller's account.
type Permissions map[string]bool

func (p Permissions) Has(perm string) bool {
	return p[perm]
}

// Params carries the per-request inputs Verify decides on.
type Params struct {
	Nonce         string
	RemoteAddr    string
	XForwardedFor string
	Origin        string
	Permissions   Permissions
}

// Config configures a Guard.
type Config struct {
	RateLimiter ratelimit.KeyedRateLimiter
	Nonces      *Nonces
	UsedNonces  UsedNonceStore
	// UsedNonceTTL below minUsedNonceTTL is raised to it.
	UsedNonceTTL time.Duration
	// AdminOrigin is the only origin allowed to invoke privileged actions.
	AdminOrigin string
	// PrivilegedActions additionally require the admin origin.
	PrivilegedActions map[string]bool
	// TrustProxyHeaders enables client identity resolution from
	// X-Forwarded-For. Only set behind a proxy that overwrites the header.
	TrustProxyHeaders bool
}

// Guard applies rate limiting, nonce replay protection, and capability
// checks in a fixed order.
type Guard struct {
	rl                ratelimit.KeyedRateLimiter
	nonces            *Nonces
	used              UsedNonceStore
	usedTTL           time.Duration
	adminOrigin       string
	privilegedActions map[string]bool
	trustProxyHeaders bool
}

func New(cfg *Config) *Guard {
	ttl := cfg.UsedNonceTTL
	if ttl < minUsedNonceTTL {
		ttl = minUsedNonceTTL
	}
	rl := cfg.RateLimiter
	if rl == nil {
		rl = ratelimit.NullKeyedRateLimiter{}
	}
	return &Guard{
		rl:                rl,
		nonces:            cfg.Nonces,
		used:              cfg.UsedNonces,
		usedTTL:           ttl,
		adminOrigin:       cfg.AdminOrigin,
		privilegedActions: cfg.PrivilegedActions,
		trustProxyHeaders: cfg.TrustProxyHeaders,
	}
}

// Verify runs every precondition for requiredAction against p. A nil return
// means the request may proceed; the nonce has then been consumed and will
// not verify again. Any non-nil return is a *Error and was decided without
// side effects.
func (g *Guard) Verify(ctx context.Context, p *Params, requiredAction, requiredPermission string) error {
	if !p.Permissions.Has(PermUnlimitedCheckout) {
		ok, err := g.rl.Check(g.rateKey(p), 1)
		if err != nil {
			// Infrastructure failure on the counter store shouldn't take
			// checkout down. Log it and let the request through.
			golog.Context("key", g.rateKey(p)).Errorf("guard: rate limiter check failed: %s", err)
		} else if !ok {
			return errors.Trace(&Error{
				Code:    ErrCodeRateLimitExceeded,
				Message: "Too many requests. Please wait a moment and try again.",
			})
		}
	}

	if p.Nonce == "" {
		return errors.Trace(&Error{
			Code:    ErrCodeMissingNonce,
			Message: "A security token is required for this action.",
		})
	}
	nonceKey := hashKey(p.Nonce)
	used, err := g.used.IsUsed(nonceKey)
	if err != nil {
		golog.Errorf("guard: used nonce lookup failed: %s", err)
	} else if used {
		return errors.Trace(&Error{
			Code:    ErrCodeNonceAlreadyUsed,
			Message: "This security token has already been used.",
		})
	}
	if err := g.nonces.Validate(p.Nonce, requiredAction); err != nil {
		golog.Debugf("guard: nonce rejected: %s", err)
		return errors.Trace(&Error{
			Code:    ErrCodeInvalidNonce,
			Message: "The security token is invalid or expired.",
		})
	}

	if requiredPermission != "" && !p.Permissions.Has(requiredPermission) {
		return errors.Trace(&Error{
			Code:    ErrCodeInsufficientPermissions,
			Message: "You do not have permission to perform this action.",
		})
	}
	if g.privilegedActions[requiredAction] && p.Origin != g.adminOrigin {
		return errors.Trace(&Error{
			Code:    ErrCodeInvalidReferer,
			Message: "This action may only be performed from the administrative site.",
		})
	}

	// Consume last so a rejected request leaves the nonce untouched. The
	// store's first-writer-wins add closes the race between two requests
	// presenting the same nonce at once.
	stored, err := g.used.MarkUsed(nonceKey, g.usedTTL)
	if err != nil {
		golog.Errorf("guard: marking nonce used failed: %s", err)
	} else if !stored {
		return errors.Trace(&Error{
			Code:    ErrCodeNonceAlreadyUsed,
			Message: "This security token has already been used.",
		})
	}
	return nil
}

func (g *Guard) rateKey(p *Params) string {
	return "checkout:" + hashKey(g.clientIP(p))
}

// clientIP resolves the caller's network identity. The forwarded header is
// only believed when proxy trust is configured, and whatever wins must
// parse as an IP or we fall back to the unspecified address.
func (g *Guard) clientIP(p *Params) string {
	addr := p.RemoteAddr
	if g.trustProxyHeaders && p.XForwardedFor != "" {
		addr = p.XForwardedFor
		if ix := strings.IndexByte(addr, ','); ix >= 0 {
			addr = addr[:ix]
		}
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	if ip := net.ParseIP(strings.TrimSpace(addr)); ip != nil {
		return ip.String()
	}
	return "0.0.0.0"
}

func hashKey(v string) string {
	h := sha256.Sum256([]byte(v))
	return hex.EncodeToString(h[:])
}
