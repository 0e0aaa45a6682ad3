package guard

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sprucehealth/payflow/libs/clock"
	"github.com/sprucehealth/payflow/libs/errors"
	"github.com/sprucehealth/payflow/libs/sig"
)

// Nonces issues and validates single use security tokens. A token binds an
// action name and an expiry under an HMAC so it cannot be minted or altered
// by a client. Action names must not contain ':'.
type Nonces struct {
	signer *sig.Signer
	clk    clock.Clock
}

func NewNonces(signer *sig.Signer, clk clock.Clock) *Nonces {
	if clk == nil {
		clk = clock.New()
	}
	return &Nonces{signer: signer, clk: clk}
}

// Issue returns a new token for action valid for ttl.
func (n *Nonces) Issue(action string, ttl time.Duration) (string, error) {
	salt := make([]byte, 8)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.Trace(err)
	}
	expires := n.clk.Now().Add(ttl).Unix()
	payload := fmt.Sprintf("%s:%d:%s", action, expires, hex.EncodeToString(salt))
	s, err := n.signer.Sign([]byte(payload))
	if err != nil {
		return "", errors.Trace(err)
	}
	return base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." + base64.RawURLEncoding.EncodeToString(s), nil
}

// Validate checks that token is well formed, correctly signed, unexpired,
// and bound to action.
func (n *Nonces) Validate(token, action string) error {
	ix := strings.IndexByte(token, '.')
	if ix < 0 {
		return errors.Errorf("guard: malformed nonce")
	}
	payload, err := base64.RawURLEncoding.DecodeString(token[:ix])
	if err != nil {
		return errors.Errorf("guard: malformed nonce payload")
	}
	s, err := base64.RawURLEncoding.DecodeString(token[ix+1:])
	if err != nil {
		return errors.Errorf("guard: malformed nonce signature")
	}
	if !n.signer.Verify(payload, s) {
		return errors.Errorf("guard: nonce signature mismatch")
	}
	parts := strings.SplitN(string(payload), ":", 3)
	if len(parts) != 3 {
		return errors.Errorf("guard: malformed nonce payload")
	}
	if parts[0] != action {
		return errors.Errorf("guard: nonce bound to action %q not %q", parts[0], action)
	}
	expires, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return errors.Errorf("guard: malformed nonce expiry")
	}
	if n.clk.Now().Unix() > expires {
		return errors.Errorf("guard: nonce expired")
	}
	return nil
}
