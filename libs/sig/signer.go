// Package sig implements HMAC message signing with support for key rotation.
package sig

import (
	"crypto/hmac"
	"crypto/sha256"
	"hash"

	"github.com/sprucehealth/payflow/libs/errors"
)

// Signer signs and verifies messages using HMAC. Multiple keys may be
// provided to support rotation: the first key is used for signing, and
// all keys are tried during verification.
type Signer struct {
	keys [][]byte
	h    func() hash.Hash
}

// NewSigner returns a Signer using the provided keys. The hash function
// defaults to SHA-256 when h is nil.
func NewSigner(keys [][]byte, h func() hash.Hash) (*Signer, error) {
	if len(keys) == 0 {
		return nil, errors.New("sig: at least one key is required")
	}
	for _, k := range keys {
		if len(k) == 0 {
			return nil, errors.New("sig: keys may not be empty")
		}
	}
	if h == nil {
		h = sha256.New
	}
	return &Signer{keys: keys, h: h}, nil
}

// Sign returns the signature for the message using the latest key.
func (s *Signer) Sign(msg []byte) ([]byte, error) {
	m := hmac.New(s.h, s.keys[0])
	if _, err := m.Write(msg); err != nil {
		return nil, errors.Trace(err)
	}
	return m.Sum(nil), nil
}

// Verify returns true if the signature matches the message under any known key.
func (s *Signer) Verify(msg, sig []byte) bool {
	for _, k := range s.keys {
		m := hmac.New(s.h, k)
		if _, err := m.Write(msg); err != nil {
			return false
		}
		if hmac.Equal(sig, m.Sum(nil)) {
			return true
		}
	}
	return false
}
