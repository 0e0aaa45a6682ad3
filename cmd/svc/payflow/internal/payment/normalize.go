package payment

import (
	"strings"

	"github.com/sprucehealth/payflow/libs/errors"
)

// Error categories reported with a failed authorization.
const (
	CategoryGeneric   = "GENERIC"
	CategoryAVSFailed = "AVS_FAILED"
)

// avsMarker appears in processor messages for address verification
// declines. Matched case-insensitively.
const avsMarker = "failed the avs check"

const defaultAVSMessage = "The billing address entered does not match the one on file for this card. Please double check the address and try again."

// GatewayError is a processor failure after normalization. Category and
// Message are safe to return to the client; the raw processor detail is
// gone by the time this exists.
type GatewayError struct {
	Category string
	Message  string
}

func (e *GatewayError) Error() string {
	return e.Message
}

// GatewayErrorOf returns the normalized gateway error in err's chain, or
// nil.
func GatewayErrorOf(err error) *GatewayError {
	if e, ok := errors.Cause(err).(*GatewayError); ok {
		return e
	}
	return nil
}

// Normalizer converts raw processor error codes and messages into client
// safe categories and text.
type Normalizer struct {
	codeMessages map[string]string
	avsMessage   string
}

// NewNormalizer builds a Normalizer. codeMessages overrides the message for
// exact processor error codes; avsMessage overrides the address
// verification text, falling back to a fixed default when empty.
func NewNormalizer(codeMessages map[string]string, avsMessage string) *Normalizer {
	if avsMessage == "" {
		avsMessage = defaultAVSMessage
	}
	return &Normalizer{
		codeMessages: codeMessages,
		avsMessage:   avsMessage,
	}
}

// Normalize maps a raw processor failure to a category and a sanitized
// message. Code-specific overrides win, then the AVS marker, then the raw
// message passes through with markup stripped down to the safe subset.
func (n *Normalizer) Normalize(rawCode, rawMessage string) *GatewayError {
	if msg, ok := n.codeMessages[rawCode]; ok {
		return &GatewayError{
			Category: CategoryGeneric,
			Message:  sanitizeMessage(msg),
		}
	}
	if strings.Contains(strings.ToLower(rawMessage), avsMarker) {
		return &GatewayError{
			Category: CategoryAVSFailed,
			Message:  sanitizeMessage(n.avsMessage),
		}
	}
	return &GatewayError{
		Category: CategoryGeneric,
		Message:  sanitizeMessage(rawMessage),
	}
}
