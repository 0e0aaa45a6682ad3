package payment

import (
	"testing"

	"github.com/sprucehealth/payflow/libs/test"
)

func TestNormalizeCodeOverride(t *testing.T) {
	n := NewNormalizer(map[string]string{
		"2001": "Your card was declined. Please use a different card.",
	}, "")

	ge := n.Normalize("2001", "Do Not Honor")
	test.Equals(t, CategoryGeneric, ge.Category)
	test.Equals(t, "Your card was declined. Please use a different card.", ge.Message)

	// Code overrides win even when the message carries the AVS marker.
	ge = n.Normalize("2001", "Transaction failed the AVS check")
	test.Equals(t, CategoryGeneric, ge.Category)
	test.Equals(t, "Your card was declined. Please use a different card.", ge.Message)
}

func TestNormalizeAVS(t *testing.T) {
	n := NewNormalizer(nil, "Please verify your <b>billing address</b>.")

	for _, msg := range []string{
		"Transaction failed the AVS check",
		"transaction FAILED THE AVS CHECK for this card",
		"Failed The Avs Check",
	} {
		ge := n.Normalize("3005", msg)
		test.Equals(t, CategoryAVSFailed, ge.Category)
		test.Equals(t, "Please verify your <b>billing address</b>.", ge.Message)
	}
}

func TestNormalizeAVSDefaultMessage(t *testing.T) {
	n := NewNormalizer(nil, "")
	ge := n.Normalize("3005", "failed the avs check")
	test.Equals(t, CategoryAVSFailed, ge.Category)
	test.Equals(t, defaultAVSMessage, ge.Message)
}

func TestNormalizePassthrough(t *testing.T) {
	n := NewNormalizer(nil, "")
	ge := n.Normalize("9999", "Card has expired")
	test.Equals(t, CategoryGeneric, ge.Category)
	test.Equals(t, "Card has expired", ge.Message)
}

func TestSanitizeMessage(t *testing.T) {
	cases := []struct {
		in  string
		out string
	}{
		{"plain text", "plain text"},
		{"keep <b>bold</b> and <i>italic</i> and <em>emphasis</em>", "keep <b>bold</b> and <i>italic</i> and <em>emphasis</em>"},
		{"line<br>break", "line<br/>break"},
		{"line<br/>break", "line<br/>break"},
		{`<script>alert(1)</script>hi`, "alert(1)hi"},
		{`<a href="http://evil.example">click</a>`, "click"},
		{`<b onclick="x()">bold</b>`, "<b>bold</b>"},
		{"<div><p>wrapped</p></div>", "wrapped"},
	}
	for _, c := range cases {
		test.Equals(t, c.out, sanitizeMessage(c.in))
	}
}
