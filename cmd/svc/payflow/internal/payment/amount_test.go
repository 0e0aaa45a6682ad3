package payment

import (
	"testing"

	"github.com/sprucehealth/payflow/libs/test"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		amount   string
		currency string
		minor    int64
	}{
		{"12.50", "USD", 1250},
		{"12.5", "USD", 1250},
		{"12", "USD", 1200},
		{".50", "USD", 50},
		{"0.01", "USD", 1},
		{" 12.50 ", "USD", 1250},
		{"1500", "JPY", 1500},
		{"1.250", "KWD", 1250},
		{"0000012.50", "USD", 1250},
		{"9999999999999999", "USD", 999999999999999900},
	}
	for _, c := range cases {
		minor, err := ParseAmount(c.amount, c.currency)
		test.OK(t, err)
		test.Equals(t, c.minor, minor)
	}
}

func TestParseAmountInvalid(t *testing.T) {
	cases := []struct {
		amount   string
		currency string
	}{
		{"0", "USD"},
		{"0.00", "USD"},
		{"-5", "USD"},
		{"-0.01", "USD"},
		{"", "USD"},
		{".", "USD"},
		{"abc", "USD"},
		{"1.2.3", "USD"},
		{"12.345", "USD"}, // too many fractional digits for USD
		{"1.5", "JPY"},    // JPY has no minor unit
		// Large enough to wrap int64 when scaled to minor units. The wrapped
		// value can come out small and positive, so these must be rejected
		// on magnitude, not on the result.
		{"184467440737095517", "USD"},
		{"10000000000000000", "USD"},
		{"9999999999999999999999", "JPY"},
		{"1000000000000000.000", "KWD"},
	}
	for _, c := range cases {
		_, err := ParseAmount(c.amount, c.currency)
		test.Assert(t, err != nil, "expected error for %q %s", c.amount, c.currency)
		test.Equals(t, ErrCodeInvalidAmount, ErrCode(err))
	}
}
