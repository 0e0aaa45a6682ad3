package cards

import (
	"testing"

	"github.com/sprucehealth/payflow/libs/test"
)

func TestBrandForNumber(t *testing.T) {
	cases := []struct {
		number string
		brand  string
	}{
		{"4111111111111111", BrandVisa},
		{"4012888888881881", BrandVisa},
		{"5500000000000004", BrandMastercard},
		{"5105105105105100", BrandMastercard},
		{"2221000000000009", BrandMastercard},
		{"2720990000000007", BrandMastercard},
		{"340000000000009", BrandAmex},
		{"370000000000002", BrandAmex},
		{"6011000000000004", BrandDiscover},
		{"6500000000000002", BrandDiscover},
		{"3530111333300000", BrandJCB},
		{"2131000000000008", BrandJCB},
		{"1800000000000002", BrandJCB},
		{"30569309025904", BrandDiners},
		{"36700102000000", BrandDiners},
		{"38520000023237", BrandDiners},
		{"9999999999999999", BrandUnknown},
		{"123", BrandUnknown},
		{"", BrandUnknown},
	}
	for _, c := range cases {
		test.Equals(t, c.brand, BrandForNumber(c.number))
	}
}

func TestBrandBoundaries(t *testing.T) {
	// The 2-series mastercard range is inclusive on both ends.
	test.Equals(t, BrandUnknown, BrandForNumber("2220990000000000"))
	test.Equals(t, BrandMastercard, BrandForNumber("2221000000000000"))
	test.Equals(t, BrandMastercard, BrandForNumber("2720000000000000"))
	test.Equals(t, BrandUnknown, BrandForNumber("2721000000000000"))
	test.Equals(t, BrandUnknown, BrandForNumber("5000000000000000"))
	test.Equals(t, BrandUnknown, BrandForNumber("5600000000000000"))
}
