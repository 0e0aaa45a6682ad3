package cards

import "strconv"

// Card brands recognized from the account number prefix.
const (
	BrandVisa       = "visa"
	BrandMastercard = "mastercard"
	BrandAmex       = "amex"
	BrandDiscover   = "discover"
	BrandJCB        = "jcb"
	BrandDiners     = "diners"
	BrandUnknown    = "unknown"
)

// BrandForNumber returns the card brand for a PAN based on its issuer
// prefix. Unrecognized prefixes map to BrandUnknown.
func BrandForNumber(number string) string {
	if len(number) < 4 {
		return BrandUnknown
	}
	p2, _ := strconv.Atoi(number[:2])
	p3, _ := strconv.Atoi(number[:3])
	p4, _ := strconv.Atoi(number[:4])
	switch {
	case number[0] == '4':
		return BrandVisa
	case (p2 >= 51 && p2 <= 55) || (p4 >= 2221 && p4 <= 2720):
		return BrandMastercard
	case p2 == 34 || p2 == 37:
		return BrandAmex
	case p4 == 6011 || p2 == 65:
		return BrandDiscover
	case p4 == 2131 || p4 == 1800 || p2 == 35:
		return BrandJCB
	case (p3 >= 300 && p3 <= 305) || p2 == 36 || p2 == 38:
		return BrandDiners
	}
	return BrandUnknown
}
