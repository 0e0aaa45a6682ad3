package payment

import (
	"strconv"
	"strings"

	"github.com/sprucehealth/payflow/libs/errors"
)

// currencyExponent is the number of minor unit digits for currencies that
// don't use the common two. Everything else defaults to 2.
var currencyExponent = map[string]int{
	"BIF": 0,
	"CLP": 0,
	"DJF": 0,
	"GNF": 0,
	"ISK": 0,
	"JPY": 0,
	"KMF": 0,
	"KRW": 0,
	"PYG": 0,
	"RWF": 0,
	"UGX": 0,
	"VND": 0,
	"VUV": 0,
	"XAF": 0,
	"XOF": 0,
	"XPF": 0,
	"BHD": 3,
	"JOD": 3,
	"KWD": 3,
	"OMR": 3,
	"TND": 3,
}

func exponentForCurrency(currency string) int {
	if e, ok := currencyExponent[strings.ToUpper(currency)]; ok {
		return e
	}
	return 2
}

// ParseAmount converts a decimal major unit amount string into minor units
// for the currency. Amounts that don't parse, carry more fractional digits
// than the currency allows, or are not strictly positive are rejected with
// invalid_amount. Parsing is exact; no floating point is involved.
func ParseAmount(amount, currency string) (int64, error) {
	invalid := func() error {
		return errors.Trace(&Error{
			Code:    ErrCodeInvalidAmount,
			Message: "The amount must be a positive number.",
		})
	}
	amount = strings.TrimSpace(amount)
	whole := amount
	frac := ""
	if ix := strings.IndexByte(amount, '.'); ix >= 0 {
		whole = amount[:ix]
		frac = amount[ix+1:]
	}
	exp := exponentForCurrency(currency)
	if whole == "" && frac == "" {
		return 0, invalid()
	}
	if len(frac) > exp {
		return 0, invalid()
	}
	for len(frac) < exp {
		frac += "0"
	}
	if whole == "" {
		whole = "0"
	}
	// Signs are rejected outright; ParseInt would accept "-0" as zero and
	// let a negative fraction sneak past the positivity check below.
	if !allDigits(whole) || !allDigits(frac) {
		return 0, invalid()
	}
	// Bound the magnitude so the scaling below cannot wrap int64 and land
	// on a small positive value.
	if len(strings.TrimLeft(whole, "0")) > 18-exp {
		return 0, invalid()
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, invalid()
	}
	var f int64
	if frac != "" {
		f, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, invalid()
		}
	}
	var scale int64 = 1
	for i := 0; i < exp; i++ {
		scale *= 10
	}
	minor := w*scale + f
	if minor <= 0 {
		return 0, invalid()
	}
	return minor, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
