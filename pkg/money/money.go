// Package money converts decimal amounts into PSP minor units and back.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

var zeroDecimal = map[string]struct{}{
	"BIF": {}, "CLP": {}, "CVE": {}, "DJF": {}, "GNF": {}, "IDR": {}, "ISK": {},
	"JPY": {}, "KMF": {}, "KRW": {}, "PYG": {}, "RWF": {}, "UGX": {}, "VND": {},
	"VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

var threeDecimal = map[string]struct{}{
	"BHD": {}, "IQD": {}, "JOD": {}, "KWD": {}, "LYD": {}, "OMR": {}, "TND": {},
}

var symbols = map[string]string{
	"GBP": "£",
	"USD": "$",
	"EUR": "€",
	"JPY": "¥",
}

var hundred = decimal.NewFromInt(100)

// Exponent returns the number of minor-unit digits for an ISO 4217 currency.
func Exponent(currency string) int32 {
	code := normalize(currency)
	if _, ok := zeroDecimal[code]; ok {
		return 0
	}
	if _, ok := threeDecimal[code]; ok {
		return 3
	}
	return 2
}

// ToMinorUnits rounds amount half away from zero to the currency's minor unit.
func ToMinorUnits(amount decimal.Decimal, currency string) int64 {
	return amount.Shift(Exponent(currency)).Round(0).IntPart()
}

// FromMinorUnits converts an integer minor-unit value back into a decimal amount.
func FromMinorUnits(value int64, currency string) decimal.Decimal {
	return decimal.New(value, -Exponent(currency))
}

// WithTax returns amount × (1 + rate) without rounding.
func WithTax(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(1).Add(rate))
}

// RoundCents rounds to two decimals, half away from zero.
func RoundCents(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// TaxPercent renders a fractional rate as a percentage, e.g. 0.2 => 20.
func TaxPercent(rate decimal.Decimal) decimal.Decimal {
	return rate.Mul(hundred)
}

// Format renders amount with the currency symbol when one is known.
func Format(amount decimal.Decimal, currency string) string {
	code := normalize(currency)
	fixed := amount.StringFixed(Exponent(code))
	if symbol, ok := symbols[code]; ok {
		if amount.IsNegative() {
			return "-" + symbol + strings.TrimPrefix(fixed, "-")
		}
		return symbol + fixed
	}
	return code + " " + fixed
}

func normalize(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}
