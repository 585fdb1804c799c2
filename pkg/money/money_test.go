package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestExponent(t *testing.T) {
	assert.Equal(t, int32(2), Exponent("GBP"))
	assert.Equal(t, int32(2), Exponent("usd"))
	assert.Equal(t, int32(0), Exponent("JPY"))
	assert.Equal(t, int32(0), Exponent("KRW"))
	assert.Equal(t, int32(3), Exponent("KWD"))
}

func TestToMinorUnits(t *testing.T) {
	cases := []struct {
		name     string
		amount   string
		currency string
		want     int64
	}{
		{name: "pence", amount: "240", currency: "GBP", want: 24000},
		{name: "half away from zero", amount: "10.005", currency: "GBP", want: 1001},
		{name: "zero decimal currency is not multiplied", amount: "1500", currency: "JPY", want: 1500},
		{name: "zero decimal rounds", amount: "1500.5", currency: "JPY", want: 1501},
		{name: "three decimals", amount: "1.2345", currency: "BHD", want: 1235},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ToMinorUnits(decimal.RequireFromString(tc.amount), tc.currency))
		})
	}
}

func TestTaxInclusiveTotalIsRoundedOnce(t *testing.T) {
	subtotal := decimal.RequireFromString("200")
	rate := decimal.RequireFromString("0.20")
	assert.Equal(t, int64(24000), ToMinorUnits(WithTax(subtotal, rate), "GBP"))

	// 0.125 * 1.2 = 0.15 exactly; rounding the subtotal first would give 0.16.
	small := decimal.RequireFromString("0.125")
	assert.Equal(t, int64(15), ToMinorUnits(WithTax(small, rate), "GBP"))
}

func TestFromMinorUnits(t *testing.T) {
	assert.True(t, FromMinorUnits(24000, "GBP").Equal(decimal.NewFromInt(240)))
	assert.True(t, FromMinorUnits(1500, "JPY").Equal(decimal.NewFromInt(1500)))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "£240.00", Format(decimal.NewFromInt(240), "GBP"))
	assert.Equal(t, "¥1500", Format(decimal.NewFromInt(1500), "JPY"))
	assert.Equal(t, "CHF 9.50", Format(decimal.RequireFromString("9.5"), "chf"))
	assert.Equal(t, "-$1.00", Format(decimal.NewFromInt(-1), "USD"))
	assert.True(t, TaxPercent(decimal.RequireFromString("0.2")).Equal(decimal.NewFromInt(20)))
	assert.True(t, RoundCents(decimal.RequireFromString("1.005")).Equal(decimal.RequireFromString("1.01")))
}
