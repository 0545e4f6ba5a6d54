// Package money converts between stored minor units and display amounts.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/wavelength-fm/station-backend/pkg/enums"
)

// minorExponent is the number of decimal places per currency. Every supported
// currency uses two today.
var minorExponent = map[enums.Currency]int32{
	enums.CurrencyNGN: 2,
	enums.CurrencyUSD: 2,
	enums.CurrencyGHS: 2,
	enums.CurrencyZAR: 2,
	enums.CurrencyKES: 2,
}

func exponent(currency enums.Currency) int32 {
	if exp, ok := minorExponent[currency]; ok {
		return exp
	}
	return 2
}

// Major converts a minor-unit amount (5000) to its major value (50.00).
func Major(amountMinor int64, currency enums.Currency) decimal.Decimal {
	return decimal.NewFromInt(amountMinor).Shift(-exponent(currency))
}

// Format renders an amount for logs, e.g. "NGN 50.00".
func Format(amountMinor int64, currency enums.Currency) string {
	exp := exponent(currency)
	return fmt.Sprintf("%s %s", currency, Major(amountMinor, currency).StringFixed(exp))
}

// FromMajor converts a major-unit decimal string to minor units. Values with
// more precision than the currency allows are rejected.
func FromMajor(value string, currency enums.Currency) (int64, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	minor := d.Shift(exponent(currency))
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has more than %d decimal places", value, exponent(currency))
	}
	return minor.IntPart(), nil
}
