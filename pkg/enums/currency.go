package enums

import "strings"

// Currency is an ISO 4217 code the provider can settle donations in.
type Currency string

const (
	CurrencyNGN Currency = "NGN"
	CurrencyUSD Currency = "USD"
	CurrencyGHS Currency = "GHS"
	CurrencyZAR Currency = "ZAR"
	CurrencyKES Currency = "KES"
)

// DefaultCurrency applies when a pledge omits its currency.
const DefaultCurrency = CurrencyNGN

var currencies = []Currency{CurrencyNGN, CurrencyUSD, CurrencyGHS, CurrencyZAR, CurrencyKES}

func (c Currency) String() string { return string(c) }

func (c Currency) IsValid() bool { return member(c, currencies) }

// ParseCurrency accepts lowercase and padded input.
func ParseCurrency(value string) (Currency, error) {
	return parse("currency", value, strings.ToUpper(strings.TrimSpace(value)), currencies)
}
