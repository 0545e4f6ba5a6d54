package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavelength-fm/station-backend/pkg/enums"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "NGN 50.00", Format(5000, enums.CurrencyNGN))
	assert.Equal(t, "USD 0.05", Format(5, enums.CurrencyUSD))
	assert.Equal(t, "50.5", Major(5050, enums.CurrencyNGN).String())
}

func TestFromMajor(t *testing.T) {
	got, err := FromMajor("50.00", enums.CurrencyNGN)
	require.NoError(t, err)
	assert.EqualValues(t, 5000, got)

	got, err = FromMajor("12", enums.CurrencyUSD)
	require.NoError(t, err)
	assert.EqualValues(t, 1200, got)

	_, err = FromMajor("1.005", enums.CurrencyNGN)
	require.Error(t, err)

	_, err = FromMajor("abc", enums.CurrencyNGN)
	require.Error(t, err)
}
