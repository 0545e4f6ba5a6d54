package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDonationStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to DonationStatus
		allowed  bool
	}{
		{DonationStatusPending, DonationStatusPending, true},
		{DonationStatusPending, DonationStatusSuccess, true},
		{DonationStatusPending, DonationStatusFailed, true},
		{DonationStatusSuccess, DonationStatusSuccess, true},
		{DonationStatusFailed, DonationStatusFailed, true},
		{DonationStatusSuccess, DonationStatusFailed, false},
		{DonationStatusSuccess, DonationStatusPending, false},
		{DonationStatusFailed, DonationStatusSuccess, false},
		{DonationStatusFailed, DonationStatusPending, false},
		{DonationStatus("refunded"), DonationStatusSuccess, false},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.allowed, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestSourcesFor(t *testing.T) {
	assert.ElementsMatch(t, []DonationStatus{DonationStatusPending, DonationStatusSuccess}, SourcesFor(DonationStatusSuccess))
	assert.ElementsMatch(t, []DonationStatus{DonationStatusPending, DonationStatusFailed}, SourcesFor(DonationStatusFailed))
	assert.ElementsMatch(t, []DonationStatus{DonationStatusPending}, SourcesFor(DonationStatusPending))
}

func TestParseDonationStatus(t *testing.T) {
	got, err := ParseDonationStatus(" Success ")
	require.NoError(t, err)
	assert.Equal(t, DonationStatusSuccess, got)
	assert.True(t, got.IsTerminal())

	_, err = ParseDonationStatus("refunded")
	require.Error(t, err)
}

func TestParseCurrency(t *testing.T) {
	got, err := ParseCurrency("ngn")
	require.NoError(t, err)
	assert.Equal(t, CurrencyNGN, got)
	assert.Equal(t, CurrencyNGN, DefaultCurrency)

	_, err = ParseCurrency("BTC")
	require.Error(t, err)
}

func TestEventForStatus(t *testing.T) {
	evt, ok := EventForStatus(DonationStatusSuccess)
	require.True(t, ok)
	assert.Equal(t, EventDonationSucceeded, evt)

	evt, ok = EventForStatus(DonationStatusFailed)
	require.True(t, ok)
	assert.Equal(t, EventDonationFailed, evt)

	_, ok = EventForStatus(DonationStatusPending)
	assert.False(t, ok)
}

func TestWebhookOutcomeAcknowledged(t *testing.T) {
	for _, o := range []WebhookOutcome{WebhookOutcomeProcessed, WebhookOutcomeDuplicate, WebhookOutcomeIgnored, WebhookOutcomeNotFound, WebhookOutcomeAnomaly} {
		assert.Truef(t, o.Acknowledged(), "%s should be acknowledged", o)
	}
	assert.False(t, WebhookOutcomeFailed.Acknowledged())
}
