package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/wavelength-fm/station-backend/pkg/enums"
)

// DonationStatusChangedEvent is published when a pledge resolves. Downstream
// consumers send thank-you mail or update the on-air donor wall.
type DonationStatusChangedEvent struct {
	DonationID       uuid.UUID            `json:"donationId"`
	PaymentReference string               `json:"paymentReference"`
	Status           enums.DonationStatus `json:"status"`
	AmountMinor      int64                `json:"amountMinor"`
	Currency         enums.Currency       `json:"currency"`
	Email            *string              `json:"email,omitempty"`
	FirstName        *string              `json:"firstName,omitempty"`
	Source           string               `json:"source"`
	ChangedAt        time.Time            `json:"changedAt"`
}

func (e DonationStatusChangedEvent) AggregateKey() uuid.UUID { return e.DonationID }
