package donations

import (
	"github.com/wavelength-fm/station-backend/pkg/db/models"
	"github.com/wavelength-fm/station-backend/pkg/enums"
)

// Transition sources recorded on metrics and outbox payloads.
const (
	SourceWebhook = "webhook"
	SourceAdmin   = "admin"
)

// CreateInput carries a new pledge. Amount is in minor units.
type CreateInput struct {
	FirstName        *string
	LastName         *string
	Email            *string
	Phone            *string
	Amount           *int64
	Currency         string
	PaymentReference string
	PaymentMethod    *string
	Metadata         map[string]any
}

// ListParams filters the admin listing. A nil Status returns every status.
type ListParams struct {
	Status *enums.DonationStatus
	Limit  int
	Cursor string
}

// ListResult holds one page plus the cursor for the next, if any.
type ListResult struct {
	Donations  []models.Donation
	NextCursor string
}

// Patch is a partial update applied by reference. Nil fields are left alone;
// Metadata is merged over the stored keys.
type Patch struct {
	FirstName     *string
	LastName      *string
	Email         *string
	Phone         *string
	PaymentMethod *string
	PaymentStatus *enums.DonationStatus
	Metadata      map[string]any
}

func (p Patch) empty() bool {
	return p.FirstName == nil &&
		p.LastName == nil &&
		p.Email == nil &&
		p.Phone == nil &&
		p.PaymentMethod == nil &&
		p.PaymentStatus == nil &&
		len(p.Metadata) == 0
}

// TransitionResult reports the row after a status change and whether the
// call moved it out of pending. Changed is false for redeliveries.
type TransitionResult struct {
	Donation *models.Donation
	Changed  bool
}
