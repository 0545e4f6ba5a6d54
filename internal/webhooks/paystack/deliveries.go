package paystackwebhook

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/wavelength-fm/station-backend/pkg/db/models"
)

// DeliveryRepository writes the webhook audit trail.
type DeliveryRepository struct {
	db *gorm.DB
}

func NewDeliveryRepository(db *gorm.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

// Record inserts one delivery row.
func (r *DeliveryRepository) Record(ctx context.Context, delivery *models.WebhookDelivery) error {
	return r.db.WithContext(ctx).Create(delivery).Error
}

// ListByReference returns deliveries for a payment reference, newest first.
func (r *DeliveryRepository) ListByReference(ctx context.Context, reference string) ([]models.WebhookDelivery, error) {
	var rows []models.WebhookDelivery
	err := r.db.WithContext(ctx).
		Where("payment_reference = ?", reference).
		Order("received_at DESC").
		Find(&rows).Error
	return rows, err
}

// DeleteReceivedBefore prunes the audit trail older than cutoff.
func (r *DeliveryRepository) DeleteReceivedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	res := tx.WithContext(ctx).Where("received_at < ?", cutoff).Delete(&models.WebhookDelivery{})
	return res.RowsAffected, res.Error
}
