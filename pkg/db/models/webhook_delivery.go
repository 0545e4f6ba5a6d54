package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/wavelength-fm/station-backend/pkg/enums"
)

// WebhookDelivery is the audit trail of every verified provider callback.
type WebhookDelivery struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	Provider         enums.WebhookProvider `gorm:"column:provider;type:text;not null"`
	EventType        string                `gorm:"column:event_type;not null"`
	PaymentReference *string               `gorm:"column:payment_reference"`
	PayloadHash      string                `gorm:"column:payload_hash;not null"`
	Payload          datatypes.JSON        `gorm:"column:payload;type:jsonb;not null"`
	Outcome          enums.WebhookOutcome  `gorm:"column:outcome;type:text;not null"`
	ErrorMessage     *string               `gorm:"column:error_message"`
	ReceivedAt       time.Time             `gorm:"column:received_at;not null"`
	ProcessedAt      *time.Time            `gorm:"column:processed_at"`
}

func (WebhookDelivery) TableName() string { return "webhook_deliveries" }

func (w *WebhookDelivery) BeforeCreate(*gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}
