package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/wavelength-fm/station-backend/pkg/enums"
)

// Donation is a pledge keyed by its provider payment reference.
// Amount is stored in minor units (kobo, cents).
type Donation struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	FirstName        *string              `gorm:"column:first_name" json:"firstName"`
	LastName         *string              `gorm:"column:last_name" json:"lastName"`
	Email            *string              `gorm:"column:email" json:"email"`
	Phone            *string              `gorm:"column:phone" json:"phone"`
	Amount           int64                `gorm:"column:amount_minor;not null" json:"amount"`
	Currency         enums.Currency       `gorm:"column:currency;type:text;not null;default:'NGN'" json:"currency"`
	PaymentReference string               `gorm:"column:payment_reference;not null;uniqueIndex" json:"paymentReference"`
	PaymentStatus    enums.DonationStatus `gorm:"column:payment_status;type:text;not null;default:'pending'" json:"paymentStatus"`
	PaymentMethod    *string              `gorm:"column:payment_method" json:"paymentMethod"`
	Metadata         datatypes.JSONMap    `gorm:"column:metadata;type:jsonb" json:"metadata"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time            `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (Donation) TableName() string { return "donations" }

func (d *Donation) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
