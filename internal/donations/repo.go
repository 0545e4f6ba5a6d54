package donations

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/gorm"

	"github.com/wavelength-fm/station-backend/pkg/db"
	"github.com/wavelength-fm/station-backend/pkg/db/models"
	"github.com/wavelength-fm/station-backend/pkg/enums"
	"github.com/wavelength-fm/station-backend/pkg/pagination"
)

const (
	referenceIndexPostgres = "ux_donations_payment_reference"
	referenceIndexSQLite   = "donations.payment_reference"
)

// Repository exposes donation persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a donation repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new donation row.
func (r *Repository) Create(ctx context.Context, donation *models.Donation) error {
	return r.db.WithContext(ctx).Create(donation).Error
}

type listQuery struct {
	status *enums.DonationStatus
	limit  int
	cursor *pagination.Cursor
}

// List returns donations newest first, optionally filtered by status.
func (r *Repository) List(ctx context.Context, opts listQuery) ([]models.Donation, error) {
	query := r.db.WithContext(ctx).Model(&models.Donation{})

	if opts.status != nil {
		query = query.Where("payment_status = ?", string(*opts.status))
	}
	if opts.cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", opts.cursor.CreatedAt, opts.cursor.CreatedAt, opts.cursor.ID)
	}

	query = query.Order("created_at DESC").Order("id DESC").Limit(opts.limit)

	var rows []models.Donation
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindByReference returns the donation for reference or nil when none exists.
func (r *Repository) FindByReference(ctx context.Context, reference string) (*models.Donation, error) {
	var donation models.Donation
	err := r.db.WithContext(ctx).Where("payment_reference = ?", reference).Take(&donation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &donation, nil
}

// UpdateByReference applies updates to the row for reference, but only while
// its status is one of from. An empty from matches any status. The affected
// row count tells the caller whether the guard held.
func (r *Repository) UpdateByReference(ctx context.Context, reference string, from []enums.DonationStatus, updates map[string]any) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Donation{}).Where("payment_reference = ?", reference)
	if len(from) > 0 {
		statuses := make([]string, 0, len(from))
		for _, status := range from {
			statuses = append(statuses, string(status))
		}
		query = query.Where("payment_status IN ?", statuses)
	}
	res := query.Updates(updates)
	return res.RowsAffected, res.Error
}

// mergeMetadataExpr builds the column expression that merges patch over the
// stored metadata object. Postgres merges top-level keys; sqlite uses
// json_patch, which also merges nested objects.
func (r *Repository) mergeMetadataExpr(patch map[string]any) (any, error) {
	raw, err := json.Marshal(patch)
	if err != nil {
		return nil, err
	}
	if db.Dialect(r.db) == "sqlite" {
		return gorm.Expr("json_patch(COALESCE(metadata, '{}'), ?)", string(raw)), nil
	}
	return gorm.Expr("COALESCE(metadata, '{}'::jsonb) || ?::jsonb", string(raw)), nil
}

func isDuplicateReference(err error) bool {
	return db.IsUniqueViolation(err, referenceIndexPostgres) || db.IsUniqueViolation(err, referenceIndexSQLite)
}
