package donations

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/wavelength-fm/station-backend/pkg/db/models"
	"github.com/wavelength-fm/station-backend/pkg/enums"
	pkgerrors "github.com/wavelength-fm/station-backend/pkg/errors"
	"github.com/wavelength-fm/station-backend/pkg/logger"
	"github.com/wavelength-fm/station-backend/pkg/metrics"
	"github.com/wavelength-fm/station-backend/pkg/money"
	"github.com/wavelength-fm/station-backend/pkg/outbox"
	"github.com/wavelength-fm/station-backend/pkg/outbox/payloads"
	"github.com/wavelength-fm/station-backend/pkg/pagination"
)

// providerPayloadKey holds the raw provider data merged on success.
const providerPayloadKey = "provider_payload"

type txRunner interface {
	DB() *gorm.DB
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	WithTimeout(ctx context.Context) (context.Context, context.CancelFunc)
}

// Store is the donation surface used by the HTTP and webhook layers.
type Store interface {
	Create(ctx context.Context, input CreateInput) (*models.Donation, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	UpdateByReference(ctx context.Context, reference string, patch Patch) (*models.Donation, error)
	MarkSuccess(ctx context.Context, reference string, providerPayload map[string]any) (*TransitionResult, error)
	MarkFailed(ctx context.Context, reference string) (*TransitionResult, error)
}

type ServiceParams struct {
	DB              txRunner
	Outbox          outbox.Emitter
	Metrics         *metrics.DonationMetrics
	Logger          *logger.Logger
	DefaultCurrency string
	Now             func() time.Time
}

type Service struct {
	db              txRunner
	outbox          outbox.Emitter
	metrics         *metrics.DonationMetrics
	logg            *logger.Logger
	validate        *validator.Validate
	defaultCurrency enums.Currency
	now             func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	currency := enums.DefaultCurrency
	if strings.TrimSpace(params.DefaultCurrency) != "" {
		parsed, err := enums.ParseCurrency(params.DefaultCurrency)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "default currency")
		}
		currency = parsed
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		db:              params.DB,
		outbox:          params.Outbox,
		metrics:         params.Metrics,
		logg:            logg,
		validate:        validator.New(),
		defaultCurrency: currency,
		now:             now,
	}, nil
}

func (s *Service) repo() *Repository {
	return NewRepository(s.db.DB())
}

// Create stores a pending pledge. Validation failures write nothing.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.Donation, error) {
	donation, err := s.buildDonation(input)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()

	if err := s.repo().Create(ctx, donation); err != nil {
		if isDuplicateReference(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment reference already exists").
				WithDetails(map[string]any{"paymentReference": donation.PaymentReference})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create donation")
	}

	s.metrics.IncCreated(string(donation.Currency))
	logCtx := s.logg.WithFields(s.logg.WithDonationReference(ctx, donation.PaymentReference), map[string]any{
		"amount": money.Format(donation.Amount, donation.Currency),
	})
	s.logg.Info(logCtx, "donation created")
	return donation, nil
}

func (s *Service) buildDonation(input CreateInput) (*models.Donation, error) {
	fields := map[string]any{}
	if input.Amount == nil {
		fields["amount"] = "required"
	} else if *input.Amount <= 0 {
		fields["amount"] = "must be greater than zero"
	}

	currency := s.defaultCurrency
	if strings.TrimSpace(input.Currency) != "" {
		parsed, err := enums.ParseCurrency(input.Currency)
		if err != nil {
			fields["currency"] = "unsupported currency"
		} else {
			currency = parsed
		}
	}

	email := trimmed(input.Email)
	if email != nil {
		if err := s.validate.Var(*email, "email"); err != nil {
			fields["email"] = "invalid email"
		}
	}

	if len(fields) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid donation").WithDetails(fields)
	}

	reference := strings.TrimSpace(input.PaymentReference)
	if reference == "" {
		reference = "don_" + uuid.NewString()
	}

	now := s.now().UTC()
	donation := &models.Donation{
		FirstName:        trimmed(input.FirstName),
		LastName:         trimmed(input.LastName),
		Email:            email,
		Phone:            trimmed(input.Phone),
		Amount:           *input.Amount,
		Currency:         currency,
		PaymentReference: reference,
		PaymentStatus:    enums.DonationStatusPending,
		PaymentMethod:    trimmed(input.PaymentMethod),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if len(input.Metadata) > 0 {
		donation.Metadata = datatypes.JSONMap(input.Metadata)
	}
	return donation, nil
}

// List returns donations newest first. The page size is capped at
// pagination.MaxLimit.
func (s *Service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status")
	}
	if params.Limit < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "limit must be positive")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)

	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()

	rows, err := s.repo().List(ctx, listQuery{
		status: params.Status,
		limit:  limit + 1,
		cursor: cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list donations")
	}

	page, next := pagination.Page(rows, limit, func(d models.Donation) pagination.Cursor {
		return pagination.Cursor{CreatedAt: d.CreatedAt, ID: d.ID}
	})
	return &ListResult{Donations: page, NextCursor: next}, nil
}

// UpdateByReference applies an admin patch. Unknown references are
// NOT_FOUND and never create rows; illegal status moves are STATE_CONFLICT.
func (s *Service) UpdateByReference(ctx context.Context, reference string, patch Patch) (*models.Donation, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paymentReference is required")
	}
	if patch.PaymentStatus != nil && !patch.PaymentStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid paymentStatus")
	}
	if email := trimmed(patch.Email); email != nil {
		if err := s.validate.Var(*email, "email"); err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid email").
				WithDetails(map[string]any{"email": "invalid email"})
		}
	}

	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()

	if patch.empty() {
		donation, err := s.repo().FindByReference(ctx, reference)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load donation")
		}
		if donation == nil {
			return nil, notFound(reference)
		}
		return donation, nil
	}

	updates := map[string]any{}
	setString(updates, "first_name", patch.FirstName)
	setString(updates, "last_name", patch.LastName)
	setString(updates, "email", patch.Email)
	setString(updates, "phone", patch.Phone)
	setString(updates, "payment_method", patch.PaymentMethod)

	var result *TransitionResult
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		result, err = s.apply(ctx, tx, reference, patch.PaymentStatus, updates, patch.Metadata, SourceAdmin)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, result, SourceAdmin)
	return result.Donation, nil
}

// MarkSuccess moves a pledge to success and merges the provider payload into
// its metadata. Re-applying it to a successful pledge only re-merges.
func (s *Service) MarkSuccess(ctx context.Context, reference string, providerPayload map[string]any) (*TransitionResult, error) {
	return s.mark(ctx, reference, enums.DonationStatusSuccess, successPatch(providerPayload))
}

// MarkFailed moves a pledge to failed. Re-applying it is a no-op.
func (s *Service) MarkFailed(ctx context.Context, reference string) (*TransitionResult, error) {
	return s.mark(ctx, reference, enums.DonationStatusFailed, nil)
}

func (s *Service) mark(ctx context.Context, reference string, target enums.DonationStatus, metadata map[string]any) (*TransitionResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference is required")
	}

	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()

	var result *TransitionResult
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		result, err = s.apply(ctx, tx, reference, &target, map[string]any{}, metadata, SourceWebhook)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, result, SourceWebhook)
	return result, nil
}

// successPatch copies the provider's own metadata keys to the top level and
// keeps the full payload under provider_payload.
func successPatch(providerPayload map[string]any) map[string]any {
	if providerPayload == nil {
		return nil
	}
	patch := map[string]any{}
	if inner, ok := providerPayload["metadata"].(map[string]any); ok {
		for k, v := range inner {
			patch[k] = v
		}
	}
	patch[providerPayloadKey] = providerPayload
	return patch
}

// apply runs the guarded update inside tx. With a target status it tries each
// legal source in turn, pending first, so the caller learns whether this call
// performed the transition. Zero matched rows are classified by a re-read.
func (s *Service) apply(ctx context.Context, tx *gorm.DB, reference string, target *enums.DonationStatus, updates map[string]any, metadata map[string]any, source string) (*TransitionResult, error) {
	repo := NewRepository(tx)

	if len(metadata) > 0 {
		expr, err := repo.mergeMetadataExpr(metadata)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "encode metadata")
		}
		updates["metadata"] = expr
	}
	updates["updated_at"] = s.now().UTC()

	changed := false
	matched := false
	if target == nil {
		affected, err := repo.UpdateByReference(ctx, reference, nil, updates)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update donation")
		}
		matched = affected > 0
	} else {
		updates["payment_status"] = string(*target)
		for _, from := range orderedSources(*target) {
			affected, err := repo.UpdateByReference(ctx, reference, []enums.DonationStatus{from}, updates)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update donation status")
			}
			if affected > 0 {
				matched = true
				changed = from != *target
				break
			}
		}
	}

	donation, err := repo.FindByReference(ctx, reference)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload donation")
	}
	if donation == nil {
		return nil, notFound(reference)
	}
	if !matched && target == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "donation update matched no rows")
	}
	if !matched {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot move donation from %s to %s", donation.PaymentStatus, *target).
			WithDetails(map[string]any{
				"paymentReference": reference,
				"currentStatus":    string(donation.PaymentStatus),
				"requestedStatus":  string(*target),
			})
	}

	if changed {
		if err := s.emitTransition(ctx, tx, donation, source); err != nil {
			return nil, err
		}
	}
	return &TransitionResult{Donation: donation, Changed: changed}, nil
}

// orderedSources lists the legal sources for target with the actual state
// changes ahead of the idempotent re-apply.
func orderedSources(target enums.DonationStatus) []enums.DonationStatus {
	sources := enums.SourcesFor(target)
	ordered := make([]enums.DonationStatus, 0, len(sources))
	for _, from := range sources {
		if from != target {
			ordered = append(ordered, from)
		}
	}
	for _, from := range sources {
		if from == target {
			ordered = append(ordered, from)
		}
	}
	return ordered
}

func (s *Service) emitTransition(ctx context.Context, tx *gorm.DB, donation *models.Donation, source string) error {
	eventType, ok := enums.EventForStatus(donation.PaymentStatus)
	if !ok {
		return nil
	}
	actor := &outbox.ActorRef{Subject: source, Role: source}
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateDonation,
		AggregateID:   donation.ID,
		Actor:         actor,
		OccurredAt:    donation.UpdatedAt,
		Data: payloads.DonationStatusChangedEvent{
			DonationID:       donation.ID,
			PaymentReference: donation.PaymentReference,
			Status:           donation.PaymentStatus,
			AmountMinor:      donation.Amount,
			Currency:         donation.Currency,
			Email:            donation.Email,
			FirstName:        donation.FirstName,
			Source:           source,
			ChangedAt:        donation.UpdatedAt,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue donation event")
	}
	return nil
}

func (s *Service) afterTransition(ctx context.Context, result *TransitionResult, source string) {
	if result == nil || result.Donation == nil {
		return
	}
	donation := result.Donation
	logCtx := s.logg.WithFields(s.logg.WithDonationReference(ctx, donation.PaymentReference), map[string]any{
		"status":  string(donation.PaymentStatus),
		"source":  source,
		"changed": result.Changed,
	})
	if !result.Changed {
		s.logg.Debug(logCtx, "donation updated")
		return
	}
	s.metrics.IncTransition(string(donation.PaymentStatus), source)
	if donation.PaymentStatus == enums.DonationStatusSuccess {
		s.metrics.AddSettled(string(donation.Currency), donation.Amount)
	}
	s.logg.Info(logCtx, fmt.Sprintf("donation %s", donation.PaymentStatus))
}

func notFound(reference string) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "donation not found").
		WithDetails(map[string]any{"paymentReference": reference})
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}

func setString(updates map[string]any, column string, value *string) {
	if value == nil {
		return
	}
	updates[column] = trimmed(value)
}
