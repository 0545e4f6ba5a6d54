package paystackwebhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/wavelength-fm/station-backend/internal/donations"
	"github.com/wavelength-fm/station-backend/pkg/db/models"
	"github.com/wavelength-fm/station-backend/pkg/enums"
	pkgerrors "github.com/wavelength-fm/station-backend/pkg/errors"
	"github.com/wavelength-fm/station-backend/pkg/logger"
	"github.com/wavelength-fm/station-backend/pkg/metrics"
	"github.com/wavelength-fm/station-backend/pkg/money"
)

// GuardScope namespaces delivery digests in redis.
const GuardScope = "paystack_webhook"

type donationStore interface {
	MarkSuccess(ctx context.Context, reference string, providerPayload map[string]any) (*donations.TransitionResult, error)
	MarkFailed(ctx context.Context, reference string) (*donations.TransitionResult, error)
}

type deliveryGuard interface {
	CheckAndMark(ctx context.Context, digest string) (bool, error)
	Delete(ctx context.Context, digest string) error
}

type deliveryRecorder interface {
	Record(ctx context.Context, delivery *models.WebhookDelivery) error
}

type ServiceParams struct {
	Donations  donationStore
	Guard      deliveryGuard
	Deliveries deliveryRecorder
	Metrics    *metrics.WebhookMetrics
	Logger     *logger.Logger
	Now        func() time.Time
}

// Service routes verified deliveries to the donation store.
type Service struct {
	donations  donationStore
	guard      deliveryGuard
	deliveries deliveryRecorder
	metrics    *metrics.WebhookMetrics
	logg       *logger.Logger
	now        func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Donations == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "donation store required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		donations:  params.Donations,
		guard:      params.Guard,
		deliveries: params.Deliveries,
		metrics:    params.Metrics,
		logg:       logg,
		now:        now,
	}, nil
}

// Process handles one verified raw body. Only a failed outcome carries an
// error; every other outcome is acknowledged to the provider.
func (s *Service) Process(ctx context.Context, raw []byte) (enums.WebhookOutcome, error) {
	started := s.now()
	digest := Digest(raw)

	event, parseErr := ParseEvent(raw)
	eventType := "malformed"
	if event != nil {
		eventType = event.Type()
		ctx = s.logg.WithEventType(ctx, eventType)
		if ref := event.Reference(); ref != "" {
			ctx = s.logg.WithDonationReference(ctx, ref)
		}
	}

	outcome, err := s.process(ctx, digest, event, parseErr)

	s.metrics.ObserveDelivery(eventType, string(outcome), s.now().Sub(started))
	s.record(ctx, digest, raw, event, eventType, outcome, err, started)
	return outcome, err
}

func (s *Service) process(ctx context.Context, digest string, event Event, parseErr error) (enums.WebhookOutcome, error) {
	if parseErr != nil {
		s.logg.Warn(s.logg.WithField(ctx, "reason", parseErr.Error()), "webhook.malformed")
		return enums.WebhookOutcomeIgnored, nil
	}

	if s.guard != nil {
		seen, err := s.guard.CheckAndMark(ctx, digest)
		switch {
		case err != nil:
			// The store is idempotent on its own; carry on without dedupe.
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "webhook.dedupe_unavailable")
		case seen:
			s.logg.Info(ctx, "webhook.duplicate")
			return enums.WebhookOutcomeDuplicate, nil
		}
	}

	outcome, err := s.HandleEvent(ctx, event)
	if err != nil && s.guard != nil {
		if delErr := s.guard.Delete(ctx, digest); delErr != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", delErr.Error()), "webhook.dedupe_release_failed")
		}
	}
	return outcome, err
}

// HandleEvent routes a decoded event. Unknown types are ignored, unknown
// references and illegal transitions are acknowledged and logged.
func (s *Service) HandleEvent(ctx context.Context, event Event) (enums.WebhookOutcome, error) {
	var err error
	switch e := event.(type) {
	case ChargeSuccess:
		var res *donations.TransitionResult
		res, err = s.donations.MarkSuccess(ctx, e.Ref, e.Data)
		if err == nil {
			s.checkAmount(ctx, e, res)
		}
	case ChargeFailed:
		_, err = s.donations.MarkFailed(ctx, e.Ref)
	case Unknown:
		s.logg.Info(ctx, "webhook.ignored")
		return enums.WebhookOutcomeIgnored, nil
	default:
		s.logg.Warn(ctx, "webhook.unhandled_variant")
		return enums.WebhookOutcomeIgnored, nil
	}

	switch {
	case err == nil:
		return enums.WebhookOutcomeProcessed, nil
	case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		s.logg.Warn(ctx, "webhook.reference_not_found")
		return enums.WebhookOutcomeNotFound, nil
	case pkgerrors.IsCode(err, pkgerrors.CodeStateConflict):
		s.logg.Warn(s.logg.WithField(ctx, "anomaly", err.Error()), "webhook.transition_rejected")
		return enums.WebhookOutcomeAnomaly, nil
	case pkgerrors.IsCode(err, pkgerrors.CodeValidation):
		s.logg.Warn(s.logg.WithField(ctx, "reason", err.Error()), "webhook.invalid_event")
		return enums.WebhookOutcomeIgnored, nil
	default:
		return enums.WebhookOutcomeFailed, err
	}
}

// checkAmount logs a charge that settled for a different amount or currency
// than was pledged. The transition stands.
func (s *Service) checkAmount(ctx context.Context, event ChargeSuccess, res *donations.TransitionResult) {
	if res == nil || res.Donation == nil || !res.Changed {
		return
	}
	pledged := res.Donation
	currencyMismatch := event.Currency != "" && !strings.EqualFold(event.Currency, string(pledged.Currency))
	amountMismatch := event.Amount > 0 && event.Amount != pledged.Amount
	if !currencyMismatch && !amountMismatch {
		return
	}
	charged := enums.Currency(event.Currency)
	if charged == "" {
		charged = pledged.Currency
	}
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"pledged": money.Format(pledged.Amount, pledged.Currency),
		"charged": money.Format(event.Amount, charged),
	}), "webhook.amount_mismatch")
}

func (s *Service) record(ctx context.Context, digest string, raw []byte, event Event, eventType string, outcome enums.WebhookOutcome, handleErr error, received time.Time) {
	if s.deliveries == nil {
		return
	}
	processed := s.now().UTC()
	row := &models.WebhookDelivery{
		Provider:    enums.WebhookProviderPaystack,
		EventType:   eventType,
		PayloadHash: digest,
		Payload:     payloadJSON(raw),
		Outcome:     outcome,
		ReceivedAt:  received.UTC(),
		ProcessedAt: &processed,
	}
	if event != nil {
		if ref := event.Reference(); ref != "" {
			row.PaymentReference = &ref
		}
	}
	if handleErr != nil {
		msg := handleErr.Error()
		row.ErrorMessage = &msg
	}
	if err := s.deliveries.Record(context.WithoutCancel(ctx), row); err != nil {
		s.logg.Error(ctx, "webhook.record_failed", err)
	}
}

// payloadJSON keeps the body as stored JSON, wrapping it when it does not
// parse so the audit row still satisfies the column.
func payloadJSON(raw []byte) datatypes.JSON {
	if isJSON(raw) {
		return datatypes.JSON(raw)
	}
	wrapped, _ := json.Marshal(map[string]string{"raw": string(raw)})
	return datatypes.JSON(wrapped)
}

func isJSON(raw []byte) bool {
	var v any
	return len(raw) > 0 && json.Unmarshal(raw, &v) == nil
}

// Digest is the dedupe key for a delivery body.
func Digest(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
