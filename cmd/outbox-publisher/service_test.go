package main

import (
	"context"
	"errors"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/wavelength-fm/station-backend/pkg/config"
	"github.com/wavelength-fm/station-backend/pkg/db"
	"github.com/wavelength-fm/station-backend/pkg/db/dbtest"
	"github.com/wavelength-fm/station-backend/pkg/db/models"
	"github.com/wavelength-fm/station-backend/pkg/enums"
	"github.com/wavelength-fm/station-backend/pkg/logger"
	"github.com/wavelength-fm/station-backend/pkg/metrics"
	"github.com/wavelength-fm/station-backend/pkg/outbox"
	"github.com/wavelength-fm/station-backend/pkg/outbox/payloads"
	"github.com/wavelength-fm/station-backend/pkg/outbox/registry"
)

const testTopic = "donations-topic"

type harness struct {
	dbClient *db.Client
	repo     *outbox.Repository
	dlq      *outbox.DLQRepository
	pub      *fakePublisher
	metrics  *metrics.OutboxMetrics
	reg      *prometheus.Registry
	service  *Service
}

func newHarness(t *testing.T, maxAttempts int) *harness {
	t.Helper()
	dbClient := dbtest.Open(t)
	eventRegistry, err := registry.NewEventRegistry(config.PubSubConfig{DonationsTopic: testTopic})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	h := &harness{
		dbClient: dbClient,
		repo:     outbox.NewRepository(dbClient.DB()),
		dlq:      outbox.NewDLQRepository(dbClient.DB()),
		pub:      &fakePublisher{},
		metrics:  metrics.NewOutboxMetrics(reg),
		reg:      reg,
	}

	cfg := &config.Config{Outbox: config.OutboxConfig{BatchSize: 10, PollIntervalMS: 10, MaxAttempts: maxAttempts}}
	svc, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logger.Nop(),
		DB:            dbClient,
		PubSub:        fakePubSub{},
		Repository:    h.repo,
		Registry:      eventRegistry,
		DLQRepository: h.dlq,
		Metrics:       h.metrics,
		PublisherFactory: func(topic string) publisher {
			if topic != testTopic {
				t.Fatalf("unexpected topic %q", topic)
			}
			return h.pub
		},
	})
	require.NoError(t, err)
	h.service = svc
	return h
}

func (h *harness) emit(t *testing.T, eventType enums.OutboxEventType) uuid.UUID {
	t.Helper()
	aggregateID := uuid.New()
	emitter := outbox.NewService(h.repo, logger.Nop())
	err := h.dbClient.WithTx(context.Background(), func(tx *gorm.DB) error {
		return emitter.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateDonation,
			AggregateID:   aggregateID,
			Data: payloads.DonationStatusChangedEvent{
				DonationID:       aggregateID,
				PaymentReference: "don_" + aggregateID.String(),
				Status:           enums.DonationStatusSuccess,
				AmountMinor:      500000,
				Currency:         enums.CurrencyNGN,
				Source:           "webhook",
				ChangedAt:        time.Now().UTC(),
			},
		})
	})
	require.NoError(t, err)
	return aggregateID
}

func (h *harness) rows(t *testing.T, aggregateID uuid.UUID) []models.OutboxEvent {
	t.Helper()
	rows, err := h.repo.ListByAggregate(context.Background(), aggregateID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	return rows
}

func TestProcessBatchPublishesAndMarksRows(t *testing.T) {
	h := newHarness(t, 5)
	aggregateID := h.emit(t, enums.EventDonationSucceeded)

	processed, err := h.service.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	require.Len(t, h.pub.messages, 1)
	msg := h.pub.messages[0]
	assert.Equal(t, string(enums.EventDonationSucceeded), msg.Attributes["event_type"])
	assert.Equal(t, aggregateID.String(), msg.Attributes["aggregate_id"])
	assert.Equal(t, aggregateID.String(), msg.OrderingKey)
	assert.NotEmpty(t, msg.Attributes["event_id"])

	row := h.rows(t, aggregateID)[0]
	assert.NotNil(t, row.PublishedAt)
	assert.Equal(t, 1.0, counterValue(t, h.reg, "outbox_published_total"))

	processed, err = h.service.processBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, processed, "published rows are not fetched again")
}

func TestProcessBatchContinuesAfterTransientFailure(t *testing.T) {
	h := newHarness(t, 5)
	first := h.emit(t, enums.EventDonationSucceeded)
	second := h.emit(t, enums.EventDonationFailed)
	h.pub.failNext(first, errors.New("unavailable"))

	processed, err := h.service.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	failedRow := h.rows(t, first)[0]
	assert.Nil(t, failedRow.PublishedAt)
	assert.Equal(t, 1, failedRow.AttemptCount)
	require.NotNil(t, failedRow.LastError)
	assert.Contains(t, *failedRow.LastError, "unavailable")

	assert.NotNil(t, h.rows(t, second)[0].PublishedAt)

	processed, err = h.service.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.NotNil(t, h.rows(t, first)[0].PublishedAt, "retry publishes the row")
}

func TestProcessBatchDeadLettersAfterMaxAttempts(t *testing.T) {
	h := newHarness(t, 2)
	aggregateID := h.emit(t, enums.EventDonationSucceeded)
	h.pub.failNext(aggregateID, errors.New("down"), errors.New("still down"))

	for i := 0; i < 2; i++ {
		_, err := h.service.processBatch(context.Background())
		require.NoError(t, err)
	}

	row := h.rows(t, aggregateID)[0]
	assert.NotNil(t, row.PublishedAt, "dead-lettered rows leave the queue")

	entry, err := h.dlq.FindByEventID(context.Background(), row.ID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, entry.ErrorReason)
	assert.Equal(t, 2, entry.AttemptCount)
	assert.JSONEq(t, string(row.Payload), string(entry.Payload))
	assert.Equal(t, 2.0, counterValue(t, h.reg, "outbox_publish_failures_total"))
	assert.Equal(t, 1.0, counterValue(t, h.reg, "outbox_dead_lettered_total"))
}

func TestProcessBatchDeadLettersUndecodableRows(t *testing.T) {
	h := newHarness(t, 5)
	row := models.OutboxEvent{
		EventType:     enums.EventDonationSucceeded,
		AggregateType: enums.AggregateDonation,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"version":1,"eventId":"x","data":null}`),
	}
	require.NoError(t, h.repo.Insert(h.dbClient.DB(), row))

	processed, err := h.service.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Empty(t, h.pub.messages)

	stored := h.rows(t, row.AggregateID)[0]
	entry, err := h.dlq.FindByEventID(context.Background(), stored.ID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, entry.ErrorReason)
}

func TestNewServiceReportsAllMissingDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
	for _, want := range []string{"config", "logger", "database", "pubsub", "outbox repository", "event registry", "dlq"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestEnsureReadinessAggregatesPingErrors(t *testing.T) {
	h := newHarness(t, 5)
	h.service.pubsub = fakePubSub{err: errors.New("no topic")}
	err := h.service.ensureReadiness(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pubsub ping failed")
}

func TestPacerBacksOffAndRecovers(t *testing.T) {
	base := 100 * time.Millisecond
	p := newPacer(base, time.Second)

	var waits []time.Duration
	for i := 0; i < 5; i++ {
		waits = append(waits, p.failed())
	}
	for i, floor := range []time.Duration{200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond, time.Second, time.Second} {
		assert.GreaterOrEqual(t, waits[i], floor)
		assert.Less(t, waits[i], floor+jitterWindow)
	}

	idle := p.idle()
	assert.GreaterOrEqual(t, idle, base)
	assert.Less(t, idle, base+jitterWindow)
	assert.Less(t, p.failed(), 200*time.Millisecond+jitterWindow, "idle ends the failure streak")
}

func TestJitterStaysInWindow(t *testing.T) {
	assert.Zero(t, jitter(0))
	for i := 0; i < 20; i++ {
		d := jitter(time.Second)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.Less(t, d, time.Second+jitterWindow)
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

type fakePubSub struct {
	err error
}

func (f fakePubSub) Ping(context.Context) error           { return f.err }
func (f fakePubSub) Publisher(string) *gcppubsub.Publisher { return nil }

// fakePublisher fails queued errors per aggregate id, then succeeds.
type fakePublisher struct {
	messages []*gcppubsub.Message
	failures map[string][]error
}

func (p *fakePublisher) failNext(aggregateID uuid.UUID, errs ...error) {
	if p.failures == nil {
		p.failures = map[string][]error{}
	}
	p.failures[aggregateID.String()] = append(p.failures[aggregateID.String()], errs...)
}

func (p *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	var err error
	key := msg.Attributes["aggregate_id"]
	if queued := p.failures[key]; len(queued) > 0 {
		err = queued[0]
		p.failures[key] = queued[1:]
	}
	if err == nil {
		p.messages = append(p.messages, msg)
	}
	return fakePublishResult{err: err}
}

type fakePublishResult struct {
	err error
}

func (r fakePublishResult) Get(context.Context) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return uuid.NewString(), nil
}
