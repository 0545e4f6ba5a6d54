package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	paystackwebhook "github.com/wavelength-fm/station-backend/internal/webhooks/paystack"
	"github.com/wavelength-fm/station-backend/pkg/db"
	"github.com/wavelength-fm/station-backend/pkg/db/dbtest"
	"github.com/wavelength-fm/station-backend/pkg/db/models"
	"github.com/wavelength-fm/station-backend/pkg/enums"
	"github.com/wavelength-fm/station-backend/pkg/logger"
	"github.com/wavelength-fm/station-backend/pkg/metrics"
	"github.com/wavelength-fm/station-backend/pkg/outbox"
)

var fixedNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newJob(t *testing.T, dbClient *db.Client, name string, pruner Pruner, days int, m *metrics.CronJobMetrics) *retentionJob {
	t.Helper()
	job, err := NewRetentionJob(RetentionJobParams{
		Name:          name,
		Logger:        logger.Nop(),
		DB:            dbClient,
		Pruner:        pruner,
		RetentionDays: days,
		Metrics:       m,
	})
	require.NoError(t, err)
	rj := job.(*retentionJob)
	rj.now = func() time.Time { return fixedNow }
	return rj
}

func insertOutbox(t *testing.T, conn *gorm.DB, publishedAt *time.Time) uuid.UUID {
	t.Helper()
	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventDonationSucceeded,
		AggregateType: enums.AggregateDonation,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"version":1}`),
		PublishedAt:   publishedAt,
	}
	require.NoError(t, conn.Create(&row).Error)
	return row.ID
}

func TestOutboxRetentionDeletesOnlyOldPublishedRows(t *testing.T) {
	dbClient := dbtest.Open(t)
	conn := dbClient.DB()
	repo := outbox.NewRepository(conn)

	old := fixedNow.Add(-40 * 24 * time.Hour)
	recent := fixedNow.Add(-time.Hour)
	oldPublished := insertOutbox(t, conn, &old)
	recentPublished := insertOutbox(t, conn, &recent)
	pending := insertOutbox(t, conn, nil)

	reg := prometheus.NewRegistry()
	job := newJob(t, dbClient, OutboxRetentionJobName, PrunerFunc(repo.DeletePublishedBefore), 30, metrics.NewCronJobMetrics(reg))
	require.NoError(t, job.Run(context.Background()))

	var remaining []uuid.UUID
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Pluck("id", &remaining).Error)
	assert.ElementsMatch(t, []uuid.UUID{recentPublished, pending}, remaining)
	assert.NotContains(t, remaining, oldPublished)
	assert.Equal(t, 1.0, counter(t, reg, "cron_rows_pruned_total", map[string]string{"job": OutboxRetentionJobName}))
}

func TestDeliveryRetentionPrunesAuditTrail(t *testing.T) {
	dbClient := dbtest.Open(t)
	conn := dbClient.DB()
	repo := paystackwebhook.NewDeliveryRepository(conn)

	for _, received := range []time.Time{fixedNow.Add(-100 * 24 * time.Hour), fixedNow.Add(-91 * 24 * time.Hour), fixedNow.Add(-24 * time.Hour)} {
		require.NoError(t, repo.Record(context.Background(), &models.WebhookDelivery{
			Provider:    enums.WebhookProviderPaystack,
			EventType:   string(enums.WebhookEventChargeSuccess),
			PayloadHash: uuid.NewString(),
			Payload:     datatypes.JSON(`{}`),
			Outcome:     enums.WebhookOutcomeProcessed,
			ReceivedAt:  received,
		}))
	}

	job := newJob(t, dbClient, DeliveryRetentionJobName, PrunerFunc(repo.DeleteReceivedBefore), 90, nil)
	require.NoError(t, job.Run(context.Background()))

	var count int64
	require.NoError(t, conn.Model(&models.WebhookDelivery{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestRetentionJobWrapsPrunerError(t *testing.T) {
	dbClient := dbtest.Open(t)
	failing := PrunerFunc(func(context.Context, *gorm.DB, time.Time) (int64, error) {
		return 0, errors.New("disk full")
	})
	job := newJob(t, dbClient, "broken", failing, 7, nil)

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, fixedNow.Add(-7*24*time.Hour), job.cutoff())
}

func TestNewRetentionJobValidates(t *testing.T) {
	pruner := PrunerFunc(func(context.Context, *gorm.DB, time.Time) (int64, error) { return 0, nil })
	dbClient := dbtest.Open(t)
	cases := map[string]RetentionJobParams{
		"name":      {Logger: logger.Nop(), DB: dbClient, Pruner: pruner, RetentionDays: 1},
		"logger":    {Name: "x", DB: dbClient, Pruner: pruner, RetentionDays: 1},
		"db":        {Name: "x", Logger: logger.Nop(), Pruner: pruner, RetentionDays: 1},
		"pruner":    {Name: "x", Logger: logger.Nop(), DB: dbClient, RetentionDays: 1},
		"retention": {Name: "x", Logger: logger.Nop(), DB: dbClient, Pruner: pruner},
	}
	for name, params := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewRetentionJob(params)
			assert.Error(t, err)
		})
	}
}
