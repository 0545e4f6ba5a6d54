package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/wavelength-fm/station-backend/pkg/logger"
	"github.com/wavelength-fm/station-backend/pkg/metrics"
)

const (
	OutboxRetentionJobName   = "outbox-retention"
	DeliveryRetentionJobName = "webhook-delivery-retention"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Pruner deletes rows older than cutoff and reports how many went.
type Pruner interface {
	DeleteBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// PrunerFunc adapts a repository method to Pruner.
type PrunerFunc func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)

func (f PrunerFunc) DeleteBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	return f(ctx, tx, cutoff)
}

type RetentionJobParams struct {
	Name          string
	Logger        *logger.Logger
	DB            txRunner
	Pruner        Pruner
	RetentionDays int
	Metrics       *metrics.CronJobMetrics
}

func NewRetentionJob(params RetentionJobParams) (Job, error) {
	if params.Name == "" {
		return nil, errors.New("job name required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.DB == nil {
		return nil, errors.New("db runner required")
	}
	if params.Pruner == nil {
		return nil, errors.New("pruner required")
	}
	if params.RetentionDays <= 0 {
		return nil, fmt.Errorf("%s: retention days must be positive", params.Name)
	}
	return &retentionJob{
		name:      params.Name,
		logg:      params.Logger,
		db:        params.DB,
		pruner:    params.Pruner,
		retention: params.RetentionDays,
		metrics:   params.Metrics,
		now:       time.Now,
	}, nil
}

type retentionJob struct {
	name      string
	logg      *logger.Logger
	db        txRunner
	pruner    Pruner
	retention int
	metrics   *metrics.CronJobMetrics
	now       func() time.Time
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) cutoff() time.Time {
	return j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
}

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.cutoff()
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.pruner.DeleteBefore(ctx, tx, cutoff)
		deleted = rows
		return err
	})
	if err != nil {
		return fmt.Errorf("prune before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	j.metrics.AddPruned(j.name, deleted)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	}), "cron.retention_complete")
	return nil
}
