package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/wavelength-fm/station-backend/internal/cron"
	paystackwebhook "github.com/wavelength-fm/station-backend/internal/webhooks/paystack"
	"github.com/wavelength-fm/station-backend/pkg/config"
	"github.com/wavelength-fm/station-backend/pkg/db"
	"github.com/wavelength-fm/station-backend/pkg/instance"
	"github.com/wavelength-fm/station-backend/pkg/logger"
	"github.com/wavelength-fm/station-backend/pkg/metrics"
	"github.com/wavelength-fm/station-backend/pkg/migrate"
	"github.com/wavelength-fm/station-backend/pkg/outbox"
	"github.com/wavelength-fm/station-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	once := flag.Bool("once", false, "run a single maintenance cycle and exit")
	flag.Parse()

	if err := run(cfg, logg, *once); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(context.Background(), "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger, once bool) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	cronMetrics := metrics.NewCronJobMetrics(reg)

	outboxRepo := outbox.NewRepository(dbClient.DB())
	deliveries := paystackwebhook.NewDeliveryRepository(dbClient.DB())

	outboxJob, err := cron.NewRetentionJob(cron.RetentionJobParams{
		Name:          cron.OutboxRetentionJobName,
		Logger:        logg,
		DB:            dbClient,
		Pruner:        cron.PrunerFunc(outboxRepo.DeletePublishedBefore),
		RetentionDays: cfg.Maintenance.OutboxRetentionDays,
		Metrics:       cronMetrics,
	})
	if err != nil {
		return err
	}
	deliveryJob, err := cron.NewRetentionJob(cron.RetentionJobParams{
		Name:          cron.DeliveryRetentionJobName,
		Logger:        logg,
		DB:            dbClient,
		Pruner:        cron.PrunerFunc(deliveries.DeleteReceivedBefore),
		RetentionDays: cfg.Maintenance.DeliveryRetentionDays,
		Metrics:       cronMetrics,
	})
	if err != nil {
		return err
	}

	lock, err := cron.NewRedisLock(redisClient, cron.LockKey(cfg.App.Env), cfg.Maintenance.LockTTL)
	if err != nil {
		return err
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   cron.NewRegistry(outboxJob, deliveryJob),
		Lock:       lock,
		Metrics:    cronMetrics,
		Interval:   cfg.Maintenance.Interval,
		JobTimeout: cfg.Maintenance.JobTimeout,
	})
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "cron-worker",
		"instance":    instance.GetID(),
	})

	if addr := cfg.Maintenance.MetricsAddr; addr != "" && !once {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsServer := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logg.Error(ctx, "metrics listener failed", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err = multierr.Append(err, metricsServer.Shutdown(shutdownCtx))
		}()
	}

	if once {
		report, err := service.RunOnce(ctx)
		logg.Info(logg.WithFields(ctx, map[string]any{
			"skipped": report.Skipped,
			"ran":     report.Ran,
			"failed":  report.Failed,
		}), "cron.once_finished")
		return err
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
	return nil
}
