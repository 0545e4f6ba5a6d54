package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/wavelength-fm/station-backend/api/routes"
	"github.com/wavelength-fm/station-backend/internal/donations"
	paystackwebhook "github.com/wavelength-fm/station-backend/internal/webhooks/paystack"
	"github.com/wavelength-fm/station-backend/pkg/config"
	"github.com/wavelength-fm/station-backend/pkg/db"
	"github.com/wavelength-fm/station-backend/pkg/logger"
	"github.com/wavelength-fm/station-backend/pkg/metrics"
	"github.com/wavelength-fm/station-backend/pkg/migrate"
	"github.com/wavelength-fm/station-backend/pkg/outbox"
	"github.com/wavelength-fm/station-backend/pkg/paystack"
	"github.com/wavelength-fm/station-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
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
	webhookMetrics := metrics.NewWebhookMetrics(reg)

	donationService, err := donations.NewService(donations.ServiceParams{
		DB:              dbClient,
		Outbox:          outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		Metrics:         metrics.NewDonationMetrics(reg),
		Logger:          logg,
		DefaultCurrency: cfg.Donation.DefaultCurrency,
	})
	if err != nil {
		return err
	}

	guard, err := paystackwebhook.NewIdempotencyGuard(redisClient, cfg.Paystack.WebhookDedupeTTL, paystackwebhook.GuardScope)
	if err != nil {
		return err
	}
	webhookService, err := paystackwebhook.NewService(paystackwebhook.ServiceParams{
		Donations:  donationService,
		Guard:      guard,
		Deliveries: paystackwebhook.NewDeliveryRepository(dbClient.DB()),
		Metrics:    webhookMetrics,
		Logger:     logg,
	})
	if err != nil {
		return err
	}

	verifier, err := paystack.NewVerifier(cfg.Paystack.SecretKey)
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	if !cfg.Admin.Enabled() {
		logg.Warn(logCtx, "admin account not configured, admin routes will reject every token request")
	}
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Dependencies{
			Config:         cfg,
			Logger:         logg,
			DB:             dbClient,
			Redis:          redisClient,
			Donations:      donationService,
			Webhooks:       webhookService,
			Verifier:       verifier,
			HTTPMetrics:    metrics.NewHTTPMetrics(reg),
			WebhookMetrics: webhookMetrics,
			Gatherer:       reg,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.App.ReadTimeout,
		WriteTimeout:      cfg.App.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownGrace)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
