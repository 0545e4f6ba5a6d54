package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wavelength-fm/station-backend/api/controllers"
	webhookcontrollers "github.com/wavelength-fm/station-backend/api/controllers/webhooks"
	"github.com/wavelength-fm/station-backend/api/middleware"
	"github.com/wavelength-fm/station-backend/pkg/config"
	"github.com/wavelength-fm/station-backend/pkg/logger"
	"github.com/wavelength-fm/station-backend/pkg/metrics"
	"github.com/wavelength-fm/station-backend/pkg/paystack"
	"github.com/wavelength-fm/station-backend/pkg/redis"
)

// jsonBodyLimit caps public and admin JSON bodies.
const jsonBodyLimit = 64 << 10

// RedisStore is the slice of the redis client the HTTP layer depends on.
type RedisStore interface {
	redis.IdempotencyStore
	redis.RateLimiter
	redis.Pinger
}

// Dependencies carries everything the router wires into handlers.
type Dependencies struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             controllers.Pinger
	Redis          RedisStore
	Donations      controllers.DonationService
	Webhooks       webhookcontrollers.PaystackWebhookService
	Verifier       *paystack.Verifier
	HTTPMetrics    *metrics.HTTPMetrics
	WebhookMetrics *metrics.WebhookMetrics
	Gatherer       prometheus.Gatherer
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	var (
		limiter redis.RateLimiter
		idem    redis.IdempotencyStore
		health  = map[string]controllers.Pinger{}
	)
	if deps.DB != nil {
		health["db"] = deps.DB
	}
	if deps.Redis != nil {
		limiter = deps.Redis
		idem = deps.Redis
		health["redis"] = deps.Redis
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.HTTPMetrics),
		middleware.CORS(cfg.App.AllowedOrigins),
	)

	createPolicy := middleware.NewRateLimitPolicy(
		"donation_create",
		cfg.Donation.CreateWindow,
		cfg.Donation.CreateIPLimit,
		0,
	)
	loginPolicy := middleware.NewRateLimitPolicy(
		"admin_login",
		cfg.Admin.LoginWindow,
		cfg.Admin.LoginIPLimit,
		cfg.Admin.LoginEmailLimit,
	)

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, health))
	})

	// The signature covers the exact bytes, so nothing may touch the body
	// before the handler reads it.
	r.With(middleware.MaxBody(cfg.Paystack.WebhookMaxBodyBytes)).
		Post("/donations/webhook", webhookcontrollers.PaystackWebhook(deps.Webhooks, deps.Verifier, deps.WebhookMetrics, logg))

	r.With(
		middleware.MaxBody(jsonBodyLimit),
		middleware.RateLimit(createPolicy, limiter, logg),
		middleware.Idempotency(idem, middleware.IdempotencyPolicy{}, logg),
	).Post("/donations", controllers.CreateDonation(deps.Donations, logg))

	r.Group(func(r chi.Router) {
		r.Use(middleware.AdminAuth(cfg.JWT, logg))
		r.Use(middleware.MaxBody(jsonBodyLimit))
		r.Get("/donations", controllers.ListDonations(deps.Donations, logg))
		r.Put("/donations", controllers.UpdateDonation(deps.Donations, logg))
	})

	r.With(
		middleware.MaxBody(jsonBodyLimit),
		middleware.RateLimit(loginPolicy, limiter, logg),
	).Post("/admin/login", controllers.AdminLogin(cfg, logg))

	return r
}
