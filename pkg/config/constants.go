package config

const (
	EnvPrefix = "STATION"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	EnvAppEnv           = "STATION_APP_ENV"
	EnvPort             = "STATION_APP_PORT"
	EnvDBDSN            = "STATION_DB_DSN"
	EnvDBHost           = "STATION_DB_HOST"
	EnvDBUser           = "STATION_DB_USER"
	EnvDBName           = "STATION_DB_NAME"
	EnvDBPassword       = "STATION_DB_PASSWORD"
	EnvUseSQLite        = "STATION_USE_SQLITE"
	EnvRedisURL         = "STATION_REDIS_URL"
	EnvJWTSecret        = "STATION_JWT_SECRET"
	EnvPaystackSecret   = "STATION_PAYSTACK_SECRET_KEY"
	EnvDefaultCurrency  = "STATION_DONATION_DEFAULT_CURRENCY"
	EnvAllowedOrigins   = "STATION_ALLOWED_ORIGINS"
	EnvDonationsTopic   = "STATION_PUBSUB_DONATIONS_TOPIC"
	EnvWebhookMaxBody   = "STATION_WEBHOOK_MAX_BODY_BYTES"
	EnvAdminEmail       = "STATION_ADMIN_EMAIL"
	EnvAdminPassword    = "STATION_ADMIN_PASSWORD_HASH"
	EnvGCPProjectID     = "STATION_GCP_PROJECT_ID"
	EnvDBQueryTimeout   = "STATION_DB_QUERY_TIMEOUT"
	EnvOutboxMaxAttempt = "STATION_OUTBOX_MAX_ATTEMPTS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
