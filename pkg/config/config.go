package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Admin        AdminConfig
	Password     PasswordConfig
	Paystack     PaystackConfig
	Donation     DonationConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Maintenance  MaintenanceConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env            string        `envconfig:"STATION_APP_ENV" required:"true"`
	Port           string        `envconfig:"STATION_APP_PORT" required:"true"`
	LogLevel       string        `envconfig:"STATION_LOG_LEVEL" default:"info"`
	LogFormat      string        `envconfig:"STATION_LOG_FORMAT" default:"json"`
	LogWarnStack   bool          `envconfig:"STATION_LOG_WARN_STACK" default:"false"`
	AllowedOrigins []string      `envconfig:"STATION_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	ReadTimeout    time.Duration `envconfig:"STATION_HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout   time.Duration `envconfig:"STATION_HTTP_WRITE_TIMEOUT" default:"30s"`
	ShutdownGrace  time.Duration `envconfig:"STATION_HTTP_SHUTDOWN_GRACE" default:"10s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"STATION_DB_DSN"`
	Driver string `envconfig:"STATION_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STATION_DB_HOST"`
	LegacyPort     int    `envconfig:"STATION_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STATION_DB_USER"`
	LegacyPassword string `envconfig:"STATION_DB_PASSWORD"`
	LegacyName     string `envconfig:"STATION_DB_NAME"`
	LegacySSLMode  string `envconfig:"STATION_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"STATION_SQLITE_PATH" default:"station.db"`

	MaxOpenConns    int           `envconfig:"STATION_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STATION_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STATION_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STATION_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"STATION_DB_SLOW_QUERY" default:"500ms"`
	QueryTimeout    time.Duration `envconfig:"STATION_DB_QUERY_TIMEOUT" default:"5s"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STATION_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STATION_REDIS_ADDR"`
	Password     string        `envconfig:"STATION_REDIS_PASSWORD"`
	DB           int           `envconfig:"STATION_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STATION_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STATION_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STATION_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STATION_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STATION_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"STATION_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"STATION_JWT_ISSUER" default:"station-backend"`
	ExpirationMinutes int    `envconfig:"STATION_JWT_EXPIRATION_MINUTES" default:"60"`
}

// TTL returns the admin access token lifetime.
func (j JWTConfig) TTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// AdminConfig describes the single operator account behind the admin shell.
type AdminConfig struct {
	Email           string        `envconfig:"STATION_ADMIN_EMAIL"`
	PasswordHash    string        `envconfig:"STATION_ADMIN_PASSWORD_HASH"`
	LoginWindow     time.Duration `envconfig:"STATION_ADMIN_LOGIN_WINDOW" default:"1m"`
	LoginIPLimit    int           `envconfig:"STATION_ADMIN_LOGIN_IP_LIMIT" default:"10"`
	LoginEmailLimit int           `envconfig:"STATION_ADMIN_LOGIN_EMAIL_LIMIT" default:"5"`
}

// Enabled reports whether an operator account has been configured.
func (a AdminConfig) Enabled() bool {
	return strings.TrimSpace(a.Email) != "" && strings.TrimSpace(a.PasswordHash) != ""
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"STATION_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"STATION_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"STATION_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"STATION_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"STATION_ARGON_KEY_LEN" default:"32"`
}

type PaystackConfig struct {
	SecretKey           string        `envconfig:"STATION_PAYSTACK_SECRET_KEY" required:"true"`
	WebhookMaxBodyBytes int64         `envconfig:"STATION_WEBHOOK_MAX_BODY_BYTES" default:"1048576"`
	WebhookDedupeTTL    time.Duration `envconfig:"STATION_WEBHOOK_DEDUPE_TTL" default:"72h"`
}

type DonationConfig struct {
	DefaultCurrency string        `envconfig:"STATION_DONATION_DEFAULT_CURRENCY" default:"NGN"`
	CreateWindow    time.Duration `envconfig:"STATION_DONATION_CREATE_WINDOW" default:"1m"`
	CreateIPLimit   int           `envconfig:"STATION_DONATION_CREATE_IP_LIMIT" default:"30"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STATION_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STATION_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"STATION_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"STATION_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	DonationsTopic string `envconfig:"STATION_PUBSUB_DONATIONS_TOPIC" default:"station-donation-events"`
}

type OutboxConfig struct {
	BatchSize      int    `envconfig:"STATION_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int    `envconfig:"STATION_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int    `envconfig:"STATION_OUTBOX_MAX_ATTEMPTS" default:"10"`
	MetricsAddr    string `envconfig:"STATION_OUTBOX_METRICS_ADDR" default:":9091"`
}

// MaintenanceConfig drives cmd/cron-worker.
type MaintenanceConfig struct {
	Interval              time.Duration `envconfig:"STATION_MAINTENANCE_INTERVAL" default:"24h"`
	LockTTL               time.Duration `envconfig:"STATION_MAINTENANCE_LOCK_TTL" default:"1h"`
	JobTimeout            time.Duration `envconfig:"STATION_MAINTENANCE_JOB_TIMEOUT" default:"10m"`
	OutboxRetentionDays   int           `envconfig:"STATION_OUTBOX_RETENTION_DAYS" default:"30"`
	DeliveryRetentionDays int           `envconfig:"STATION_WEBHOOK_DELIVERY_RETENTION_DAYS" default:"90"`
	MetricsAddr           string        `envconfig:"STATION_MAINTENANCE_METRICS_ADDR" default:":9092"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DriverSQLite
		if db.DSN == "" {
			db.DSN = db.SQLitePath
		}
		return nil
	}
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
