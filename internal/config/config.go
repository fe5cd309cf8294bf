// Package config defines the global configuration structure for the GlowMart
// scheduler service. Configuration is loaded once at process initialization
// and is immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
//
// Any missing required value or invalid format causes the application to fail
// immediately on startup (fail fast).
package config

import "time"

// Config is the top-level configuration struct for the scheduler service.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"glowmart-scheduler"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server   ServerConfig
	Database DatabaseConfig
	Cashback WorkerConfig `split_words:"false"`
	Expire   ExpireWorkerConfig
	Push     PushWorkerConfig
	Locks    LockConfig
}

// ServerConfig holds the ops HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL string `envconfig:"DATABASE_URL" validate:"required"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// WorkerConfig holds the enable flag and raw interval for the cashback
// maturation worker.
type WorkerConfig struct {
	Enabled  bool     `envconfig:"CASHBACK_SCHEDULER_ENABLED" default:"true"`
	Interval Interval `envconfig:"CASHBACK_SCHEDULER_INTERVAL_MS"`
}

// ExpireWorkerConfig holds the enable flag and raw interval for the promotion
// lifecycle worker.
type ExpireWorkerConfig struct {
	Enabled  bool     `envconfig:"EXPIRE_SCHEDULER_ENABLED" default:"true"`
	Interval Interval `envconfig:"EXPIRE_SCHEDULER_INTERVAL_MS"`
}

// PushWorkerConfig holds the push dispatch worker settings, including the
// VAPID key pair. The worker is disabled by default; an empty key pair causes
// each pass to skip with a warning rather than fail.
type PushWorkerConfig struct {
	Enabled  bool     `envconfig:"PUSH_SCHEDULER_ENABLED" default:"false"`
	Interval Interval `envconfig:"PUSH_SCHEDULER_INTERVAL_MS"`

	VAPIDPublicKey  string `envconfig:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `envconfig:"VAPID_PRIVATE_KEY"`
	Subscriber      string `envconfig:"VAPID_SUBSCRIBER" default:"mailto:support@glowmart.io"`
}

// LockConfig controls cross-instance pass coordination via the job_locks table.
type LockConfig struct {
	Enabled bool `envconfig:"SCHEDULER_LOCKS_ENABLED" default:"true"`
}

// Default worker cadences, used when the interval variable is unset or
// unparseable.
const (
	DefaultCashbackInterval = 5 * time.Minute
	DefaultExpireInterval   = 5 * time.Minute
	DefaultPushInterval     = 3 * time.Minute
)
