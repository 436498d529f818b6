// Package config defines the process configuration of the back office API.
// Configuration is loaded once at startup and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> struct defaults (Lowest)
//
// A missing required value or an invalid format fails startup.
package config

import (
	"log/slog"
	"strings"
	"time"

	"backoffice/internal/types"
)

// SecretString is an alias for types.SecretString so config dumps stay redacted.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the section they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"backoffice-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json" validate:"oneof=json text"`

	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Auth          AuthConfig
	Observability ObservabilityConfig

	// Injected via ldflags, not Env.
	Build BuildInfo `ignored:"true"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8080"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"29s"`
	ReadHeaderTimeout  time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
	ShutdownTimeout    time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// DatabaseConfig holds the PostgreSQL connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"10" validate:"min=1"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"2" validate:"min=0"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	MaxConnIdleTime time.Duration `envconfig:"DB_MAX_CONN_IDLE_TIME" default:"5m"`
	// AutoMigrate applies the embedded schema at startup.
	AutoMigrate bool `envconfig:"DATABASE_AUTO_MIGRATE" default:"false"`
}

// RedisConfig configures the optional nickname cache. An empty URL disables it.
type RedisConfig struct {
	URL         SecretString  `envconfig:"REDIS_URL"`
	NicknameTTL time.Duration `envconfig:"REDIS_NICKNAME_TTL" default:"10m"`
}

// Enabled reports whether a redis URL was configured.
func (r RedisConfig) Enabled() bool {
	return r.URL.Unmask() != ""
}

// AuthConfig holds the JWT verification settings for bearer tokens.
type AuthConfig struct {
	JWTSecret SecretString `envconfig:"JWT_SECRET" validate:"required,min=32"`
	Issuer    string       `envconfig:"JWT_ISSUER" default:"backoffice"`
	// Leeway tolerates clock skew when checking exp and nbf.
	Leeway time.Duration `envconfig:"JWT_LEEWAY" default:"30s"`
}

// ObservabilityConfig holds telemetry settings. Metrics are published to
// CloudWatch only when EnableMetrics is set.
type ObservabilityConfig struct {
	EnableMetrics   bool          `envconfig:"ENABLE_METRICS" default:"false"`
	MetricNamespace string        `envconfig:"METRIC_NAMESPACE" default:"Backoffice"`
	FlushInterval   time.Duration `envconfig:"METRIC_FLUSH_INTERVAL" default:"60s"`
	AWSRegion       string        `envconfig:"AWS_REGION" default:"us-east-1"`
	// LocalStack support; empty in prod.
	AWSEndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// IsLocal reports whether the process runs in the local environment.
func (c *Config) IsLocal() bool {
	return c.Environment == localEnv
}

// SlogLevel maps LogLevel onto slog.Level, defaulting to Info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates an environment value could not be parsed into its field.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
	// ErrDotenv indicates an explicitly requested dotenv file could not be read.
	ErrDotenv ConfigErrorType = "DOTENV_FAILED"
)
