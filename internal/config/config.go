// Package config defines the configuration of the crop radar services.
// Configuration is loaded once at process start and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// A missing required value or an invalid format fails startup.
package config

import (
	"time"

	"cropradar/internal/outbreak"
	"cropradar/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the top-level configuration. Sub-components receive only the
// subsets they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"cropradar"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	AWS           AWSConfig
	Outbreak      OutbreakConfig
	Cache         CacheConfig
	Observability ObservabilityConfig

	// Injected via ldflags, not Env
	Build BuildInfo
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8080"`
	ReadTimeout        time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout       time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"15s"`
	RequestTimeout     time.Duration `envconfig:"HTTP_REQUEST_TIMEOUT" default:"8s"`
	ShutdownTimeout    time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"20s"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// DatabaseConfig selects the report store and tunes the Postgres pool.
type DatabaseConfig struct {
	Driver string `envconfig:"STORAGE_DRIVER" default:"postgres" validate:"oneof=postgres memory"`

	// Resolved from SSM or Env. Required for the postgres driver.
	URL SecretString `envconfig:"DATABASE_URL" validate:"required_if=Driver postgres"`

	MaxConns          int32         `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int32         `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
	ApplySchema       bool          `envconfig:"DB_APPLY_SCHEMA" default:"false"`
}

// RedisConfig configures the baseline cache. An empty Addr disables Redis and
// the in-process cache is used instead.
type RedisConfig struct {
	Addr         string        `envconfig:"REDIS_ADDR"`
	Password     SecretString  `envconfig:"REDIS_PASSWORD"`
	DB           int           `envconfig:"REDIS_DB" default:"0" validate:"gte=0,lte=15"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"2s"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"500ms"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"500ms"`
}

// Enabled reports whether a Redis server is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// Empty queue URLs disable event publishing.
	ReportIngestQueue  string `envconfig:"SQS_REPORT_INGEST" validate:"omitempty,url"`
	ReportReviewQueue  string `envconfig:"SQS_REPORT_REVIEW" validate:"omitempty,url"`
	ReviewExportBucket string `envconfig:"REVIEW_EXPORT_BUCKET"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL" validate:"omitempty,url"`
}

// OutbreakConfig overrides the engine thresholds.
type OutbreakConfig struct {
	MinConfidence float64 `envconfig:"OUTBREAK_MIN_CONFIDENCE" default:"0.75" validate:"gte=0,lte=1"`
	WindowHours   int     `envconfig:"OUTBREAK_WINDOW_HOURS" default:"72" validate:"min=1,max=720"`
	KAnon         int     `envconfig:"OUTBREAK_K_ANON" default:"3" validate:"min=1"`
	RisingSigma   float64 `envconfig:"OUTBREAK_RISING_SIGMA" default:"1.0" validate:"gte=0"`
	SurgingSigma  float64 `envconfig:"OUTBREAK_SURGING_SIGMA" default:"2.0" validate:"gtefield=RisingSigma"`
	BaselineDays  int     `envconfig:"OUTBREAK_BASELINE_DAYS" default:"30" validate:"min=1,max=365"`
	TopLabels     int     `envconfig:"OUTBREAK_TOP_LABELS" default:"5" validate:"min=1,max=50"`
}

// Thresholds converts the configuration into engine thresholds.
func (o OutbreakConfig) Thresholds() outbreak.Thresholds {
	t := outbreak.DefaultThresholds()
	t.MinConfidence = o.MinConfidence
	t.WindowHours = o.WindowHours
	t.KAnon = o.KAnon
	t.Bands = outbreak.SigmaBands{Rising: o.RisingSigma, Surging: o.SurgingSigma}
	t.BaselineDays = o.BaselineDays
	t.TopLabels = o.TopLabels
	return t
}

// CacheConfig tunes the baseline cache and its circuit breaker.
type CacheConfig struct {
	BaselineTTL        time.Duration `envconfig:"BASELINE_CACHE_TTL" default:"15m" validate:"gt=0"`
	BreakerMaxFailures uint32        `envconfig:"CACHE_BREAKER_MAX_FAILURES" default:"5"`
	BreakerOpenTimeout time.Duration `envconfig:"CACHE_BREAKER_OPEN_TIMEOUT" default:"30s"`
	WarmChunkSize      int           `envconfig:"BASELINE_WARM_CHUNK_SIZE" default:"100" validate:"min=1,max=200"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace  string `envconfig:"METRIC_NAMESPACE" default:"CropRadar"`
	EnableCloudWatch bool   `envconfig:"ENABLE_CLOUDWATCH_METRICS" default:"false"`
	EnablePrometheus bool   `envconfig:"ENABLE_PROMETHEUS" default:"true"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates an environment value could not be parsed into its
	// target type.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
