package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth" validate:"required"`
	LLM       LLMConfig       `mapstructure:"llm" validate:"required"`
	Jobs      JobsConfig      `mapstructure:"jobs" validate:"required"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" validate:"required"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port                   int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel               string `mapstructure:"log_level" validate:"required,oneof=debug info warn error fatal"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds" validate:"gte=1"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// AuthConfig contains the bearer-token verification settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"gte=1"`
}

// LLMConfig contains the Gemini integration settings.
type LLMConfig struct {
	GeminiAPIKey      string `mapstructure:"gemini_api_key" validate:"required"`
	ModelName         string `mapstructure:"model_name" validate:"required"`
	MaxRetries        int    `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds" validate:"gte=1,lte=60"`
}

// JobsConfig tunes the job processor.
type JobsConfig struct {
	WorkerCount               int `mapstructure:"worker_count" validate:"gte=1,lte=64"`
	PollIntervalMS            int `mapstructure:"poll_interval_ms" validate:"gte=10"`
	JobTimeoutSeconds         int `mapstructure:"job_timeout_seconds" validate:"gte=1"`
	StuckJobAgeMinutes        int `mapstructure:"stuck_job_age_minutes" validate:"gte=1"`
	StuckCheckIntervalMinutes int `mapstructure:"stuck_check_interval_minutes" validate:"gte=1"`
	DefaultMaxAttempts        int `mapstructure:"default_max_attempts" validate:"gte=1,lte=10"`
}

// PollInterval returns the idle wait between claim attempts.
func (c JobsConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// JobTimeout returns the execution deadline for a single attempt.
func (c JobsConfig) JobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutSeconds) * time.Second
}

// StuckJobAge returns how long a job may stay processing before the
// watchdog reclaims it.
func (c JobsConfig) StuckJobAge() time.Duration {
	return time.Duration(c.StuckJobAgeMinutes) * time.Minute
}

// StuckCheckInterval returns how often the watchdog runs.
func (c JobsConfig) StuckCheckInterval() time.Duration {
	return time.Duration(c.StuckCheckIntervalMinutes) * time.Minute
}

// RateLimitConfig configures the per-user sliding window.
type RateLimitConfig struct {
	Limit         int `mapstructure:"limit" validate:"gte=1"`
	WindowMinutes int `mapstructure:"window_minutes" validate:"gte=1"`
}

// Window returns the sliding window length.
func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowMinutes) * time.Minute
}

// TracingConfig controls OpenTelemetry tracing. With tracing disabled a
// no-op provider is installed. With no endpoint, spans go to stdout.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name" validate:"required_if=Enabled true"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRatio float64 `mapstructure:"sample_ratio" validate:"gte=0,lte=1"`
}
