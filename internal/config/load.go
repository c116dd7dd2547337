package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, so server.port is
// read from SCRY_SERVER_PORT.
const EnvPrefix = "SCRY"

var defaults = map[string]any{
	"server.port":                       8080,
	"server.log_level":                  "info",
	"server.shutdown_timeout_seconds":   15,
	"auth.token_lifetime_minutes":       60,
	"llm.model_name":                    "gemini-2.0-flash",
	"llm.max_retries":                   3,
	"llm.retry_delay_seconds":           2,
	"jobs.worker_count":                 2,
	"jobs.poll_interval_ms":             1000,
	"jobs.job_timeout_seconds":          300,
	"jobs.stuck_job_age_minutes":        30,
	"jobs.stuck_check_interval_minutes": 5,
	"jobs.default_max_attempts":         3,
	"rate_limit.limit":                  20,
	"rate_limit.window_minutes":         60,
	"tracing.enabled":                   false,
	"tracing.service_name":              "scry-jobs",
	"tracing.insecure":                  false,
	"tracing.sample_ratio":              1.0,
}

// keys without defaults still need binding so Unmarshal sees their env vars
var requiredKeys = []string{
	"database.url",
	"auth.jwt_secret",
	"llm.gemini_api_key",
	"tracing.endpoint",
}

// Load reads configuration from environment variables and, if present,
// config.yaml in the working directory. Environment variables take
// precedence. Returns an error if the result fails validation.
func Load() (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range requiredKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}
