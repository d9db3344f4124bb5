package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name, e.g. SCOUT_SERVER_PORT.
const EnvPrefix = "SCOUT"

// setDefaults registers every key with viper. Keys without a default are
// registered with a zero value so AutomaticEnv can still populate them on Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("database.url", "")

	v.SetDefault("scraper.base_url", "")
	v.SetDefault("scraper.request_timeout", 30*time.Second)
	v.SetDefault("scraper.rate_limit", 10.0)
	v.SetDefault("scraper.rate_burst", 5)

	v.SetDefault("polling.interval", 5*time.Second)
	v.SetDefault("polling.backoff_floor", 2*time.Second)
	v.SetDefault("polling.backoff_cap", 30*time.Second)
	v.SetDefault("polling.resync_interval", 30*time.Second)

	v.SetDefault("telemetry.service_name", "scout-api")
	v.SetDefault("telemetry.otlp_endpoint", "")
}

// Load configuration from environment variables and optionally a config.yaml
// in the working directory. Environment variables take precedence over values
// from the config file. Returns a populated Config or an error if
// loading or validation fails.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}
