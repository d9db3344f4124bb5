package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scraper   ScraperConfig   `mapstructure:"scraper" validate:"required"`
	Polling   PollingConfig   `mapstructure:"polling" validate:"required"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
// An empty URL selects the in-memory stores.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// ScraperConfig configures the client for the remote scraping worker.
type ScraperConfig struct {
	BaseURL        string        `mapstructure:"base_url" validate:"required,url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	// RateLimit is the sustained request rate in requests per second.
	RateLimit float64 `mapstructure:"rate_limit" validate:"gt=0"`
	RateBurst int     `mapstructure:"rate_burst" validate:"gte=1"`
}

// PollingConfig tunes the task status reconciliation engine.
type PollingConfig struct {
	Interval       time.Duration `mapstructure:"interval" validate:"gt=0"`
	BackoffFloor   time.Duration `mapstructure:"backoff_floor" validate:"gt=0"`
	BackoffCap     time.Duration `mapstructure:"backoff_cap" validate:"gtefield=BackoffFloor"`
	ResyncInterval time.Duration `mapstructure:"resync_interval" validate:"gt=0"`
}

// TelemetryConfig contains OpenTelemetry settings.
// An empty OTLPEndpoint disables exporting.
type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name" validate:"required"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}
