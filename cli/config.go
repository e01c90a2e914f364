package cli

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds environment-sourced defaults for the simulate command.
// Flags override these values.
type Config struct {
	// EventDBPath is the SQLite file for the event journal. Empty disables
	// persistence.
	EventDBPath string `env:"SCRIPTFLOW_EVENT_DB"`

	// OTelEndpoint is the OTLP HTTP collector endpoint. Empty disables
	// tracing.
	OTelEndpoint string `env:"SCRIPTFLOW_OTEL_ENDPOINT"`

	// TickRate is the simulated frame duration.
	TickRate time.Duration `env:"SCRIPTFLOW_TICK_RATE" envDefault:"16ms"`

	// LogLevel selects the slog level: debug, info, warn, or error.
	LogLevel string `env:"SCRIPTFLOW_LOG_LEVEL" envDefault:"info"`
}

// LoadConfigFromEnv loads configuration from environment variables and
// applies defaults for anything unset.
func LoadConfigFromEnv() Config {
	var cfg Config
	_ = env.Parse(&cfg)
	if cfg.TickRate <= 0 {
		cfg.TickRate = 16 * time.Millisecond
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg
}
