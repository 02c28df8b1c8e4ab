// Package logger configures zerolog for the service.
package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config controls log level and the static fields attached to every event.
type Config struct {
	Level       string
	Environment string
	ServiceName string
	Version     string
}

// Logger wraps a zerolog.Logger so callers depend on this package,
// not on zerolog directly.
type Logger struct {
	zerolog.Logger
}

// New builds a Logger. Development environments get console output,
// everything else gets JSON on stderr.
func New(cfg Config) *Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var out = os.Stderr
	base := zerolog.New(out)
	if cfg.Environment == "development" {
		base = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	}

	l := base.Level(level).With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Str("version", cfg.Version).
		Str("environment", cfg.Environment).
		Logger()

	return &Logger{Logger: l}
}
