// Package logging builds the process-wide zerolog root logger from config.
package logging

import (
	"os"
	"strings"
	"time"

	"job-digest/internal/config"

	"github.com/rs/zerolog"
)

// New returns the root logger. Components derive sub-loggers from it via
// With().Str("component", ...).
func New(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}
