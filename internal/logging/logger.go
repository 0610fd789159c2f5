// Package logging constructs the application's zerolog logger.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds a zerolog logger. Level and format come from the
// LOG_LEVEL and LOG_FORMAT environment variables; defaults are JSON at
// info level on stdout. env is attached to every event so log lines
// from different deployments can be told apart.
func New(env string) zerolog.Logger {
	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))); err == nil && parsed != zerolog.NoLevel {
		level = parsed
	}

	var logger zerolog.Logger
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "console") {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	return logger.Level(level).With().
		Timestamp().
		Str("env", env).
		Logger()
}
