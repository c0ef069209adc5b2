// Package logging builds the zerolog logger used throughout the control
// plane from configuration.
package logging

import (
	"os"

	"github.com/rs/zerolog"

	"meshctl/internal/config"
)

// New builds a zerolog.Logger honoring cfg.LogLevel and cfg.LogFormat.
func New(cfg *config.Config) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zerolog.Logger{}, err
	}

	var writer = os.Stdout
	var logger zerolog.Logger
	if cfg.LogFormat == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: writer}).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(writer).With().Timestamp().Logger()
	}

	return logger.Level(level), nil
}
