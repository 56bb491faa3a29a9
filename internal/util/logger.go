// Package util provides shared helpers used throughout the ringleader server.
package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger initializes the zerolog global logger. Console output is always
// on; when logFile is non-empty, JSON lines are appended there as well.
func InitLogger(level, logFile string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05",
	}
	writers := []io.Writer{consoleWriter}

	if logFile != "" {
		if err := EnsureDir(filepath.Dir(logFile)); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", logFile, err)
		}
		writers = append(writers, f)
	}

	multi := zerolog.MultiLevelWriter(writers...)

	log.Logger = zerolog.New(multi).
		With().
		Timestamp().
		Str("app", "ringleader").
		Logger()

	log.Info().
		Str("level", lvl.String()).
		Str("log_file", logFile).
		Msg("logger initialized")

	return nil
}

// ComponentLogger creates a logger with a component name field.
func ComponentLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
