// Package logger installs the global zerolog logger used by autoprobe.
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds the configuration for the logger.
type Config struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	JSONFormat bool   `mapstructure:"json_format"`
}

// Setup replaces the global logger with one writing to stderr and, when
// cfg.File is set, to that file. The returned func closes the file.
func Setup(cfg Config) (func() error, error) {
	levelErr := SetLevel(cfg.Level)

	writers := []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}}
	closeFile := func() error { return nil }
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, fileSink(f, cfg.JSONFormat))
		closeFile = f.Close
	}
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()

	if levelErr != nil {
		log.Warn().Err(levelErr).Msg("Falling back to info level")
	}
	log.Debug().Str("level", zerolog.GlobalLevel().String()).Msg("Logger initialized")
	return closeFile, nil
}

// fileSink writes JSON lines, or the uncoloured console format.
func fileSink(w io.Writer, jsonFormat bool) io.Writer {
	if jsonFormat {
		return w
	}
	return zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
}

// SetLevel sets the global logging level. An empty or unknown level selects
// info; the latter is reported as an error.
func SetLevel(level string) error {
	if level == "" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		return nil
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		return fmt.Errorf("unknown log level %q", level)
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}
