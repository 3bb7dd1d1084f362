// Package logging configures the process-wide slog logger: a text or JSON
// handler writing to the console and, optionally, to a size-rotated file.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/masahif/sitegraph/internal/config"
)

// Config represents the logging configuration
type Config struct {
	Level      slog.Level
	JSON       bool // JSON handler instead of text
	FilePath   string
	MaxSize    int64 // MB
	MaxBackups int
	Console    io.Writer // nil disables console output
}

// DefaultConfig returns the default logging configuration
func DefaultConfig() *Config {
	return &Config{
		Level:      slog.LevelInfo,
		FilePath:   "",
		MaxSize:    100, // 100MB
		MaxBackups: 5,
		Console:    os.Stderr,
	}
}

// FromCrawlConfig maps the log section of the crawl configuration
func FromCrawlConfig(cfg config.LogConfig) Config {
	c := *DefaultConfig()
	c.Level = ParseLevel(cfg.Level)
	c.JSON = strings.EqualFold(cfg.Format, "json")
	c.FilePath = cfg.FilePath
	if cfg.MaxSizeMB > 0 {
		c.MaxSize = cfg.MaxSizeMB
	}
	if cfg.MaxBackups >= 0 {
		c.MaxBackups = cfg.MaxBackups
	}
	return c
}

// ParseLevel converts a string log level to slog.Level
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a new logger with the given configuration. The returned
// closer releases the log file and must be closed on shutdown.
func NewLogger(config Config) (*slog.Logger, io.Closer, error) {
	var writers []io.Writer
	var closer io.Closer = nopCloser{}

	if config.Console != nil {
		writers = append(writers, config.Console)
	}

	// File output with rotation
	if config.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(config.FilePath), 0o755); err != nil {
			return nil, nil, err
		}

		fileWriter, err := NewRotatingFileWriter(
			config.FilePath,
			config.MaxSize*1024*1024, // MB to bytes
			config.MaxBackups,
		)
		if err != nil {
			return nil, nil, err
		}
		writers = append(writers, fileWriter)
		closer = fileWriter
	}

	// If no writers configured, use the console as default
	if len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	var writer io.Writer
	if len(writers) == 1 {
		writer = writers[0]
	} else {
		writer = io.MultiWriter(writers...)
	}

	opts := &slog.HandlerOptions{Level: config.Level}
	var handler slog.Handler
	if config.JSON {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	return slog.New(handler), closer, nil
}

// SetDefault creates and sets a default logger with the given configuration
func SetDefault(config Config) (io.Closer, error) {
	logger, closer, err := NewLogger(config)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
