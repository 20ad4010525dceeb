// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()

	// Set as global logger
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Catalog cache operations (hit/miss, ids, TTL)
//   - Per-batch dispatch and settle events
//   - Pagination progress (page index, page length)
//
// Info: Normal operation events
//   - Completed aggregation passes (books resolved, duration)
//   - Throttle state recovery
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Failed catalog batches (excluded from results)
//   - Retry attempts
//   - Cache errors (fallback to direct catalog fetch)
//
// Error: Error conditions requiring attention
//   - Ownership list fetch failures (aborts the aggregation)
//   - Catalog throttle cooldown blocks
//   - Configuration errors
//
// Context Fields:
//   - user_id: Owner of the reading list being aggregated
//   - page: Ownership list page index
//   - batch: Catalog batch index
//   - ids: Number of identifiers in a batch
//   - duration: Operation duration
//   - error_class: Error classification (client, server, throttle, network)
//   - cache_hit: Boolean indicating catalog cache hit
