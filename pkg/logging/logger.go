// Package logging configures the process-wide zerolog logger and hands out
// per-component child loggers.
package logging

import (
	"fmt"
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

// Component names attached to every log line as the "component" field.
const (
	ComponentCache      = "catalog-cache"
	ComponentClient     = "catalog-client"
	ComponentPagination = "pagination"
	ComponentPipeline   = "notification-pipeline"
	ComponentReconciler = "notification-reconciler"
	ComponentWatch      = "catalog-watch"
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

// Setup configures the global zerolog logger. Loggers handed out by
// NewLogger before Setup keep the previous output.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel validates a level name from a flag or environment variable.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return "", fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
	}
}

// parseLevel converts LogLevel to zerolog.Level, defaulting to info.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a child of the global logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: per-request detail
//   - Cache hit/miss, conditional requests, ETags
//   - Discovery results and page plans (total_count, page_size, pages)
//   - Polled batch sizes, reconciled notifications
//
// Info: lifecycle events
//   - Pipeline started/completed
//   - Server startup/shutdown
//
// Warn: a request or subscriber failed but the process carries on
//   - Non-2xx catalog responses
//   - Page fetch aborts
//   - Subscriber handler errors
//   - Cache errors (request still served upstream)
//
// Error: a run ended or cannot start
//   - Pipeline terminated by a poll or reconciliation failure
//   - Network failures
//   - Panicking subscriber callbacks
//
// Context Fields:
//   - resource: catalog resource name
//   - status: HTTP status code
//   - request_id: X-Request-ID sent upstream
//   - error_class: client, rate_limit, server, network
//   - paging_id: one paging call
//   - run_id: one pipeline run
//   - notification_id: change notification id
