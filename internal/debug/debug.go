package debug

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"
)

// NewLogger builds the process logger. level is one of debug, info, warn,
// error; format is text or json.
func NewLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// Timing logs the start of operation at debug level and returns a func that
// logs its completion with the elapsed time.
func Timing(logger *slog.Logger, operation string, attrs ...any) func() {
	if logger == nil {
		logger = slog.Default()
	}
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		return func() {}
	}

	start := time.Now()
	logger.Debug("starting", append([]any{"operation", operation}, attrs...)...)

	return func() {
		logger.Debug("completed", append([]any{"operation", operation, "took", time.Since(start)}, attrs...)...)
	}
}
