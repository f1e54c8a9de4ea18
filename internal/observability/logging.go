// Package observability carries the small logging helpers the modules share.
package observability

import (
	"log/slog"
	"os"
)

// NoOpLogger discards everything. Intended for unit tests where log output is
// noise.
var NoOpLogger = slog.New(slog.DiscardHandler)

// NewLogger builds the application logger writing JSON to stderr at the given
// level.
func NewLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
