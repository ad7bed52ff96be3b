package logger

import (
	"io"
	"log/slog"
)

// NewTestHandler discards everything; level only gates Enabled.
func NewTestHandler(level slog.Level) slog.Handler {
	return slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: level})
}
