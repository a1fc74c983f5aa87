package logging

import (
	"io"
	"log/slog"
)

// NewNopLogger creates a logger that discards all output.
// GetLogger returns one until Configure has been called with a real output.
func NewNopLogger() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: LevelError + 1}))
}
