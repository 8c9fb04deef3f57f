package logger

import (
	"log/slog"
	"os"
)

// New creates a JSON structured logger that writes to stderr so it never
// interleaves with command output on stdout.
func New() *slog.Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(handler)
}
