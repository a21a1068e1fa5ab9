package logger

import (
	"log/slog"
	"os"
)

// New returns a text slog logger writing to stderr so data output on stdout
// stays machine-parseable. Verbose mode lowers the level to Debug.
func New(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
