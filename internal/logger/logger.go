package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New builds the process logger. Production gets JSON lines, everything else
// gets the human-readable text handler.
func New(level string, production bool) *slog.Logger {
	return newWithWriter(os.Stdout, level, production)
}

func newWithWriter(w io.Writer, level string, production bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if production {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard is used by tests that need a logger but not its output.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
