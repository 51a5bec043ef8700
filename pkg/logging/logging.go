package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps a level name to a slog level. The empty string is info.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// BuildLogger creates a structured logger writing to stderr at the given
// level. Unknown levels fall back to info.
func BuildLogger(level string) *slog.Logger {
	return New(os.Stderr, level)
}

// New creates a text logger writing to w.
func New(w io.Writer, level string) *slog.Logger {
	l, _ := ParseLevel(level)
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})
	return slog.New(handler).With("service", "podcast-search")
}
