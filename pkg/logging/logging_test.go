package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q): unexpected error state %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q): expected %v, got %v", tt.input, tt.want, got)
		}
	}
}

func TestNew_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn")

	logger.Info("hidden")
	logger.Warn("shown", "eid", "ep1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Expected info message to be filtered, got %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "eid=ep1") {
		t.Errorf("Expected warn message with attributes, got %q", out)
	}
	if !strings.Contains(out, "service=podcast-search") {
		t.Errorf("Expected service attribute, got %q", out)
	}
}
