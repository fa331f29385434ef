package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Config{Level: "warn", Format: "json"})
	l.Info("dropped")
	l.Warn("kept", "component", "drainer")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info record written at warn level: %s", out)
	}
	if !strings.Contains(out, `"component":"drainer"`) {
		t.Fatalf("json record missing attribute: %s", out)
	}
}

func TestInitWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ultratable.log")
	if err := Init(Config{Level: "info", OutputPath: path}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer Close()

	WithComponent("registry").Info("frozen", "types", 42)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "component=registry") {
		t.Fatalf("log file missing record: %s", data)
	}
}
