package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"info", slog.LevelInfo, true},
		{"", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if got != tt.want || (err == nil) != tt.ok {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestNilLogger(t *testing.T) {
	var l *Logger
	l.Debug("dropped")
	l.Info("dropped", slog.Int("n", 1))
	if l.With("k", "v") != nil {
		t.Error("With on nil logger should return nil")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, slog.LevelInfo)

	l.Debug("hidden")
	l.With("episode", 3).Info("episode done", slog.String("cause", "goal"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 record, got %d: %q", len(lines), buf.String())
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec["msg"] != "episode done" || rec["cause"] != "goal" || rec["episode"] != float64(3) {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestNew(t *testing.T) {
	dir := t.TempDir()
	l, err := New("debug", dir)
	if err != nil {
		t.Fatal(err)
	}
	l.Debug("step", slog.Float64("t", 0.1))

	if l.LogFile != filepath.Join(dir, "fwcbf.slog") {
		t.Errorf("LogFile = %s", l.LogFile)
	}
	data, err := os.ReadFile(l.LogFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"msg":"step"`) {
		t.Errorf("log file missing debug record: %s", data)
	}

	if _, err := New("loud", dir); err == nil {
		t.Error("expected error for invalid level")
	}
}
