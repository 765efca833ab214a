package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	return entry
}

func TestZerologAdapter_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologAdapterTo(&buf, zerolog.DebugLevel)

	logger.Info("cache event",
		Event("noupdate"),
		Int("replayed", 2),
		Bool("online", true),
		Duration("interval", 30*time.Second),
		Err(errors.New("boom")),
	)

	entry := decode(t, &buf)
	checks := map[string]any{
		"level":    "info",
		"message":  "cache event",
		"event":    "noupdate",
		"replayed": float64(2),
		"online":   true,
		"interval": float64(30000),
		"error":    "boom",
	}
	for key, want := range checks {
		if got := entry[key]; got != want {
			t.Errorf("%s = %v, want %v", key, got, want)
		}
	}
}

func TestZerologAdapter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologAdapterTo(&buf, zerolog.WarnLevel)

	logger.Debug("hidden")
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("output below level: %q", buf.String())
	}

	logger.Warn("shown")
	if entry := decode(t, &buf); entry["level"] != "warn" {
		t.Errorf("level = %v, want warn", entry["level"])
	}
}

func TestZerologAdapter_With(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologAdapterTo(&buf, zerolog.InfoLevel).With(String("component", "nanny"))

	logger.Error("failed")

	entry := decode(t, &buf)
	if entry["component"] != "nanny" {
		t.Errorf("component = %v, want nanny", entry["component"])
	}
	if entry["level"] != "error" {
		t.Errorf("level = %v, want error", entry["level"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    zerolog.Level
		wantErr bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"loud", zerolog.NoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNoopLogger(t *testing.T) {
	var l Logger = NoopLogger{}
	l = l.With(String("k", "v"))
	l.Info("ignored")
}
