package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.name); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestInit(t *testing.T) {
	old := slog.Default()
	defer slog.SetDefault(old)

	for _, cfg := range []*Config{
		{Level: "debug", Format: "text"},
		{Level: "error", Format: "json"},
	} {
		Init(cfg)
		slog.Info("test message")
	}
}

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, &Config{Level: "info", Format: "json"})
	l.Info("hello", "slot", "idFront")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON output, got %q: %v", buf.String(), err)
	}
	if entry["slot"] != "idFront" {
		t.Errorf("Expected slot attribute, got %v", entry["slot"])
	}
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, &Config{Level: "warn", Format: "text"})
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("Expected info to be filtered at warn level, got %q", buf.String())
	}
}

func TestWithContext(t *testing.T) {
	old := slog.Default()
	defer slog.SetDefault(old)

	var buf bytes.Buffer
	slog.SetDefault(New(&buf, &Config{Level: "debug", Format: "text"}))

	ctx := context.Background()
	ctx = WithValue(ctx, RequestIDKey, "req-123")
	ctx = WithValue(ctx, SessionIDKey, "sess-9")
	ctx = WithValue(ctx, AgentKey, "agent1")

	WithContext(ctx).Info("upload started")

	out := buf.String()
	for _, want := range []string{"request_id=req-123", "session_id=sess-9", "agent=agent1"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in %q", want, out)
		}
	}
}

func TestWithContextEmpty(t *testing.T) {
	old := slog.Default()
	defer slog.SetDefault(old)

	var buf bytes.Buffer
	slog.SetDefault(New(&buf, &Config{Level: "info", Format: "text"}))

	WithContext(context.Background()).Info("plain")
	if strings.Contains(buf.String(), "request_id") {
		t.Errorf("Expected no request_id, got %q", buf.String())
	}
}

func TestLogFunctions(t *testing.T) {
	old := slog.Default()
	defer slog.SetDefault(old)

	var buf bytes.Buffer
	slog.SetDefault(New(&buf, &Config{Level: "debug", Format: "text"}))

	ctx := WithValue(context.Background(), RequestIDKey, "req-123")

	tests := []struct {
		name string
		log  func(context.Context, string, ...any)
	}{
		{"info message", Info},
		{"debug message", Debug},
		{"warn message", Warn},
		{"error message", Error},
	}
	for _, tt := range tests {
		buf.Reset()
		tt.log(ctx, tt.name)
		if !strings.Contains(buf.String(), tt.name) || !strings.Contains(buf.String(), "req-123") {
			t.Errorf("Expected %q with request id in log, got %q", tt.name, buf.String())
		}
	}
}
