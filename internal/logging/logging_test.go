package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.in); got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNewWithWriter_CarriesServiceAttributes(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")

	var buf bytes.Buffer
	log := NewWithWriter(&buf)

	log.Info("startup")

	out := buf.String()
	if !strings.Contains(out, `"service":"sekb"`) {
		t.Errorf("log entry missing service attribute: %s", out)
	}
	if !strings.Contains(out, `"version"`) {
		t.Errorf("log entry missing version attribute: %s", out)
	}
}

func TestNewWithWriter_TextFormat(t *testing.T) {
	t.Setenv("LOG_FORMAT", "text")

	var buf bytes.Buffer
	NewWithWriter(&buf).Info("startup")

	if !strings.Contains(buf.String(), "service=sekb") {
		t.Errorf("want text handler output, got: %s", buf.String())
	}
}

func TestWithLogger_RoundTrip(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.DiscardHandler)
	ctx := WithLogger(context.Background(), log)
	if got := FromContext(ctx); got != log {
		t.Error("FromContext must return the logger stored by WithLogger")
	}
}

func TestFromContext_FallsBackToDefault(t *testing.T) {
	t.Parallel()

	if got := FromContext(context.Background()); got == nil {
		t.Error("FromContext must never return nil")
	}
}
