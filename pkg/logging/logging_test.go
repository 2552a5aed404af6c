package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(999), "UNKNOWN"},
	}

	for _, test := range tests {
		result := test.level.String()
		if result != test.expected {
			t.Errorf("LogLevel(%d).String() = %s, expected %s", test.level, result, test.expected)
		}
	}
}

func TestLogLevel_SlogLevel(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{LogLevel(999), slog.LevelInfo},
	}

	for _, test := range tests {
		result := test.level.SlogLevel()
		if result != test.expected {
			t.Errorf("LogLevel(%d).SlogLevel() = %v, expected %v", test.level, result, test.expected)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"ERROR", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestInitForCLI(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelInfo, &buf)

	Info("test-subsystem", "test message %d", 42)

	output := buf.String()
	if !strings.Contains(output, "test message 42") {
		t.Errorf("expected formatted message in output, got %q", output)
	}
	if !strings.Contains(output, "subsystem=test-subsystem") {
		t.Errorf("expected subsystem in output, got %q", output)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelWarn, &buf)

	Debug("s", "debug line")
	Info("s", "info line")
	Warn("s", "warn line")

	output := buf.String()
	if strings.Contains(output, "debug line") || strings.Contains(output, "info line") {
		t.Errorf("expected debug/info to be filtered, got %q", output)
	}
	if !strings.Contains(output, "warn line") {
		t.Errorf("expected warn line, got %q", output)
	}
}

func TestError_IncludesError(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelDebug, FormatJSON, &buf)

	Error("Session", errors.New("disk full"), "write failed")

	output := buf.String()
	if !strings.Contains(output, `"error":"disk full"`) {
		t.Errorf("expected JSON error attribute, got %q", output)
	}
	if !strings.Contains(output, `"subsystem":"Session"`) {
		t.Errorf("expected JSON subsystem attribute, got %q", output)
	}
}

func TestAudit(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelInfo, &buf)

	Audit("Session", "session_cleared", slog.Bool("had_refresh_token", true))

	output := buf.String()
	if !strings.Contains(output, "SECURITY_AUDIT: session_cleared") {
		t.Errorf("expected audit message, got %q", output)
	}
	if !strings.Contains(output, "had_refresh_token=true") {
		t.Errorf("expected audit attribute, got %q", output)
	}
}

func TestRedact(t *testing.T) {
	if got := Redact("", 4); got != "" {
		t.Errorf("Redact(empty) = %q", got)
	}
	if got := Redact("abc", 4); got != "***" {
		t.Errorf("Redact(short) = %q, want ***", got)
	}
	if got := Redact("4/0AbCdEfGhIjK", 10); got != "4/0AbCdEfG..." {
		t.Errorf("Redact(long) = %q", got)
	}
}
