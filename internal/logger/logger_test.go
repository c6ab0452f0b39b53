package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func withCapture(t *testing.T, l Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(l)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
	})
	return &buf
}

func TestLevelFiltering(t *testing.T) {
	buf := withCapture(t, LevelWarn)

	Debug("debug message")
	Info("info message")
	Warn("warn message")
	Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("levels below warn must be suppressed, got %q", out)
	}
	if !strings.Contains(out, "[WARN] warn message") {
		t.Errorf("expected warn message, got %q", out)
	}
	if !strings.Contains(out, "[ERROR] error message") {
		t.Errorf("expected error message, got %q", out)
	}
}

func TestFormatting(t *testing.T) {
	buf := withCapture(t, LevelDebug)

	Info("ingested %d chunks from %s", 7, "a.txt")

	if got := buf.String(); got != "[INFO] ingested 7 chunks from a.txt\n" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"info":    LevelInfo,
		"warn":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"ERROR":   LevelError,
		"bogus":   LevelInfo,
		"":        LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
