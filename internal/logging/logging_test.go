package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_AutoFormatIsJSONWhenNotATerminal(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logger.Info("upload finalized", "name", "files/abc", "offset", 10)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected a JSON line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "upload finalized" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["name"] != "files/abc" {
		t.Errorf("name = %v", entry["name"])
	}
}

func TestNew_TextFormatWithoutColor(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, Config{Format: "text"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logger.Warn("chunk rejected", "status_code", 503)

	out := buf.String()
	if !strings.Contains(out, "chunk rejected") || !strings.Contains(out, "status_code=503") {
		t.Errorf("unexpected output: %q", out)
	}
	if strings.Contains(out, "\033[") {
		t.Errorf("non-terminal output must not contain ANSI escapes: %q", out)
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, Config{Level: "warn", Format: "json"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logger.Info("hidden")
	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected nothing below warn, got %q", buf.String())
	}
	logger.Error("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected error line, got %q", buf.String())
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	if _, err := New(&bytes.Buffer{}, Config{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
	if _, err := New(&bytes.Buffer{}, Config{Level: "verbose"}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil {
			t.Errorf("ParseLevel(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
