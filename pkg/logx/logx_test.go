package logx

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("pipeline", &buf)
	logger.Info("Test message with %s", "formatting")

	out := buf.String()
	if !strings.Contains(out, "[pipeline]") {
		t.Errorf("Expected component in output, got: %s", out)
	}
	if !strings.Contains(out, "INFO: Test message with formatting") {
		t.Errorf("Expected level and message in output, got: %s", out)
	}
	if !strings.HasPrefix(out, "[") || !strings.Contains(out, "Z]") {
		t.Errorf("Expected ISO timestamp in output, got: %s", out)
	}
}

func TestDebugRespectsEnableFlag(t *testing.T) {
	defer SetDebug(false)

	var buf bytes.Buffer
	logger := NewLoggerWithWriter("oracle", &buf)

	SetDebug(false)
	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("Expected no debug output when disabled, got: %s", buf.String())
	}

	SetDebug(true)
	logger.Debug("shown %d", 1)
	if !strings.Contains(buf.String(), "DEBUG: shown 1") {
		t.Errorf("Expected debug output when enabled, got: %s", buf.String())
	}
}

func TestDomainFiltering(t *testing.T) {
	defer SetDebug(false)

	tests := []struct {
		name    string
		enabled bool
		domains []string
		domain  string
		want    bool
	}{
		{"disabled", false, nil, "pipeline", false},
		{"all domains", true, nil, "pipeline", true},
		{"matching domain", true, []string{"pipeline", "oracle"}, "oracle", true},
		{"filtered out", true, []string{"pipeline"}, "oracle", false},
		{"blank entries ignored", true, []string{" ", ""}, "oracle", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetDebug(tt.enabled, tt.domains...)
			if got := IsDebugEnabledForDomain(tt.domain); got != tt.want {
				t.Errorf("IsDebugEnabledForDomain(%q) = %v, want %v", tt.domain, got, tt.want)
			}
		})
	}
}

func TestLogFileCapturesOutput(t *testing.T) {
	dir := t.TempDir()
	path, err := InitializeLogFile(dir, false)
	if err != nil {
		t.Fatalf("InitializeLogFile: %v", err)
	}

	NewLogger("kernel").Info("run started")
	if err := CloseLogFile(); err != nil {
		t.Fatalf("CloseLogFile: %v", err)
	}

	if filepath.Dir(path) != dir {
		t.Errorf("Expected log file in %s, got %s", dir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "[kernel] INFO: run started") {
		t.Errorf("Expected log line in file, got: %s", data)
	}
}

func TestContextComponent(t *testing.T) {
	ctx := WithComponent(context.Background(), "verify")
	if got := ctx.Value(ComponentKey); got != "verify" {
		t.Errorf("Expected component in context, got %v", got)
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "noop") != nil {
		t.Error("Wrap(nil) should return nil")
	}

	base := errors.New("boom")
	err := Wrap(base, "db connect")
	if !errors.Is(err, base) {
		t.Error("Wrap should preserve the cause")
	}
	if err.Error() != "db connect: boom" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
