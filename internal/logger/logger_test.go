package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
	}

	for input, want := range tests {
		if got := parseLevel(input); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flagspan.log")

	log, err := New(Config{Level: "info", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	log.With(String("source", "doc.txt")).Info("reconciled",
		Int("flags", 3),
		Float64("ratio", 0.75),
		Bool("cached", false),
		Duration("took", time.Millisecond),
		Error(errors.New("none")),
	)
	log.Debug("hidden at info level")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)

	if !strings.Contains(out, `"msg":"reconciled"`) {
		t.Errorf("expected JSON message, got %s", out)
	}
	if !strings.Contains(out, `"source":"doc.txt"`) || !strings.Contains(out, `"flags":3`) {
		t.Errorf("expected fields in output, got %s", out)
	}
	if strings.Contains(out, "hidden at info level") {
		t.Error("debug entry should be filtered at info level")
	}
}

func TestNewNop(t *testing.T) {
	log := NewNop()
	log.Info("discarded")
	log.With(String("k", "v")).Warn("discarded")
}
