package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestNewLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, log.InfoLevel)

	logger.Debug("hidden")
	logger.Info("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug output should be filtered at info level")
	}
	if !strings.Contains(out, "visible") {
		t.Error("info output missing")
	}
}

func TestProgressDone(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, log.InfoLevel)

	p := newProgress(logger)
	p.done("Aligned overlay")

	out := buf.String()
	if !strings.Contains(out, "Aligned overlay") {
		t.Errorf("output = %q", out)
	}
	// Elapsed time is appended in parentheses.
	if !strings.Contains(out, "(") || !strings.Contains(out, ")") {
		t.Errorf("expected elapsed time in output, got %q", out)
	}
}

func TestLoggerContextRoundTrip(t *testing.T) {
	logger := newLogger(&bytes.Buffer{}, log.DebugLevel)

	ctx := withLogger(context.Background(), logger)
	if got := loggerFromContext(ctx); got != logger {
		t.Error("context should return the attached logger")
	}

	// No logger attached falls back to the default.
	if got := loggerFromContext(context.Background()); got == nil {
		t.Error("fallback logger should never be nil")
	}
}
