package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestDebugRespectsVerbose(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	SetVerbose(false)
	Debug("hidden %s", "message")
	if strings.Contains(buf.String(), "hidden") {
		t.Errorf("debug logged while verbose disabled: %q", buf.String())
	}

	SetVerbose(true)
	defer SetVerbose(false)
	Debug("shown %s", "message")
	if !strings.Contains(buf.String(), "shown message") {
		t.Errorf("debug not logged while verbose enabled: %q", buf.String())
	}
}

func TestInfoAlwaysLogs(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	SetVerbose(false)
	Info("hydrated %d chunks", 42)
	if !strings.Contains(buf.String(), "hydrated 42 chunks") {
		t.Errorf("info not logged: %q", buf.String())
	}
}

func TestSectionOnlyWhenVerbose(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	SetVerbose(false)
	Section("Retrieval")
	if buf.Len() != 0 {
		t.Errorf("section logged while verbose disabled: %q", buf.String())
	}

	SetVerbose(true)
	defer SetVerbose(false)
	Section("Retrieval")
	if !strings.Contains(buf.String(), "=== Retrieval ===") {
		t.Errorf("section header missing: %q", buf.String())
	}
}

func TestIsVerbose(t *testing.T) {
	SetVerbose(true)
	if !IsVerbose() {
		t.Error("expected verbose true")
	}
	SetVerbose(false)
	if IsVerbose() {
		t.Error("expected verbose false")
	}
}
