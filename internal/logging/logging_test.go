package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	t.Run("with default output", func(t *testing.T) {
		logger := NewLogger(Config{Level: InfoLevel})
		if logger == nil {
			t.Fatal("NewLogger returned nil")
		}
	})

	t.Run("with custom output", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger := NewLogger(Config{Level: InfoLevel, Output: buf})
		if logger.writer != buf {
			t.Error("Logger should use provided output writer")
		}
	})
}

func TestLogLevelFiltering(t *testing.T) {
	tests := []struct {
		name      string
		configLvl LogLevel
		logLvl    LogLevel
		shouldLog bool
	}{
		{"debug logs debug", DebugLevel, DebugLevel, true},
		{"debug logs info", DebugLevel, InfoLevel, true},
		{"info drops debug", InfoLevel, DebugLevel, false},
		{"info logs warn", InfoLevel, WarnLevel, true},
		{"warn drops info", WarnLevel, InfoLevel, false},
		{"error drops warn", ErrorLevel, WarnLevel, false},
		{"error logs error", ErrorLevel, ErrorLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := NewLogger(Config{Level: tt.configLvl, Format: HumanFormat, Output: buf})
			logger.log(tt.logLvl, "message", nil)

			got := buf.Len() > 0
			if got != tt.shouldLog {
				t.Errorf("level %s with config %s: logged=%v, want %v", tt.logLvl, tt.configLvl, got, tt.shouldLog)
			}
		})
	}
}

func TestJSONFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(Config{Level: DebugLevel, Format: JSONFormat, Output: buf})

	logger.Info("search dispatched", map[string]interface{}{"backend": "catalog"})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["message"] != "search dispatched" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v", entry["level"])
	}
	fields, ok := entry["fields"].(map[string]interface{})
	if !ok || fields["backend"] != "catalog" {
		t.Errorf("fields = %v", entry["fields"])
	}
}

func TestNamed(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(Config{Level: DebugLevel, Format: HumanFormat, Output: buf})

	child := logger.Named("orchestrator").Named("fanout")
	child.Info("joined", nil)

	if !strings.Contains(buf.String(), "(orchestrator.fanout)") {
		t.Errorf("expected component tag in output, got %q", buf.String())
	}
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(Config{Level: DebugLevel, Format: JSONFormat, Output: buf})

	child := logger.With(map[string]interface{}{"requestId": "abc"})
	child.Info("done", map[string]interface{}{"count": 3})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	fields := entry["fields"].(map[string]interface{})
	if fields["requestId"] != "abc" {
		t.Errorf("base field missing: %v", fields)
	}
	if fields["count"] != float64(3) {
		t.Errorf("call field missing: %v", fields)
	}

	// Base fields must not leak back into the parent.
	buf.Reset()
	logger.Info("parent", nil)
	if strings.Contains(buf.String(), "requestId") {
		t.Error("parent logger inherited child fields")
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != DebugLevel {
		t.Error("debug not parsed")
	}
	if ParseLevel("bogus") != InfoLevel {
		t.Error("unknown level should default to info")
	}
}
