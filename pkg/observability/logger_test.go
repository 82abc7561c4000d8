package observability

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func captureOutput(f func()) string {
	var buf bytes.Buffer
	oldOutput := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(oldOutput)

	f()

	return buf.String()
}

func TestLogger_LogLevels(t *testing.T) {
	output := captureOutput(func() {
		logger := NewStandardLoggerWithLevel("test-service", LogLevelDebug)

		logger.Debug("Debug message", map[string]interface{}{"key": "value"})
		logger.Info("Info message", map[string]interface{}{"key": "value"})
		logger.Warn("Warn message", map[string]interface{}{"key": "value"})
	})

	if !strings.Contains(output, "Debug message") {
		t.Error("Expected Debug message but it was not found in the output")
	}
	if !strings.Contains(output, "Info message") {
		t.Error("Expected Info message but it was not found in the output")
	}
	if !strings.Contains(output, "Warn message") {
		t.Error("Expected Warn message but it was not found in the output")
	}
}

func TestLogger_MinimumLevel(t *testing.T) {
	output := captureOutput(func() {
		logger := NewStandardLogger("test-service")

		logger.Debug("Debug message", map[string]interface{}{"key": "value"})
		logger.Info("Info message", map[string]interface{}{"key": "value"})
	})

	if strings.Contains(output, "Debug message") {
		t.Error("Did not expect Debug message when minimum level is INFO")
	}
	if !strings.Contains(output, "Info message") {
		t.Error("Expected Info message but it was not found in the output")
	}
}

func TestLogger_WithPrefix(t *testing.T) {
	output := captureOutput(func() {
		logger := NewStandardLogger("parent-service")
		prefixedLogger := logger.WithPrefix("child")

		prefixedLogger.Info("Prefixed message", nil)
	})

	if !strings.Contains(output, "Prefixed message") {
		t.Error("Expected message not found in the output")
	}
	if !strings.Contains(output, "child") {
		t.Error("Expected prefix 'child' not found in the output")
	}
}

func TestLogger_WithFields(t *testing.T) {
	output := captureOutput(func() {
		logger := NewStandardLogger("test-service").With(map[string]interface{}{
			"request_id": "abc123",
		})
		logger.Info("Message with bound fields", map[string]interface{}{"extra": 1})
	})

	if !strings.Contains(output, "request_id=abc123") {
		t.Error("Expected bound field 'request_id=abc123' not found in the output")
	}
	if !strings.Contains(output, "extra=1") {
		t.Error("Expected call-site field 'extra=1' not found in the output")
	}
}

func TestLogger_StructuredData(t *testing.T) {
	output := captureOutput(func() {
		logger := NewStandardLogger("test-service")

		data := map[string]interface{}{
			"string": "value",
			"number": 42,
			"bool":   true,
		}
		logger.Info("Message with data", data)
	})

	if !strings.Contains(output, "Message with data") {
		t.Error("Expected message not found in the output")
	}
	if !strings.Contains(output, "string=value") {
		t.Error("Expected 'string=value' not found in the output")
	}
	if !strings.Contains(output, "number=42") {
		t.Error("Expected 'number=42' not found in the output")
	}
	if !strings.Contains(output, "bool=true") {
		t.Error("Expected 'bool=true' not found in the output")
	}
}

func TestLogger_NoopLogger(t *testing.T) {
	var buf bytes.Buffer
	oldOutput := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(oldOutput)

	logger := NewNoopLogger()

	logger.Debug("Debug message", map[string]interface{}{"key": "value"})
	logger.Info("Info message", map[string]interface{}{"key": "value"})
	logger.Warn("Warn message", map[string]interface{}{"key": "value"})
	logger.Error("Error message", map[string]interface{}{"key": "value"})

	prefixedLogger := logger.WithPrefix("prefix")
	prefixedLogger.Info("Prefixed message", nil)

	if output := buf.String(); output != "" {
		t.Errorf("Expected no output from NoopLogger, but got: %s", output)
	}
}

func TestMetricsClient_Snapshot(t *testing.T) {
	m := NewMetricsClient().(*metricsClient)

	m.IncrementCounter("requests_total", 1)
	m.IncrementCounter("requests_total", 2)
	m.RecordCounter("errors_total", 1, map[string]string{"code": "INTERNAL"})

	snap := m.Snapshot()
	if snap["requests_total"] != 3 {
		t.Errorf("Expected requests_total=3, got %v", snap["requests_total"])
	}
	if snap["errors_total,code=INTERNAL"] != 1 {
		t.Errorf("Expected labeled counter=1, got %v", snap["errors_total,code=INTERNAL"])
	}
}
