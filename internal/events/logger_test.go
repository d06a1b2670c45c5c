package events

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestGetGlobalEventLoggerReturnsSingletonNoopWhenUnset(t *testing.T) {
	SetGlobalEventLogger(nil)

	a := GetGlobalEventLogger()
	b := GetGlobalEventLogger()

	if a == nil || b == nil {
		t.Fatal("expected non-nil noop logger")
	}
	if a != b {
		t.Fatal("expected singleton noop logger instance")
	}
}

func TestLogWorkerRestartEmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	el := NewEventLoggerWithWriter("cam1", &buf)

	el.LogWorkerRestart(2, "decode_error", 500)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected valid JSON line, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "worker_restart" {
		t.Errorf("expected msg worker_restart, got %v", rec["msg"])
	}
	if rec["source_id"] != "cam1" {
		t.Errorf("expected source_id cam1, got %v", rec["source_id"])
	}
	if rec["reason"] != "decode_error" {
		t.Errorf("expected reason decode_error, got %v", rec["reason"])
	}
}

func TestLogBreakerTripIncludesThreshold(t *testing.T) {
	var buf bytes.Buffer
	el := NewEventLoggerWithWriter("dispatcher", &buf)

	el.LogBreakerTrip("webhook", 5, 5)

	if !strings.Contains(buf.String(), "\"channel\":\"webhook\"") {
		t.Errorf("expected channel attribute in output, got %q", buf.String())
	}
}

func TestSetGlobalEventLoggerOverridesDefault(t *testing.T) {
	var buf bytes.Buffer
	custom := NewEventLoggerWithWriter("cam2", &buf)
	SetGlobalEventLogger(custom)
	defer SetGlobalEventLogger(nil)

	if GetGlobalEventLogger() != custom {
		t.Fatal("expected global logger to be the custom instance")
	}
}
