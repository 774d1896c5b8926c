package telemetry_test

import (
	"encoding/json"
	"math"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jthornhill/finagent/internal/telemetry"
)

func TestEmit_DisabledWritesNothing(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FIN_OBSERVE_JSON", "0")

	telemetry.Emit("test_event", map[string]any{"foo": "bar"})

	if _, err := os.Stat(".finagent/events.jsonl"); !os.IsNotExist(err) {
		t.Fatalf("expected no events file with observation off, got err=%v", err)
	}
}

func TestEmit_HappyPath(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FIN_OBSERVE_JSON", "1")

	telemetry.Emit("test_event", map[string]any{"foo": "bar", "num": 42})

	data, err := os.ReadFile(".finagent/events.jsonl")
	if err != nil {
		t.Fatalf("failed to read events.jsonl: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}

	var event map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &event); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if event["event"] != "test_event" {
		t.Errorf("expected event=test_event, got %v", event["event"])
	}
	if event["foo"] != "bar" {
		t.Errorf("expected foo=bar, got %v", event["foo"])
	}
	if event["num"] != float64(42) { // JSON numbers are float64
		t.Errorf("expected num=42, got %v", event["num"])
	}

	timeStr, ok := event["time"].(string)
	if !ok {
		t.Fatal("expected time field as string")
	}
	if _, err := time.Parse(time.RFC3339Nano, timeStr); err != nil {
		t.Errorf("time field not valid RFC3339Nano: %v", err)
	}
}

func TestEmit_AppendsLines(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FIN_OBSERVE_JSON", "1")

	telemetry.Emit("event1", map[string]any{"id": 1})
	telemetry.Emit("event2", map[string]any{"id": 2})
	telemetry.Emit("event3", map[string]any{"id": 3})

	data, err := os.ReadFile(".finagent/events.jsonl")
	if err != nil {
		t.Fatalf("failed to read events.jsonl: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	for i, want := range []string{"event1", "event2", "event3"} {
		var event map[string]any
		if err := json.Unmarshal([]byte(lines[i]), &event); err != nil {
			t.Fatalf("line %d invalid JSON: %v", i+1, err)
		}
		if event["event"] != want {
			t.Errorf("line %d: expected event=%s, got %v", i+1, want, event["event"])
		}
	}
}

func TestEmit_CallerMapNotMutated(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FIN_OBSERVE_JSON", "1")

	fields := map[string]any{"key": "value"}
	telemetry.Emit("test", fields)

	if len(fields) != 1 || fields["key"] != "value" {
		t.Errorf("caller map mutated: %v", fields)
	}
}

func TestEmit_MarshalErrorWritesNothing(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FIN_OBSERVE_JSON", "1")

	// NaN cannot be marshaled by encoding/json.
	telemetry.Emit("bad", map[string]any{"x": math.NaN()})

	if _, err := os.Stat(".finagent/events.jsonl"); !os.IsNotExist(err) {
		t.Fatalf("expected no events file on marshal error, got err=%v", err)
	}
}

func TestEmit_NilFields(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FIN_OBSERVE_JSON", "1")

	telemetry.Emit("nil_fields", nil)

	data, err := os.ReadFile(".finagent/events.jsonl")
	if err != nil {
		t.Fatalf("failed to read events.jsonl: %v", err)
	}
	var event map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &event); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if event["event"] != "nil_fields" {
		t.Errorf("expected event=nil_fields, got %v", event["event"])
	}
	if len(event) != 2 {
		t.Fatalf("expected exactly 2 keys (event,time), got %d: %#v", len(event), event)
	}
}

func TestEmitTextFeatures_CountsOnly(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FIN_OBSERVE_JSON", "1")

	ctx := telemetry.WithTurnID(t.Context(), "turn-1")
	text := "forecast line one\nforecast line two"
	telemetry.EmitTextFeatures(ctx, "forecast_text", text)

	data, err := os.ReadFile(".finagent/events.jsonl")
	if err != nil {
		t.Fatalf("failed to read events.jsonl: %v", err)
	}
	var event map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &event); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if event["event"] != "text_features" || event["kind"] != "forecast_text" {
		t.Errorf("event = %v", event)
	}
	if event["turn_id"] != "turn-1" {
		t.Errorf("turn_id = %v", event["turn_id"])
	}
	if event["bytes"] != float64(len(text)) {
		t.Errorf("bytes = %v", event["bytes"])
	}
	if event["words"] != float64(6) {
		t.Errorf("words = %v", event["words"])
	}
	if event["lines"] != float64(2) {
		t.Errorf("lines = %v", event["lines"])
	}
	// The payload itself must never be emitted.
	if strings.Contains(string(data), "forecast line one") {
		t.Errorf("event leaked payload text: %s", data)
	}
}
