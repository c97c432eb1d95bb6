package internal

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestSSEWriter_ChunkFraming(t *testing.T) {
	var buf bytes.Buffer
	writer := NewSSEWriter(&buf, "sess-1")

	if err := writer.WriteEvent(Chunk{Text: "hello"}); err != nil {
		t.Fatalf("WriteEvent() error = %v", err)
	}

	want := "data: {\"chunk\":\"hello\"}\n\n"
	if got := buf.String(); got != want {
		t.Errorf("frame = %q, want %q", got, want)
	}
}

func TestSSEWriter_ToolStartFraming(t *testing.T) {
	var buf bytes.Buffer
	writer := NewSSEWriter(&buf, "sess-1")

	err := writer.WriteEvent(ToolStart{
		ID:    "t1",
		Name:  "web_search",
		Input: map[string]interface{}{"query": "solar"},
	})
	if err != nil {
		t.Fatalf("WriteEvent() error = %v", err)
	}

	got := buf.String()
	if !strings.HasPrefix(got, "data: ") || !strings.HasSuffix(got, "\n\n") {
		t.Fatalf("frame not blank-line terminated: %q", got)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSuffix(strings.TrimPrefix(got, "data: "), "\n\n")), &doc); err != nil {
		t.Fatalf("frame payload is not JSON: %v", err)
	}
	if doc["type"] != "tool_start" || doc["tool_id"] != "t1" || doc["tool_name"] != "web_search" {
		t.Errorf("payload = %v", doc)
	}
}

func TestSSEWriter_DoneStampsSessionID(t *testing.T) {
	var buf bytes.Buffer
	writer := NewSSEWriter(&buf, "sess-1")

	err := writer.WriteEvent(Done{
		Response:  "report text",
		Model:     "m-large",
		Timestamp: time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("WriteEvent() error = %v", err)
	}

	var doc map[string]interface{}
	payload := strings.TrimSuffix(strings.TrimPrefix(buf.String(), "data: "), "\n\n")
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		t.Fatalf("frame payload is not JSON: %v", err)
	}

	if doc["type"] != "done" {
		t.Errorf("type = %v, want done", doc["type"])
	}
	if doc["session_id"] != "sess-1" {
		t.Errorf("session_id = %v, want the writer's id", doc["session_id"])
	}
	if doc["timestamp"] != "2026-01-15T10:30:00Z" {
		t.Errorf("timestamp = %v", doc["timestamp"])
	}
}

func TestSSEWriter_DoneKeepsUpstreamSessionID(t *testing.T) {
	var buf bytes.Buffer
	writer := NewSSEWriter(&buf, "sess-local")

	if err := writer.WriteEvent(Done{SessionID: "sess-upstream"}); err != nil {
		t.Fatalf("WriteEvent() error = %v", err)
	}

	var doc map[string]interface{}
	payload := strings.TrimSuffix(strings.TrimPrefix(buf.String(), "data: "), "\n\n")
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		t.Fatalf("frame payload is not JSON: %v", err)
	}
	if doc["session_id"] != "sess-upstream" {
		t.Errorf("session_id = %v, upstream id must win", doc["session_id"])
	}
}

func TestSSEWriter_ErrorFraming(t *testing.T) {
	var buf bytes.Buffer
	writer := NewSSEWriter(&buf, "sess-1")

	if err := writer.WriteEvent(RelayError{Message: "model overloaded"}); err != nil {
		t.Fatalf("WriteEvent() error = %v", err)
	}

	want := "data: {\"error\":\"model overloaded\",\"type\":\"error\"}\n\n"
	if got := buf.String(); got != want {
		t.Errorf("frame = %q, want %q", got, want)
	}
}

func TestSSEWriter_RoundTripThroughRelay(t *testing.T) {
	// Frames produced by the writer must parse back through the relay.
	var buf bytes.Buffer
	writer := NewSSEWriter(&buf, "sess-1")

	inputs := []RelayEvent{
		Chunk{Text: "hello"},
		ToolStart{ID: "t1", Name: "web_search"},
		Done{Response: "report", Model: "m-large"},
	}
	for _, ev := range inputs {
		if err := writer.WriteEvent(ev); err != nil {
			t.Fatalf("WriteEvent() error = %v", err)
		}
	}

	obs := NewCountingObserver(false)
	events := collectRelay(t, NewRelayWithObserver(obs), &buf)

	// The chunk frame has no type discriminator on the wire, so the relay
	// reports it skipped; the typed frames survive the round trip.
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if _, ok := events[0].(ToolStart); !ok {
		t.Errorf("event[0] type = %T, want ToolStart", events[0])
	}
	if done, ok := events[1].(Done); !ok || done.Response != "report" {
		t.Errorf("event[1] = %#v, want Done{report}", events[1])
	}
	if obs.LinesSkipped != 1 {
		t.Errorf("skipped lines = %d, want 1 (untyped chunk frame)", obs.LinesSkipped)
	}
}
