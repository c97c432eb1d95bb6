package internal

import (
	"time"
)

// EventType identifies a workflow or conversation occurrence.
type EventType string

const (
	EventResearchStart      EventType = "research_start"
	EventReferencesPrepared EventType = "references_prepared"
	EventDimensionsFound    EventType = "dimensions_identified"
	EventAspectComplete     EventType = "aspect_research_complete"
	EventDimensionDocument  EventType = "dimension_document_complete"
	EventResearchComplete   EventType = "research_complete"
	EventConversationalTurn EventType = "conversational_turn"
)

// RawRecord is one row of the session event log as stored by the workflow.
// Payload is opaque: depending on which component wrote the record it is a
// blob-wrapped array, a conversational-wrapped array, a JSON-encoded string,
// or an already-decoded object.
type RawRecord struct {
	ID        string      `json:"id"`
	SessionID string      `json:"session_id,omitempty"`
	CreatedAt time.Time   `json:"created_at,omitempty"`
	Payload   interface{} `json:"payload"`
}

// Event is the canonical decoded record consumed by the history merger and
// the trace graph synthesizer. Immutable once constructed.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Dimension string                 `json:"dimension,omitempty"`
	Aspect    string                 `json:"aspect,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// IsChat reports whether the event carries conversational content.
func (e *Event) IsChat() bool {
	return e.Type == EventConversationalTurn
}

// stringField returns data[key] if it is a non-empty string.
func stringField(data map[string]interface{}, key string) string {
	if s, ok := data[key].(string); ok {
		return s
	}
	return ""
}

// numberField returns data[key] as an int64 if it is numeric.
func numberField(data map[string]interface{}, key string) (int64, bool) {
	switch v := data[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}
