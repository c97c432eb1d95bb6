package internal

import (
	"encoding/json"
	"fmt"
	"time"
)

// Normalizer decodes raw log records into canonical Events.
//
// The workflow writes payloads in four shapes, tried in this exact order:
//  1. array whose first element wraps a JSON-encoded string in a "blob" field
//  2. array whose first element wraps a conversational message envelope
//  3. a plain JSON-encoded string
//  4. an already-decoded object
//
// Shapes 1 and 2 are both arrays and are disambiguated by field presence,
// never by type alone.
type Normalizer struct {
	obs Observer
	now func() time.Time
}

// NewNormalizer creates a new Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{obs: logObserver{}, now: time.Now}
}

// NewNormalizerWithObserver creates a Normalizer that reports skipped records
// to the given observer.
func NewNormalizerWithObserver(obs Observer) *Normalizer {
	if obs == nil {
		return NewNormalizer()
	}
	return &Normalizer{obs: obs, now: time.Now}
}

// Normalize decodes one raw record. On failure it returns a *DecodeError
// identifying the record; it never panics or aborts a batch.
func (n *Normalizer) Normalize(raw RawRecord) (*Event, error) {
	switch payload := raw.Payload.(type) {
	case []interface{}:
		if len(payload) == 0 {
			return nil, &DecodeError{RecordID: raw.ID, Shape: "array", Err: fmt.Errorf("empty payload array")}
		}
		first, ok := payload[0].(map[string]interface{})
		if !ok {
			return nil, &DecodeError{RecordID: raw.ID, Shape: "array", Err: fmt.Errorf("first element is not an object")}
		}
		if blob, ok := first["blob"].(string); ok {
			return n.decodeBlob(raw, blob)
		}
		if conv, ok := first["conversational"].(map[string]interface{}); ok {
			return n.decodeConversational(raw, conv)
		}
		return nil, &DecodeError{RecordID: raw.ID, Shape: "array", Err: fmt.Errorf("first element has neither blob nor conversational field")}
	case string:
		var data map[string]interface{}
		if err := json.Unmarshal([]byte(payload), &data); err != nil {
			return nil, &DecodeError{RecordID: raw.ID, Shape: "json-string", Err: err}
		}
		return n.liftEvent(raw, data), nil
	case map[string]interface{}:
		return n.liftEvent(raw, payload), nil
	default:
		return nil, &DecodeError{RecordID: raw.ID, Shape: "unknown", Err: fmt.Errorf("unsupported payload type %T", raw.Payload)}
	}
}

// NormalizeBatch decodes a batch, skipping records that fail to decode. The
// skipped list is returned for diagnostics only; a single malformed record
// never blanks out a session's timeline.
func (n *Normalizer) NormalizeBatch(records []RawRecord) ([]*Event, []*DecodeError) {
	events := make([]*Event, 0, len(records))
	var skipped []*DecodeError
	for _, raw := range records {
		event, err := n.Normalize(raw)
		if err != nil {
			var de *DecodeError
			if d, ok := err.(*DecodeError); ok {
				de = d
			} else {
				de = &DecodeError{RecordID: raw.ID, Shape: "unknown", Err: err}
			}
			skipped = append(skipped, de)
			n.obs.RecordSkipped(raw.ID, de)
			continue
		}
		events = append(events, event)
	}
	return events, skipped
}

// decodeBlob handles shape 1: the first array element carries a JSON-encoded
// string in its blob field.
func (n *Normalizer) decodeBlob(raw RawRecord, blob string) (*Event, error) {
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(blob), &data); err != nil {
		return nil, &DecodeError{RecordID: raw.ID, Shape: "blob", Err: err}
	}
	return n.liftEvent(raw, data), nil
}

// decodeConversational handles shape 2: conversational.content.text holds a
// JSON string that itself wraps a message envelope.
func (n *Normalizer) decodeConversational(raw RawRecord, conv map[string]interface{}) (*Event, error) {
	content, ok := conv["content"].(map[string]interface{})
	if !ok {
		return nil, &DecodeError{RecordID: raw.ID, Shape: "conversational", Err: fmt.Errorf("missing content object")}
	}
	text, ok := content["text"].(string)
	if !ok {
		return nil, &DecodeError{RecordID: raw.ID, Shape: "conversational", Err: fmt.Errorf("missing content.text")}
	}

	var envelope struct {
		Message struct {
			Role      string            `json:"role"`
			Content   []json.RawMessage `json:"content"`
			CreatedAt interface{}       `json:"created_at"`
			Model     string            `json:"model"`
		} `json:"message"`
		Model string `json:"model"`
	}
	if err := json.Unmarshal([]byte(text), &envelope); err != nil {
		return nil, &DecodeError{RecordID: raw.ID, Shape: "conversational", Err: err}
	}

	var msgText string
	if len(envelope.Message.Content) > 0 {
		var part struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(envelope.Message.Content[0], &part); err == nil {
			msgText = part.Text
		}
	}

	data := map[string]interface{}{
		"role":    envelope.Message.Role,
		"content": msgText,
	}
	model := envelope.Message.Model
	if model == "" {
		model = envelope.Model
	}
	if model != "" {
		data["model"] = model
	}

	timestamp, ok := parseTimestamp(envelope.Message.CreatedAt)
	if !ok {
		timestamp = n.fallbackTime(raw)
	}

	return &Event{
		ID:        raw.ID,
		Type:      EventConversationalTurn,
		Timestamp: timestamp,
		Data:      data,
	}, nil
}

// liftEvent builds an Event from a decoded object, lifting the well-known
// fields and retaining everything else verbatim in Data.
func (n *Normalizer) liftEvent(raw RawRecord, decoded map[string]interface{}) *Event {
	eventType := stringField(decoded, "type")
	if eventType == "" {
		eventType = stringField(decoded, "event_type")
	}

	timestamp, ok := parseTimestamp(decoded["timestamp"])
	if !ok {
		timestamp, ok = parseTimestamp(decoded["created_at"])
	}
	if !ok {
		timestamp = n.fallbackTime(raw)
	}

	data := make(map[string]interface{}, len(decoded))
	for k, v := range decoded {
		switch k {
		case "type", "event_type", "dimension", "aspect", "timestamp":
			// lifted
		default:
			data[k] = v
		}
	}

	return &Event{
		ID:        raw.ID,
		Type:      EventType(eventType),
		Timestamp: timestamp,
		Dimension: stringField(decoded, "dimension"),
		Aspect:    stringField(decoded, "aspect"),
		Data:      data,
	}
}

// fallbackTime resolves a timestamp for records whose payload carries none.
// The record's own creation time keeps Normalize idempotent; the clock is the
// last resort.
func (n *Normalizer) fallbackTime(raw RawRecord) time.Time {
	if !raw.CreatedAt.IsZero() {
		return raw.CreatedAt
	}
	return n.now()
}

// parseTimestamp accepts RFC3339 strings and epoch numbers (seconds or
// milliseconds, disambiguated by magnitude).
func parseTimestamp(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		if t == "" {
			return time.Time{}, false
		}
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed, true
		}
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed, true
		}
		return time.Time{}, false
	case float64:
		return epochToTime(int64(t)), true
	case int64:
		return epochToTime(t), true
	case int:
		return epochToTime(int64(t)), true
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return epochToTime(i), true
		}
		return time.Time{}, false
	}
	return time.Time{}, false
}

func epochToTime(v int64) time.Time {
	// Millisecond epochs are 13 digits for contemporary dates.
	if v > 1_000_000_000_000 {
		return time.Unix(0, v*int64(time.Millisecond)).UTC()
	}
	return time.Unix(v, 0).UTC()
}
