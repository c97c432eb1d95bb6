package internal

import (
	"sort"
	"time"
)

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one display-ready transcript entry. Adjacent events with the
// same role are merged into a single Message during reconstruction.
type Message struct {
	Role          Role      `json:"role" yaml:"role"`
	Content       string    `json:"content" yaml:"content"`
	Timestamp     time.Time `json:"timestamp" yaml:"timestamp"`
	Model         string    `json:"model,omitempty" yaml:"model,omitempty"`
	SourceEventID string    `json:"source_event_id,omitempty" yaml:"source_event_id,omitempty"`
}

// Transcript is the reconstructed conversation for one session.
type Transcript struct {
	SessionID string             `json:"session_id" yaml:"session_id"`
	Title     string             `json:"title,omitempty" yaml:"title,omitempty"`
	Messages  []Message          `json:"messages" yaml:"messages"`
	Metadata  TranscriptMetadata `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// TranscriptMetadata carries reconstruction diagnostics.
type TranscriptMetadata struct {
	EventCount     int    `json:"event_count" yaml:"event_count"`
	MessageCount   int    `json:"message_count" yaml:"message_count"`
	SkippedRecords int    `json:"skipped_records,omitempty" yaml:"skipped_records,omitempty"`
	CreatedAt      string `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt      string `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// messageSeparator joins events that were recorded separately but belong to
// one logical turn (an assistant turn interleaved with tool activity).
const messageSeparator = "\n\n"

// MergeHistory turns a batch of normalized chat events into display-ready
// messages: map to messages, stable-sort by timestamp, then merge adjacent
// same-role messages. Total character content is conserved modulo the
// inserted separators.
func MergeHistory(events []*Event) []Message {
	messages := make([]Message, 0, len(events))
	for _, event := range events {
		if event == nil || !event.IsChat() {
			continue
		}
		messages = append(messages, Message{
			Role:          messageRole(event),
			Content:       messageContent(event),
			Timestamp:     event.Timestamp,
			Model:         stringField(event.Data, "model"),
			SourceEventID: event.ID,
		})
	}

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})

	if len(messages) == 0 {
		return messages
	}

	merged := messages[:1]
	for _, msg := range messages[1:] {
		last := &merged[len(merged)-1]
		if msg.Role == last.Role {
			last.Content += messageSeparator + msg.Content
			last.Timestamp = msg.Timestamp
			if last.Model == "" {
				last.Model = msg.Model
			}
			continue
		}
		merged = append(merged, msg)
	}
	return merged
}

// messageRole reads the decoded role, defaulting to user when the field is
// missing or unrecognized.
func messageRole(event *Event) Role {
	switch stringField(event.Data, "role") {
	case "assistant":
		return RoleAssistant
	case "user":
		return RoleUser
	default:
		return RoleUser
	}
}

// messageContent picks the first non-empty of the decoded content fields.
func messageContent(event *Event) string {
	if content := stringField(event.Data, "content"); content != "" {
		return content
	}
	if content := stringField(event.Data, "message"); content != "" {
		return content
	}
	return ""
}

// BuildTranscript runs the full reconstruction for one session: dedup,
// normalize, merge.
func BuildTranscript(sessionID, title string, records []RawRecord, normalizer *Normalizer) *Transcript {
	if normalizer == nil {
		normalizer = NewNormalizer()
	}
	unique := NewDeduplicator().Deduplicate(records)
	events, skipped := normalizer.NormalizeBatch(unique)
	messages := MergeHistory(events)

	meta := TranscriptMetadata{
		EventCount:     len(events),
		MessageCount:   len(messages),
		SkippedRecords: len(skipped),
	}
	if len(messages) > 0 {
		meta.CreatedAt = messages[0].Timestamp.Format(time.RFC3339)
		meta.UpdatedAt = messages[len(messages)-1].Timestamp.Format(time.RFC3339)
	}

	return &Transcript{
		SessionID: sessionID,
		Title:     title,
		Messages:  messages,
		Metadata:  meta,
	}
}
