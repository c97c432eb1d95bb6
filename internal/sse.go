package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SSEWriter frames RelayEvents for browser EventSource/fetch-stream clients:
// one JSON document per data: line, records separated by a blank line. The
// framing must be reproduced exactly or the client parser stalls.
type SSEWriter struct {
	w         io.Writer
	flusher   http.Flusher
	sessionID string
}

// NewSSEWriter creates an SSEWriter. The session id is stamped onto done
// events, since the upstream stream does not know it.
func NewSSEWriter(w io.Writer, sessionID string) *SSEWriter {
	sw := &SSEWriter{w: w, sessionID: sessionID}
	if f, ok := w.(http.Flusher); ok {
		sw.flusher = f
	}
	return sw
}

// WriteEvent emits one SSE record for the event.
func (s *SSEWriter) WriteEvent(ev RelayEvent) error {
	doc, err := s.marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", doc); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

func (s *SSEWriter) marshal(ev RelayEvent) ([]byte, error) {
	switch e := ev.(type) {
	case Chunk:
		return json.Marshal(map[string]interface{}{"chunk": e.Text})
	case ToolStart:
		return json.Marshal(map[string]interface{}{
			"type":      "tool_start",
			"tool_id":   e.ID,
			"tool_name": e.Name,
			"input":     e.Input,
		})
	case Done:
		doc := map[string]interface{}{
			"type":       "done",
			"session_id": s.sessionID,
			"response":   e.Response,
			"model":      e.Model,
			"tool_calls": e.ToolCalls,
		}
		if !e.Timestamp.IsZero() {
			doc["timestamp"] = e.Timestamp.Format(time.RFC3339)
		}
		if e.SessionID != "" {
			doc["session_id"] = e.SessionID
		}
		return json.Marshal(doc)
	case RelayError:
		return json.Marshal(map[string]interface{}{"type": "error", "error": e.Message})
	default:
		return nil, fmt.Errorf("unknown relay event %T", ev)
	}
}

// OpenTurnStream starts a chat turn against the job-invocation endpoint and
// returns its live byte stream. Closing the body is how a caller unblocks a
// relay read after cancellation.
func OpenTurnStream(ctx context.Context, url string, body io.Reader) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build turn request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, &StreamError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &StreamError{Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	return resp.Body, nil
}
