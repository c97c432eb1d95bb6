package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// RelayEvent is one typed event forwarded from the upstream token stream to
// the client, in strict arrival order.
type RelayEvent interface {
	relayEvent()
}

// Chunk carries one increment of assistant text.
type Chunk struct {
	Text string
}

// ToolStart announces a tool invocation inside the current turn.
type ToolStart struct {
	ID    string
	Name  string
	Input map[string]interface{}
}

// ToolCall summarizes one completed tool invocation on the Done event.
type ToolCall struct {
	ID    string                 `json:"id,omitempty"`
	Name  string                 `json:"name"`
	Input map[string]interface{} `json:"input,omitempty"`
}

// Done terminates a successful turn.
type Done struct {
	SessionID string
	Response  string
	Model     string
	Timestamp time.Time
	ToolCalls []ToolCall
}

// RelayError terminates a failed turn. The relay emits at most one.
type RelayError struct {
	Message string
}

func (Chunk) relayEvent()      {}
func (ToolStart) relayEvent()  {}
func (Done) relayEvent()       {}
func (RelayError) relayEvent() {}

const (
	dataLinePrefix = "data: "
	frameSeparator = "\n\n"
)

// Relay parses the job endpoint's blank-line framed byte stream into
// RelayEvents: buffer partial reads, split frames on "\n\n", decode each
// "data: " line independently, and suppress a Chunk identical to the
// immediately preceding forwarded Chunk.
//
// One Relay serves one in-flight turn; it is not reused.
type Relay struct {
	obs      Observer
	readSize int
}

// NewRelay creates a Relay that logs skipped lines to the package logger.
func NewRelay() *Relay {
	return &Relay{obs: logObserver{}, readSize: 4096}
}

// NewRelayWithObserver creates a Relay reporting skips and suppressions to
// the given observer.
func NewRelayWithObserver(obs Observer) *Relay {
	if obs == nil {
		return NewRelay()
	}
	return &Relay{obs: obs, readSize: 4096}
}

// Stream consumes upstream until EOF, a transport error, or context
// cancellation, and emits RelayEvents on the returned channel in the order
// their data: lines arrived. The channel is unbuffered: downstream
// backpressure propagates to the read loop instead of accumulating. The
// channel closes when the turn is over.
//
// On a transport error the relay emits exactly one RelayError and stops.
// Cancellation stops the read loop; the caller owns closing the upstream
// reader to unblock any in-flight Read.
func (r *Relay) Stream(ctx context.Context, upstream io.Reader) <-chan RelayEvent {
	out := make(chan RelayEvent)
	go func() {
		defer close(out)
		r.run(ctx, upstream, out)
	}()
	return out
}

func (r *Relay) run(ctx context.Context, upstream io.Reader, out chan<- RelayEvent) {
	var buf []byte
	var lastChunk string
	var haveChunk bool

	forward := func(ev RelayEvent) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	emitFrame := func(frame []byte) bool {
		for _, line := range strings.Split(string(frame), "\n") {
			if !strings.HasPrefix(line, dataLinePrefix) {
				continue
			}
			payload := line[len(dataLinePrefix):]
			ev, err := r.classify(payload)
			if err != nil {
				r.obs.LineSkipped(payload, err)
				continue
			}
			if ev == nil {
				continue
			}
			if chunk, ok := ev.(Chunk); ok {
				if haveChunk && chunk.Text == lastChunk {
					r.obs.ChunkSuppressed(chunk.Text)
					continue
				}
				lastChunk = chunk.Text
				haveChunk = true
			}
			if !forward(ev) {
				return false
			}
		}
		return true
	}

	chunk := make([]byte, r.readSize)
	for {
		if ctx.Err() != nil {
			return
		}

		n, err := upstream.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			for {
				idx := bytes.Index(buf, []byte(frameSeparator))
				if idx < 0 {
					break
				}
				frame := buf[:idx]
				buf = buf[idx+len(frameSeparator):]
				if !emitFrame(frame) {
					return
				}
			}
		}

		if err == io.EOF {
			// Final fragment may lack its terminating blank line.
			if len(bytes.TrimSpace(buf)) > 0 {
				emitFrame(buf)
			}
			return
		}
		if err != nil {
			forward(RelayError{Message: err.Error()})
			return
		}
	}
}

// classify decodes one data: payload and maps it onto the RelayEvent union
// by its type discriminator. Unknown or missing types are skipped, not fatal.
func (r *Relay) classify(payload string) (RelayEvent, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &obj); err != nil {
		return nil, &FrameParseError{Line: payload, Err: err}
	}

	switch stringField(obj, "type") {
	case "chunk":
		return Chunk{Text: stringField(obj, "chunk")}, nil
	case "tool_start":
		input, _ := obj["input"].(map[string]interface{})
		return ToolStart{
			ID:    stringField(obj, "tool_id"),
			Name:  stringField(obj, "tool_name"),
			Input: input,
		}, nil
	case "done":
		done := Done{
			SessionID: stringField(obj, "session_id"),
			Response:  stringField(obj, "response"),
			Model:     stringField(obj, "model"),
		}
		if ts, ok := parseTimestamp(obj["timestamp"]); ok {
			done.Timestamp = ts
		}
		if calls, ok := obj["tool_calls"].([]interface{}); ok {
			for _, call := range calls {
				callObj, ok := call.(map[string]interface{})
				if !ok {
					continue
				}
				input, _ := callObj["input"].(map[string]interface{})
				done.ToolCalls = append(done.ToolCalls, ToolCall{
					ID:    stringField(callObj, "id"),
					Name:  stringField(callObj, "name"),
					Input: input,
				})
			}
		}
		return done, nil
	case "error":
		return RelayError{Message: stringField(obj, "error")}, nil
	case "":
		r.obs.LineSkipped(payload, fmt.Errorf("missing type discriminator"))
		return nil, nil
	default:
		r.obs.LineSkipped(payload, fmt.Errorf("unknown type %q", stringField(obj, "type")))
		return nil, nil
	}
}
