package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONLExporter_Export(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONLExporter{}).Export(sampleTranscript(), &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	var first map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line 0 is not JSON: %v", err)
	}
	if first["role"] != "user" || first["content"] != "What changed?" {
		t.Errorf("line 0 = %v", first)
	}
	if _, ok := first["timestamp"]; !ok {
		t.Error("line 0 missing timestamp")
	}

	var second map[string]interface{}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("line 1 is not JSON: %v", err)
	}
	if second["model"] != "m-large" {
		t.Errorf("line 1 model = %v, want m-large", second["model"])
	}
}

func TestJSONLExporter_EmptyTranscript(t *testing.T) {
	transcript := sampleTranscript()
	transcript.Messages = nil

	var buf bytes.Buffer
	if err := (&JSONLExporter{}).Export(transcript, &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("empty transcript produced output: %q", buf.String())
	}
}
