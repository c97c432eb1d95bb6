package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/iksnae/research-trace/internal"
)

func sampleTranscript() *internal.Transcript {
	return &internal.Transcript{
		SessionID: "sess-1",
		Title:     "Solar study",
		Messages: []internal.Message{
			{Role: internal.RoleUser, Content: "What changed?", Timestamp: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)},
			{Role: internal.RoleAssistant, Content: "Subsidies expanded.", Timestamp: time.Date(2026, 1, 15, 10, 1, 0, 0, time.UTC), Model: "m-large"},
		},
		Metadata: internal.TranscriptMetadata{EventCount: 2, MessageCount: 2},
	}
}

func TestMarkdownExporter_Export(t *testing.T) {
	var buf bytes.Buffer
	e := &MarkdownExporter{}

	if err := e.Export(sampleTranscript(), &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"# Solar study",
		"**Session:** sess-1",
		"**user:**",
		"**assistant:**",
		"What changed?",
		"Subsidies expanded.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestMarkdownExporter_UntitledFallsBackToSessionID(t *testing.T) {
	transcript := sampleTranscript()
	transcript.Title = ""

	var buf bytes.Buffer
	if err := (&MarkdownExporter{}).Export(transcript, &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !strings.Contains(buf.String(), "# Session sess-1") {
		t.Error("untitled transcript should use the session id as header")
	}
}

func TestMarkdownExporter_EscapesOutsideCodeBlocks(t *testing.T) {
	transcript := sampleTranscript()
	transcript.Messages[0].Content = "**bold** text\n```\n**code**\n```"

	var buf bytes.Buffer
	if err := (&MarkdownExporter{}).Export(transcript, &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `\*\*bold\*\*`) {
		t.Error("markdown outside code blocks should be escaped")
	}
	if !strings.Contains(out, "**code**") {
		t.Error("markdown inside code blocks should be preserved")
	}
}

func TestMarkdownExporter_Extension(t *testing.T) {
	if got := (&MarkdownExporter{}).Extension(); got != "md" {
		t.Errorf("Extension() = %q, want md", got)
	}
}
