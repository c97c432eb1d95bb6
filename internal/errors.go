package internal

import "fmt"

// DecodeError represents a raw record whose payload matched none of the
// known shapes. Batch normalization skips the record and keeps going.
type DecodeError struct {
	RecordID string
	Shape    string // last shape the decoder attempted
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error [%s] %s: %v", e.RecordID, e.Shape, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// FrameParseError represents one data: line of a stream frame that could not
// be decoded. The relay logs it and stays open.
type FrameParseError struct {
	Line string
	Err  error
}

func (e *FrameParseError) Error() string {
	return fmt.Sprintf("frame parse error %q: %v", truncateErr(e.Line, 80), e.Err)
}

func (e *FrameParseError) Unwrap() error {
	return e.Err
}

// StreamError represents an upstream transport failure. It is the only
// condition the relay treats as fatal to the current turn.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream error: %v", e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// GraphError represents invalid input to graph synthesis. Synthesis is total
// for any non-nil event list, so this only reports a nil batch.
type GraphError struct {
	Reason string
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("graph error: %s", e.Reason)
}

// StorageError represents errors accessing the event store.
type StorageError struct {
	Path string
	Op   string // "open", "query", "scan"
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ExportError represents errors during export.
type ExportError struct {
	Format string
	Path   string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export error [%s] %s: %v", e.Format, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

func truncateErr(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
