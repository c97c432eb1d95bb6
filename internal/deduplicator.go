package internal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Deduplicator removes byte-identical duplicate raw records, which appear in
// the log when an upstream retry re-emits a record it already wrote.
type Deduplicator struct{}

// NewDeduplicator creates a new Deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{}
}

// Deduplicate returns the records whose content hash has not been seen
// before, preserving first-seen order.
func (d *Deduplicator) Deduplicate(records []RawRecord) []RawRecord {
	seen := make(map[string]bool, len(records))
	unique := make([]RawRecord, 0, len(records))

	for _, record := range records {
		hash := d.hashRecord(record)
		if !seen[hash] {
			seen[hash] = true
			unique = append(unique, record)
		}
	}

	return unique
}

// hashRecord creates a content-based hash for a record. The id is excluded
// so the same payload written twice under fresh ids still collapses.
func (d *Deduplicator) hashRecord(record RawRecord) string {
	h := sha256.New()
	h.Write([]byte(record.SessionID))
	if payload, err := json.Marshal(record.Payload); err == nil {
		h.Write(payload)
	}
	return hex.EncodeToString(h.Sum(nil))
}
