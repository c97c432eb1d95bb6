package internal

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Store reads raw session records from the event store database.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a Store over an open database.
func NewStore(db *sql.DB, path string) *Store {
	return &Store{db: db, path: path}
}

// OpenStore opens the event store at path.
func OpenStore(path string) (*Store, error) {
	db, err := OpenDatabase(path)
	if err != nil {
		return nil, err
	}
	return NewStore(db, path), nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the store location, used as the cache key.
func (s *Store) Path() string {
	return s.path
}

// DB exposes the underlying handle for schema diagnostics.
func (s *Store) DB() *sql.DB {
	return s.db
}

// LoadSessions lists all sessions with their event counts, newest first.
func (s *Store) LoadSessions() ([]*SessionInfo, error) {
	rows, err := s.db.Query(`
		SELECT s.id, s.title, s.status, s.created_at,
		       (SELECT COUNT(*) FROM events e WHERE e.session_id = s.id)
		FROM sessions s
		ORDER BY s.created_at DESC, s.id
	`)
	if err != nil {
		return nil, &StorageError{Path: s.path, Op: "query", Err: err}
	}
	defer rows.Close()

	var sessions []*SessionInfo
	for rows.Next() {
		var info SessionInfo
		var title, status, createdAt sql.NullString
		if err := rows.Scan(&info.ID, &title, &status, &createdAt, &info.EventCount); err != nil {
			return nil, &StorageError{Path: s.path, Op: "scan", Err: err}
		}
		info.Title = title.String
		info.Status = status.String
		if createdAt.Valid {
			if t, err := time.Parse(time.RFC3339, createdAt.String); err == nil {
				info.CreatedAt = t
			}
		}
		sessions = append(sessions, &info)
	}

	if err := rows.Err(); err != nil {
		return nil, &StorageError{Path: s.path, Op: "scan", Err: err}
	}

	return sessions, nil
}

// LoadSession returns the summary for one session, or nil if unknown.
func (s *Store) LoadSession(sessionID string) (*SessionInfo, error) {
	sessions, err := s.LoadSessions()
	if err != nil {
		return nil, err
	}
	for _, info := range sessions {
		if info.ID == sessionID {
			return info, nil
		}
	}
	return nil, nil
}

// LoadRecords loads the raw event log for one session in insertion order.
// Payload columns that are not valid JSON are passed through as strings so
// the normalizer can account for them as decode skips.
func (s *Store) LoadRecords(sessionID string) ([]RawRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, created_at, payload FROM events
		WHERE session_id = ? AND payload IS NOT NULL
		ORDER BY rowid
	`, sessionID)
	if err != nil {
		return nil, &StorageError{Path: s.path, Op: "query", Err: err}
	}
	defer rows.Close()

	var records []RawRecord
	for rows.Next() {
		var id string
		var createdAt, payload sql.NullString
		if err := rows.Scan(&id, &createdAt, &payload); err != nil {
			return nil, &StorageError{Path: s.path, Op: "scan", Err: err}
		}

		record := RawRecord{ID: id, SessionID: sessionID}
		if createdAt.Valid {
			if t, err := time.Parse(time.RFC3339, createdAt.String); err == nil {
				record.CreatedAt = t
			}
		}
		if payload.Valid {
			var decoded interface{}
			if err := json.Unmarshal([]byte(payload.String), &decoded); err == nil {
				record.Payload = decoded
			} else {
				record.Payload = payload.String
			}
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, &StorageError{Path: s.path, Op: "scan", Err: err}
	}

	return records, nil
}
