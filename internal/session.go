package internal

import "time"

// SessionInfo summarizes one research session in the store.
type SessionInfo struct {
	ID         string    `json:"id"`
	Title      string    `json:"title,omitempty"`
	Status     string    `json:"status,omitempty"` // pending, running, complete, failed
	CreatedAt  time.Time `json:"created_at,omitempty"`
	EventCount int       `json:"event_count"`
}
