package entities

import (
	"time"
)

// SearchEvent represents one completed aggregation for analytics.
type SearchEvent struct {
	ID            string    `json:"id" db:"id"`
	Query         string    `json:"query" db:"query"`
	Categories    []string  `json:"categories" db:"categories"`
	ResultCount   int       `json:"result_count" db:"result_count"`
	FailedFetches int       `json:"failed_fetches" db:"failed_fetches"`
	LatencyMs     int       `json:"latency_ms" db:"latency_ms"`
	UserID        string    `json:"user_id,omitempty" db:"user_id"`
	SessionID     string    `json:"session_id,omitempty" db:"session_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
