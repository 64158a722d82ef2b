package storage

import (
	"encoding/json"
	"time"
)

// HistoryEntry is one stored entity lookup.
type HistoryEntry struct {
	ID         int64           `json:"id"`
	LookedUpAt time.Time       `json:"lookedUpAt"`
	Value      string          `json:"value"`
	Type       string          `json:"type"`
	Hits       int             `json:"hits"`
	Summary    []string        `json:"summary,omitempty"`
	Details    json.RawMessage `json:"details,omitempty"`
}

// ListOptions controls selection when listing history.
type ListOptions struct {
	Value    string
	Type     string
	OnlyHits bool
	Since    time.Time
	Limit    int
}

// TypeStats aggregates the history of one entity type.
type TypeStats struct {
	Type     string `json:"type"`
	Lookups  int    `json:"lookups"`
	Entities int    `json:"entities"`
	Hits     int    `json:"hits"`
}
