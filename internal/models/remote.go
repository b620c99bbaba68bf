package models

import "time"

// Remote is a vizedit-server the CLI can use instead of the local store.
type Remote struct {
	Name      string       `json:"name"`
	URL       string       `json:"url"`
	CreatedAt time.Time    `json:"created_at"`
	LastSeen  *RemoteStats `json:"last_seen,omitempty"`
}

// RemoteStats is what a remote held the last time it was asked.
type RemoteStats struct {
	Queries        int       `json:"queries"`
	Visualizations int       `json:"visualizations"`
	CheckedAt      time.Time `json:"checked_at"`
}
