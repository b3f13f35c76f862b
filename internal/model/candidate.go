package model

import "time"

// SeedHandle is a handle added by an operator as a crawl starting point.
// Seeds always live at level 0.
type SeedHandle struct {
	ID        int64     `json:"id"`
	Handle    string    `json:"handle"`
	Status    Status    `json:"status"`
	AddedAt   time.Time `json:"added_at"`
	CheckedAt time.Time `json:"checked_at,omitzero"`
}

// DiscoveredHandle is a handle found in the follow list of another handle.
type DiscoveredHandle struct {
	ID           int64           `json:"id"`
	Handle       string          `json:"handle"`
	Status       Status          `json:"status"`
	Level        int             `json:"level"`
	ParentHandle string          `json:"parent_handle"`
	Metrics      *ProfileMetrics `json:"metrics,omitempty"`
	Rationale    *Rationale      `json:"rationale,omitempty"`
	DiscoveredAt time.Time       `json:"discovered_at"`
	CheckedAt    time.Time       `json:"checked_at,omitzero"`
}

// CandidateRef points at one frontier row handed to a worker.
type CandidateRef struct {
	// Kind is KindSeed or KindDiscovered.
	Kind Kind `json:"kind"`
	// ID is the row identifier within its kind.
	ID int64 `json:"id"`
	// Handle is the canonical handle.
	Handle string `json:"handle"`
	// Level is 0 for seeds.
	Level int `json:"level"`
	// ParentHandle is empty for seeds.
	ParentHandle string `json:"parent_handle,omitempty"`
}

// IsSeed reports whether the reference points at a seed row.
func (r CandidateRef) IsSeed() bool {
	return r.Kind == KindSeed
}

// AcceptedMetrics are the metrics stored with an accepted candidate.
type AcceptedMetrics struct {
	Followers         int64   `json:"followers"`
	Following         int64   `json:"following"`
	Posts             int64   `json:"posts"`
	AvgRecentViews    int64   `json:"avg_recent_views"`
	EngagementRatePct float64 `json:"engagement_rate_pct"`
}

// AcceptedCandidate is a handle that passed every acceptance gate.
// At most one record exists per handle.
type AcceptedCandidate struct {
	ID          int64           `json:"id"`
	Handle      string          `json:"handle"`
	DisplayName string          `json:"display_name,omitempty"`
	Contacts    ContactRecord   `json:"contacts"`
	Metrics     AcceptedMetrics `json:"metrics"`
	Level       int             `json:"level"`
	Bio         string          `json:"bio,omitempty"`
	Verified    bool            `json:"verified"`
	Business    bool            `json:"business"`
	Notes       string          `json:"notes,omitempty"`
	AcceptedAt  time.Time       `json:"accepted_at"`
}
