package model

import "time"

// Identity is a scraping credential loaded into the credential pool.
type Identity struct {
	ID     int64  `json:"id"`
	Handle string `json:"handle"`
	// CredentialRef is the sealed credential. It is never logged.
	CredentialRef string         `json:"-"`
	Status        IdentityStatus `json:"status"`
	RequestsMade  int64          `json:"requests_made"`
	LastUsedAt    time.Time      `json:"last_used_at,omitzero"`
	AddedAt       time.Time      `json:"added_at"`
	// ProxyURL optionally routes this identity through its own proxy.
	ProxyURL string `json:"proxy_url,omitempty"`
}

// ActivityEntry is one line of the activity log.
type ActivityEntry struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`
	Handle    string    `json:"handle,omitempty"`
	Details   string    `json:"details,omitempty"`
	RunID     string    `json:"run_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Activity log actions.
const (
	ActionProcessingStarted = "processing_started"
	ActionBatchComplete     = "batch_complete"
	ActionAccountPassed     = "account_passed"
	ActionAccountFailed     = "account_failed"
	ActionProcessingError   = "processing_error"
	ActionProcessingStopped = "processing_stopped"
	ActionSeedAdded         = "seed_added"
	ActionIdentityAdded     = "identity_added"
	ActionConfigChanged     = "config_changed"
	ActionRequeued          = "requeued"
)

// Stats is a snapshot of frontier and result counters.
type Stats struct {
	SeedsTotal        int64            `json:"seeds_total"`
	SeedsPending      int64            `json:"seeds_pending"`
	DiscoveredTotal   int64            `json:"discovered_total"`
	DiscoveredByState map[Status]int64 `json:"discovered_by_status"`
	DiscoveredByLevel map[int]int64    `json:"discovered_by_level"`
	Processing        int64            `json:"processing"`
	AcceptedTotal     int64            `json:"accepted_total"`
	IdentitiesActive  int64            `json:"identities_active"`
	IdentitiesTotal   int64            `json:"identities_total"`
}
