package model

import "time"

// Gate names used as keys in Rationale.Gates.
const (
	GateFollowers      = "followers"
	GateAvgViews       = "avg_views"
	GateEngagementRate = "engagement_rate"
)

// GateResult records how a single acceptance gate was decided.
type GateResult struct {
	Required float64 `json:"required"`
	Observed float64 `json:"observed"`
	Passed   bool    `json:"passed"`
	// Note explains a hard failure that was not a numeric comparison.
	Note string `json:"note,omitempty"`
	// Samples is the number of activity items considered.
	Samples int `json:"samples,omitempty"`
	// Views lists the individual view counts that were averaged.
	Views []int64 `json:"views,omitempty"`
}

// Summary is the rounded, human-facing view of an evaluation.
type Summary struct {
	Followers         int64   `json:"followers"`
	AvgViews          int64   `json:"avg_views"`
	EngagementRatePct float64 `json:"engagement_rate_pct"`
}

// Rationale is the structured explanation of a criteria evaluation.
type Rationale struct {
	Handle      string                `json:"handle"`
	Passed      bool                  `json:"passed"`
	Gates       map[string]GateResult `json:"gates"`
	FailReasons []string              `json:"fail_reasons,omitempty"`
	Summary     Summary               `json:"summary"`
	// Error is set when the handle could not be evaluated at all.
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// ErrorRationale records a handle that failed before evaluation.
func ErrorRationale(handle string, err error, at time.Time) *Rationale {
	return &Rationale{
		Handle:      handle,
		FailReasons: []string{err.Error()},
		Error:       err.Error(),
		CheckedAt:   at,
	}
}
