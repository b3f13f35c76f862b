// Package criteria decides whether a profile qualifies as a candidate.
//
// Three independent gates must all pass: follower count, average views over
// the most recent activity items, and engagement rate. Every evaluation
// returns a Rationale that records the threshold, the observed value and the
// outcome of each gate.
package criteria

import (
	"fmt"
	"math"
	"time"

	"github.com/nao1215/scoutgraph/internal/config"
	"github.com/nao1215/scoutgraph/internal/model"
)

// MaxSamples is the largest number of recent activity items averaged.
const MaxSamples = 5

// NoActivityNote is the rationale note for a profile without activity items.
const NoActivityNote = "no activity samples"

// Thresholds are the acceptance minimums. Every comparison is inclusive.
type Thresholds struct {
	MinFollowers      int64
	MinAvgViews       int64
	MinEngagementRate float64
	// SampleSize caps the number of recent items considered. Values
	// outside 1..MaxSamples fall back to MaxSamples.
	SampleSize int
}

// FromRunConfig extracts thresholds from a runtime configuration snapshot.
func FromRunConfig(rc config.RunConfig) Thresholds {
	return Thresholds{
		MinFollowers:      rc.MinFollowers,
		MinAvgViews:       rc.MinAvgViews,
		MinEngagementRate: rc.MinEngagementRate,
		SampleSize:        rc.ActivitySampleSize,
	}
}

// Evaluator applies Thresholds to profile metrics.
type Evaluator struct {
	thresholds Thresholds
	now        func() time.Time
}

// NewEvaluator returns an Evaluator for t.
func NewEvaluator(t Thresholds) *Evaluator {
	return &Evaluator{thresholds: t, now: time.Now}
}

// Thresholds returns the thresholds in use.
func (e *Evaluator) Thresholds() Thresholds {
	return e.thresholds
}

// Evaluate scores handle. items are ordered newest first; only the first
// SampleSize of them are used.
func (e *Evaluator) Evaluate(handle string, m model.ProfileMetrics, items []model.ActivityItem) (bool, model.Rationale) {
	sample := e.sample(items)

	followers := e.followersGate(m.Followers)
	views, avgViews := e.viewsGate(sample)
	engagement, rate := e.engagementGate(m.Followers, sample)

	r := model.Rationale{
		Handle: handle,
		Gates: map[string]model.GateResult{
			model.GateFollowers:      followers,
			model.GateAvgViews:       views,
			model.GateEngagementRate: engagement,
		},
		Summary: model.Summary{
			Followers:         m.Followers,
			AvgViews:          avgViews,
			EngagementRatePct: round2(rate),
		},
		CheckedAt: e.now().UTC(),
	}

	if !followers.Passed {
		r.FailReasons = append(r.FailReasons,
			fmt.Sprintf("Followers %d < required %d", m.Followers, e.thresholds.MinFollowers))
	}
	if !views.Passed {
		if views.Note != "" {
			r.FailReasons = append(r.FailReasons, "Avg views: "+views.Note)
		} else {
			r.FailReasons = append(r.FailReasons,
				fmt.Sprintf("Avg views %d < required %d", avgViews, e.thresholds.MinAvgViews))
		}
	}
	if !engagement.Passed {
		if engagement.Note != "" {
			r.FailReasons = append(r.FailReasons, "Engagement: "+engagement.Note)
		} else {
			r.FailReasons = append(r.FailReasons,
				fmt.Sprintf("Engagement %.2f%% < required %.2f%%", rate, e.thresholds.MinEngagementRate))
		}
	}

	r.Passed = followers.Passed && views.Passed && engagement.Passed
	return r.Passed, r
}

func (e *Evaluator) sample(items []model.ActivityItem) []model.ActivityItem {
	n := e.thresholds.SampleSize
	if n <= 0 || n > MaxSamples {
		n = MaxSamples
	}
	if len(items) > n {
		return items[:n]
	}
	return items
}

func (e *Evaluator) followersGate(followers int64) model.GateResult {
	return model.GateResult{
		Required: float64(e.thresholds.MinFollowers),
		Observed: float64(followers),
		Passed:   followers >= e.thresholds.MinFollowers,
	}
}

// viewsGate averages views with integer floor division over the items present.
func (e *Evaluator) viewsGate(sample []model.ActivityItem) (model.GateResult, int64) {
	g := model.GateResult{
		Required: float64(e.thresholds.MinAvgViews),
		Samples:  len(sample),
	}
	if len(sample) == 0 {
		g.Note = NoActivityNote
		return g, 0
	}

	var total int64
	g.Views = make([]int64, 0, len(sample))
	for _, it := range sample {
		total += it.Views
		g.Views = append(g.Views, it.Views)
	}
	avg := total / int64(len(sample))
	g.Observed = float64(avg)
	g.Passed = avg >= e.thresholds.MinAvgViews
	return g, avg
}

// engagementGate computes mean(likes+comments) / followers * 100 at full precision.
func (e *Evaluator) engagementGate(followers int64, sample []model.ActivityItem) (model.GateResult, float64) {
	g := model.GateResult{
		Required: e.thresholds.MinEngagementRate,
		Samples:  len(sample),
	}
	switch {
	case followers <= 0:
		g.Note = "no followers"
		return g, 0
	case len(sample) == 0:
		g.Note = NoActivityNote
		return g, 0
	}

	var interactions int64
	for _, it := range sample {
		interactions += it.Likes + it.Comments
	}
	mean := float64(interactions) / float64(len(sample))
	rate := mean / float64(followers) * 100
	g.Observed = rate
	g.Passed = rate >= e.thresholds.MinEngagementRate
	return g, rate
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
