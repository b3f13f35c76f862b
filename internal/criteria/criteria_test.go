package criteria

import (
	"strings"
	"testing"

	"github.com/nao1215/scoutgraph/internal/config"
	"github.com/nao1215/scoutgraph/internal/model"
)

func defaultThresholds() Thresholds {
	return FromRunConfig(config.DefaultRunConfig())
}

func items(views []int64, interactions int64) []model.ActivityItem {
	out := make([]model.ActivityItem, len(views))
	for i, v := range views {
		out[i] = model.ActivityItem{Views: v, Likes: interactions - interactions/10, Comments: interactions / 10}
	}
	return out
}

func TestEvaluateAlphaScenario(t *testing.T) {
	t.Parallel()

	e := NewEvaluator(defaultThresholds())
	m := model.ProfileMetrics{Followers: 600000}
	ok, r := e.Evaluate("alpha", m, items([]int64{120000, 110000, 105000, 130000, 95000}, 15000))

	if !ok || !r.Passed {
		t.Fatalf("alpha should be accepted, fail reasons: %v", r.FailReasons)
	}
	if r.Summary.AvgViews != 112000 {
		t.Errorf("AvgViews = %d, want 112000", r.Summary.AvgViews)
	}
	if r.Summary.EngagementRatePct != 2.5 {
		t.Errorf("EngagementRatePct = %v, want 2.5", r.Summary.EngagementRatePct)
	}
	if len(r.FailReasons) != 0 {
		t.Errorf("FailReasons = %v, want none", r.FailReasons)
	}
	if g := r.Gates[model.GateAvgViews]; g.Samples != 5 || len(g.Views) != 5 {
		t.Errorf("views gate = %+v", g)
	}
}

func TestFollowersBoundaryInclusive(t *testing.T) {
	t.Parallel()

	e := NewEvaluator(Thresholds{MinFollowers: 1000, MinAvgViews: 10, MinEngagementRate: 1})
	tests := []struct {
		followers int64
		want      bool
	}{
		{999, false},
		{1000, true},
		{1001, true},
	}
	for _, tt := range tests {
		// 20 interactions per item is 2% at 1000 followers, still >= 1% at 1001.
		ok, r := e.Evaluate("h", model.ProfileMetrics{Followers: tt.followers}, items([]int64{10, 10}, 20))
		if ok != tt.want {
			t.Errorf("followers=%d: accepted=%v, want %v (%v)", tt.followers, ok, tt.want, r.FailReasons)
		}
	}
}

func TestEvaluateNoActivity(t *testing.T) {
	t.Parallel()

	e := NewEvaluator(defaultThresholds())
	ok, r := e.Evaluate("quiet", model.ProfileMetrics{Followers: 900000}, nil)
	if ok {
		t.Fatal("profile without activity must fail")
	}
	views := r.Gates[model.GateAvgViews]
	if views.Passed || views.Note != NoActivityNote {
		t.Errorf("views gate = %+v", views)
	}
	eng := r.Gates[model.GateEngagementRate]
	if eng.Passed || eng.Note != NoActivityNote {
		t.Errorf("engagement gate = %+v", eng)
	}
	if !r.Gates[model.GateFollowers].Passed {
		t.Error("followers gate should still pass")
	}
	if len(r.FailReasons) != 2 {
		t.Errorf("FailReasons = %v", r.FailReasons)
	}
}

func TestEvaluateZeroFollowers(t *testing.T) {
	t.Parallel()

	e := NewEvaluator(Thresholds{})
	ok, r := e.Evaluate("empty", model.ProfileMetrics{}, items([]int64{5}, 5))
	if ok {
		t.Fatal("zero followers must fail the engagement gate")
	}
	if note := r.Gates[model.GateEngagementRate].Note; note != "no followers" {
		t.Errorf("engagement note = %q", note)
	}
}

func TestEvaluateFloorDivisionAndSampleCap(t *testing.T) {
	t.Parallel()

	e := NewEvaluator(Thresholds{MinAvgViews: 2})
	// Only the first five items count; (1+2+2+2+2)/5 = 1 with floor division.
	ok, r := e.Evaluate("h", model.ProfileMetrics{Followers: 1},
		items([]int64{1, 2, 2, 2, 2, 1000, 1000}, 1))
	if ok {
		t.Error("avg views 1.8 floors to 1 and must fail min 2")
	}
	if r.Summary.AvgViews != 1 {
		t.Errorf("AvgViews = %d, want 1", r.Summary.AvgViews)
	}
	if r.Gates[model.GateAvgViews].Samples != 5 {
		t.Errorf("Samples = %d, want 5", r.Gates[model.GateAvgViews].Samples)
	}
}

func TestEngagementFullPrecisionComparison(t *testing.T) {
	t.Parallel()

	// 1999/100000 = 1.999%, which rounds to 2.00 for display but must fail 2.0.
	e := NewEvaluator(Thresholds{MinEngagementRate: 2.0})
	ok, r := e.Evaluate("h", model.ProfileMetrics{Followers: 100000},
		[]model.ActivityItem{{Likes: 1999}})
	if ok {
		t.Error("1.999% must not pass a 2.0% gate")
	}
	if r.Summary.EngagementRatePct != 2.0 {
		t.Errorf("display rate = %v, want 2.0", r.Summary.EngagementRatePct)
	}
	if !strings.Contains(strings.Join(r.FailReasons, ";"), "Engagement") {
		t.Errorf("FailReasons = %v", r.FailReasons)
	}
}

func TestFailReasonText(t *testing.T) {
	t.Parallel()

	e := NewEvaluator(defaultThresholds())
	_, r := e.Evaluate("small", model.ProfileMetrics{Followers: 1200}, items([]int64{10}, 1))
	if len(r.FailReasons) == 0 || r.FailReasons[0] != "Followers 1200 < required 500000" {
		t.Errorf("FailReasons = %v", r.FailReasons)
	}
}
