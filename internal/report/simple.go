package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/nao1215/scoutgraph/internal/admin"
	"github.com/nao1215/scoutgraph/internal/config"
	"github.com/nao1215/scoutgraph/internal/model"
)

// SimpleWriter outputs human-readable text for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether zero counters are listed.
	showEmpty bool

	// verbose adds the bio column to accepted listings.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to list zero counters.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// statusOrder is the display order of discovered statuses.
var statusOrder = []model.Status{
	model.StatusPending,
	model.StatusProcessing,
	model.StatusPass,
	model.StatusFail,
}

// WriteStats outputs frontier counters and the runtime settings.
func (w *SimpleWriter) WriteStats(ov admin.Overview) (int, error) {
	var sb strings.Builder
	s := ov.Stats

	writeSection(&sb, "FRONTIER")
	fmt.Fprintf(&sb, "  Seeds:       %d (%d pending)\n", s.SeedsTotal, s.SeedsPending)
	fmt.Fprintf(&sb, "  Discovered:  %d\n", s.DiscoveredTotal)
	for _, st := range statusOrder {
		n := s.DiscoveredByState[st]
		if n == 0 && !w.showEmpty {
			continue
		}
		fmt.Fprintf(&sb, "    %-11s %d\n", st.String()+":", n)
	}
	fmt.Fprintf(&sb, "  Processing:  %d\n", s.Processing)
	fmt.Fprintf(&sb, "  Accepted:    %d\n", s.AcceptedTotal)
	fmt.Fprintf(&sb, "  Identities:  %d active / %d total\n", s.IdentitiesActive, s.IdentitiesTotal)

	if len(s.DiscoveredByLevel) > 0 {
		sb.WriteString("\n  By level:\n")
		for _, lvl := range sortedLevels(s.DiscoveredByLevel) {
			fmt.Fprintf(&sb, "    level %d: %d\n", lvl, s.DiscoveredByLevel[lvl])
		}
	}
	sb.WriteString("\n")

	writeSection(&sb, "SETTINGS")
	values := ov.Config.Values()
	for _, key := range config.RunKeys() {
		fmt.Fprintf(&sb, "  %-22s %s\n", key, values[key])
	}
	sb.WriteString("\n")

	return w.output.Write([]byte(sb.String()))
}

// WriteAccepted outputs one line per accepted candidate.
func (w *SimpleWriter) WriteAccepted(rows []admin.ExportRow) (int, error) {
	var sb strings.Builder
	if len(rows) == 0 {
		sb.WriteString("No accepted candidates yet.\n")
		return w.output.Write([]byte(sb.String()))
	}

	for _, r := range rows {
		fmt.Fprintf(&sb, "@%-24s followers=%-10d avg_views=%-10d engagement=%.2f%% level=%d\n",
			r.Handle, r.Followers, r.AvgRecentViews, r.EngagementRatePct, r.Level)
		contacts := contactSummary(r)
		if contacts != "" {
			fmt.Fprintf(&sb, "  contacts: %s\n", contacts)
		}
		if w.verbose && r.Bio != "" {
			fmt.Fprintf(&sb, "  bio: %s\n", truncateString(strings.ReplaceAll(r.Bio, "\n", " "), 100))
		}
	}
	fmt.Fprintf(&sb, "\n%d accepted\n", len(rows))

	return w.output.Write([]byte(sb.String()))
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 50))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 50))
	sb.WriteString("\n")
}

func sortedLevels(m map[int]int64) []int {
	levels := make([]int, 0, len(m))
	for lvl := range m {
		levels = append(levels, lvl)
	}
	sort.Ints(levels)
	return levels
}

// contactSummary joins the non-empty contact channels of r.
func contactSummary(r admin.ExportRow) string {
	parts := make([]string, 0, 4)
	if r.MessagingHandle != "" {
		parts = append(parts, "tg:"+r.MessagingHandle)
	}
	if r.Email != "" {
		parts = append(parts, r.Email)
	}
	if r.Phone != "" {
		parts = append(parts, r.Phone)
	}
	if r.Website != "" {
		parts = append(parts, r.Website)
	}
	return strings.Join(parts, ", ")
}
