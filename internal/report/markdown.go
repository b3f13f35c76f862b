package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/scoutgraph/internal/admin"
	"github.com/nao1215/scoutgraph/internal/config"
	"github.com/nao1215/scoutgraph/internal/model"
)

// MarkdownWriter outputs reports in GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter

	// now stamps the footer.
	now func() time.Time
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithMarkdownClock overrides the footer timestamp source.
func WithMarkdownClock(now func() time.Time) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		w.now = now
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{
		baseWriter: newBaseWriter(output),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// titleCase capitalizes each word of s. Casers are stateful, so each call
// builds its own.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

// WriteAccepted outputs the accepted candidates as a table with bios in
// collapsible sections.
func (w *MarkdownWriter) WriteAccepted(rows []admin.ExportRow) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("Accepted Candidates")
	md.PlainText("")

	if len(rows) == 0 {
		md.Note("No candidate has passed the acceptance criteria yet.")
		md.PlainText("")
		w.writeFooter(md)
		return len(md.String()), md.Build()
	}

	header := make([]string, 0, len(admin.ExportColumns)-1)
	for _, col := range admin.ExportColumns {
		if col == "bio" {
			continue
		}
		header = append(header, titleCase(col))
	}

	table := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells := make([]string, 0, len(header))
		for i, v := range r.Values() {
			if admin.ExportColumns[i] == "bio" {
				continue
			}
			if v == "" {
				v = "-"
			}
			cells = append(cells, escapeCell(truncateString(v, 40)))
		}
		table = append(table, cells)
	}
	md.Table(markdown.TableSet{Header: header, Rows: table})
	md.PlainText("")

	for _, r := range rows {
		if r.Bio != "" {
			md.Details("@"+r.Handle, r.Bio)
		}
	}
	md.PlainText("")

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// WriteStats outputs the frontier counters, a status distribution chart
// and the runtime settings.
func (w *MarkdownWriter) WriteStats(ov admin.Overview) (int, error) {
	md := markdown.NewMarkdown(w.output)
	s := ov.Stats

	md.H1("Crawl Statistics")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Seeds", strconv.FormatInt(s.SeedsTotal, 10)},
			{"Seeds Pending", strconv.FormatInt(s.SeedsPending, 10)},
			{"Discovered", strconv.FormatInt(s.DiscoveredTotal, 10)},
			{"Processing", strconv.FormatInt(s.Processing, 10)},
			{"Accepted", strconv.FormatInt(s.AcceptedTotal, 10)},
			{"Active Identities", strconv.FormatInt(s.IdentitiesActive, 10) + " / " + strconv.FormatInt(s.IdentitiesTotal, 10)},
		},
	})
	md.PlainText("")

	if s.DiscoveredTotal > 0 {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("Discovered Status Distribution"),
			piechart.WithShowData(true),
		)
		for _, st := range statusOrder {
			if n := s.DiscoveredByState[st]; n > 0 {
				chart.LabelAndIntValue(titleCase(st.String()), uint64(n))
			}
		}
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}

	if len(s.DiscoveredByLevel) > 0 {
		md.H2("Discovered By Level")
		md.PlainText("")
		levels := sortedLevels(s.DiscoveredByLevel)
		rows := make([][]string, 0, len(levels))
		for _, lvl := range levels {
			rows = append(rows, []string{strconv.Itoa(lvl), strconv.FormatInt(s.DiscoveredByLevel[lvl], 10)})
		}
		md.Table(markdown.TableSet{Header: []string{"Level", "Handles"}, Rows: rows})
		md.PlainText("")
	}

	md.H2("Settings")
	md.PlainText("")
	values := ov.Config.Values()
	settings := make([][]string, 0, len(values))
	for _, key := range config.RunKeys() {
		settings = append(settings, []string{"`" + key + "`", values[key]})
	}
	md.Table(markdown.TableSet{Header: []string{"Key", "Value"}, Rows: settings})
	md.PlainText("")

	w.writeAlert(md, ov)
	w.writeFooter(md)
	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, ov admin.Overview) {
	switch {
	case ov.Stats.IdentitiesActive == 0:
		md.Cautionf("No active identity is available. Add or reactivate one before running the crawler.")
	case ov.Config.Paused:
		md.Warningf("Processing is paused. Run `scoutgraph resume` to continue.")
	case ov.Stats.Processing > 0:
		md.Importantf("%d handle(s) are marked processing. If no crawler is running, requeue them.", ov.Stats.Processing)
	case ov.Stats.SeedsPending == 0 && ov.Stats.DiscoveredByState[model.StatusPending] == 0:
		md.Tip("The frontier is empty. Add seeds to continue crawling.")
	default:
		md.Note("The crawler has pending work.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Generated by scoutgraph at %s*", w.now().UTC().Format(admin.ExportDateLayout+" UTC"))
}

var cellEscaper = strings.NewReplacer("|", "\\|", "\n", " ", "\r", "")

func escapeCell(s string) string {
	return cellEscaper.Replace(s)
}
