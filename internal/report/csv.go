package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/nao1215/scoutgraph/internal/admin"
	"github.com/nao1215/scoutgraph/internal/config"
)

// CSVWriter outputs spreadsheet-friendly exports.
type CSVWriter struct {
	baseWriter
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{baseWriter: newBaseWriter(output)}
}

// WriteAccepted writes a header row followed by one row per candidate,
// in admin.ExportColumns order.
func (w *CSVWriter) WriteAccepted(rows []admin.ExportRow) (int, error) {
	records := make([][]string, 0, len(rows)+1)
	records = append(records, admin.ExportColumns)
	for _, r := range rows {
		records = append(records, r.Values())
	}
	return w.writeAll(records)
}

// WriteStats writes metric,value pairs.
func (w *CSVWriter) WriteStats(ov admin.Overview) (int, error) {
	s := ov.Stats
	records := [][]string{
		{"metric", "value"},
		{"seeds_total", strconv.FormatInt(s.SeedsTotal, 10)},
		{"seeds_pending", strconv.FormatInt(s.SeedsPending, 10)},
		{"discovered_total", strconv.FormatInt(s.DiscoveredTotal, 10)},
	}
	for _, st := range statusOrder {
		records = append(records, []string{"discovered_" + st.String(), strconv.FormatInt(s.DiscoveredByState[st], 10)})
	}
	for _, lvl := range sortedLevels(s.DiscoveredByLevel) {
		records = append(records, []string{"discovered_level_" + strconv.Itoa(lvl), strconv.FormatInt(s.DiscoveredByLevel[lvl], 10)})
	}
	records = append(records,
		[]string{"processing", strconv.FormatInt(s.Processing, 10)},
		[]string{"accepted_total", strconv.FormatInt(s.AcceptedTotal, 10)},
		[]string{"identities_active", strconv.FormatInt(s.IdentitiesActive, 10)},
		[]string{"identities_total", strconv.FormatInt(s.IdentitiesTotal, 10)},
	)
	values := ov.Config.Values()
	for _, key := range config.RunKeys() {
		records = append(records, []string{key, values[key]})
	}
	return w.writeAll(records)
}

func (w *CSVWriter) writeAll(records [][]string) (int, error) {
	cw := &countingWriter{w: w.output}
	enc := csv.NewWriter(cw)
	if err := enc.WriteAll(records); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}
