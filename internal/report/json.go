package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/scoutgraph/internal/admin"
	"github.com/nao1215/scoutgraph/internal/model"
)

// JSONWriter outputs reports in JSON format for tool integration.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed output.
	indent bool

	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteAccepted outputs the rows as a JSON array. An empty export is
// written as [] rather than null.
func (w *JSONWriter) WriteAccepted(rows []admin.ExportRow) (int, error) {
	if rows == nil {
		rows = []admin.ExportRow{}
	}
	return w.writeJSON(rows)
}

// StatsDocument is the JSON shape of a stats report.
type StatsDocument struct {
	Stats  model.Stats       `json:"stats"`
	Config map[string]string `json:"config"`
}

// WriteStats outputs the counters with the runtime settings keyed by
// their stored names.
func (w *JSONWriter) WriteStats(ov admin.Overview) (int, error) {
	return w.writeJSON(StatsDocument{
		Stats:  ov.Stats,
		Config: ov.Config.Values(),
	})
}

// writeJSON marshals v and writes it with a trailing newline.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}
