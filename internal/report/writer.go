package report

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/scoutgraph/internal/admin"
)

// Output formats accepted by New.
const (
	FormatText     = "text"
	FormatCSV      = "csv"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// ErrUnknownFormat is returned by New for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown report format")

// Writer renders reports to an output destination.
type Writer interface {
	// WriteAccepted outputs accepted candidates in export order.
	// It returns the number of bytes written.
	WriteAccepted(rows []admin.ExportRow) (int, error)

	// WriteStats outputs the frontier counters and runtime settings.
	WriteStats(ov admin.Overview) (int, error)
}

// New returns the writer for format. "md" is accepted for markdown and
// "txt" for text.
func New(format string, output io.Writer) (Writer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatText, "txt", "":
		return NewSimpleWriter(output), nil
	case FormatCSV:
		return NewCSVWriter(output), nil
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint()), nil
	case FormatMarkdown, "md":
		return NewMarkdownWriter(output), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// MultiWriter writes to multiple Writers, for example the terminal and a
// file at the same time.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// WriteAccepted writes to every Writer and stops on the first error.
func (m *MultiWriter) WriteAccepted(rows []admin.ExportRow) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteAccepted(rows)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteStats writes to every Writer and stops on the first error.
func (m *MultiWriter) WriteStats(ov admin.Overview) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteStats(ov)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// countingWriter counts bytes written through it.
type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}

// truncateString shortens s to maxLen runes with an ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
