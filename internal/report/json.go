package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/nao1215/imgrescue/internal/model"
)

// JSONWriter outputs reports as a single JSON document.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithPrettyPrint enables two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = ""
		w.indentString = "  "
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JSONReport is the serialized form of a Report.
type JSONReport struct {
	StartedAt       time.Time               `json:"started_at"`
	FinishedAt      time.Time               `json:"finished_at"`
	DurationSeconds float64                 `json:"duration_seconds"`
	Canceled        bool                    `json:"canceled"`
	Occurrences     int                     `json:"occurrences"`
	Targets         int                     `json:"targets"`
	Stored          int                     `json:"stored"`
	Failed          int                     `json:"failed"`
	Incomplete      int                     `json:"incomplete"`
	FilesWritten    int                     `json:"files_written"`
	FilesReused     int                     `json:"files_reused"`
	RewriteEntries  int                     `json:"rewrite_entries"`
	StoredBySource  map[model.Source]int    `json:"stored_by_source"`
	FailuresByKind  map[model.ErrorKind]int `json:"failures_by_kind"`
	Failures        []JSONFailure           `json:"failures,omitempty"`
}

// JSONFailure is one serialized ledger entry.
type JSONFailure struct {
	URL        string          `json:"url"`
	StatusCode int             `json:"status,omitempty"`
	Kind       model.ErrorKind `json:"error_kind"`
	Message    string          `json:"error,omitempty"`
}

// NewJSONReport converts report into its serialized form.
func NewJSONReport(report *Report) *JSONReport {
	s := report.Summary
	out := &JSONReport{
		StartedAt:       s.StartedAt,
		FinishedAt:      s.FinishedAt,
		DurationSeconds: s.Duration().Seconds(),
		Canceled:        s.Canceled,
		Occurrences:     s.Occurrences,
		Targets:         s.Targets,
		Stored:          s.Stored,
		Failed:          s.Failed,
		Incomplete:      s.Incomplete,
		FilesWritten:    s.FilesWritten,
		FilesReused:     s.FilesReused,
		RewriteEntries:  s.RewriteEntries,
		StoredBySource:  s.StoredBySource,
		FailuresByKind:  s.FailuresByKind,
	}
	for _, f := range report.Failures {
		out.Failures = append(out.Failures, JSONFailure{
			URL:        f.URL,
			StatusCode: f.StatusCode,
			Kind:       f.Kind,
			Message:    f.Message,
		})
	}
	return out
}

// Write outputs the report.
func (w *JSONWriter) Write(report *Report) (int, error) {
	var data []byte
	var err error

	v := NewJSONReport(report)
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
