package report

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// TextWriter writes a plain text report for terminal display.
type TextWriter struct {
	baseWriter

	// maxFailures caps the failures listed; 0 lists none.
	maxFailures int
}

// TextWriterOption configures a TextWriter.
type TextWriterOption func(*TextWriter)

// WithFailureList lists up to n ledger entries after the totals.
func WithFailureList(n int) TextWriterOption {
	return func(w *TextWriter) {
		w.maxFailures = n
	}
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer, opts ...TextWriterOption) *TextWriter {
	w := &TextWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report.
func (w *TextWriter) Write(report *Report) (int, error) {
	var sb strings.Builder
	s := report.Summary

	writeBanner(&sb, "IMAGE RECOVERY SUMMARY")
	fmt.Fprintf(&sb, "Started:   %s\n", s.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "Duration:  %s\n", s.Duration().Round(time.Millisecond))
	fmt.Fprintf(&sb, "Status:    %s\n\n", status(s))

	writeSection(&sb, "TOTALS")
	fmt.Fprintf(&sb, "  Occurrences:     %d\n", s.Occurrences)
	fmt.Fprintf(&sb, "  Unique URLs:     %d\n", s.Targets)
	fmt.Fprintf(&sb, "  Stored:          %d\n", s.Stored)
	fmt.Fprintf(&sb, "  Failed:          %d\n", s.Failed)
	fmt.Fprintf(&sb, "  Incomplete:      %d\n", s.Incomplete)
	fmt.Fprintf(&sb, "  Files written:   %d\n", s.FilesWritten)
	fmt.Fprintf(&sb, "  Files reused:    %d\n", s.FilesReused)
	fmt.Fprintf(&sb, "  Rewrite entries: %d\n\n", s.RewriteEntries)

	if sources := s.SortedSources(); len(sources) > 0 {
		writeSection(&sb, "STORED BY SOURCE")
		for _, src := range sources {
			fmt.Fprintf(&sb, "  %-16s %d\n", label(string(src))+":", s.StoredBySource[src])
		}
		sb.WriteString("\n")
	}

	if kinds := s.SortedFailureKinds(); len(kinds) > 0 {
		writeSection(&sb, "FAILURES BY KIND")
		for _, k := range kinds {
			fmt.Fprintf(&sb, "  %-16s %d\n", string(k)+":", s.FailuresByKind[k])
		}
		sb.WriteString("\n")
	}

	if w.maxFailures > 0 && len(report.Failures) > 0 {
		writeSection(&sb, "FAILED URLS")
		for i, f := range report.Failures {
			if i == w.maxFailures {
				fmt.Fprintf(&sb, "  ... and %d more\n", len(report.Failures)-i)
				break
			}
			fmt.Fprintf(&sb, "  [%s] %s\n", f.Kind, f.URL)
		}
		sb.WriteString("\n")
	}

	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")

	return io.WriteString(w.output, sb.String())
}

func writeBanner(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
}
