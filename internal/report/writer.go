package report

import (
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/imgrescue/internal/model"
)

// Report is everything a writer renders for one run.
type Report struct {
	Summary *model.RunSummary

	// Failures is the failure ledger. Writers may show only its head.
	Failures []model.FailureEntry
}

// Writer renders a run report.
type Writer interface {
	Write(report *Report) (int, error)
}

// MultiWriter writes a report to several writers in turn.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write stops at the first error and returns the bytes written so far.
func (m *MultiWriter) Write(report *Report) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// acronyms keep their casing in labels.
var acronyms = map[string]string{
	"tls": "TLS",
	"url": "URL",
}

// label turns an identifier such as "tls_fallback" into "TLS Fallback".
func label(identifier string) string {
	caser := cases.Title(language.English)
	words := strings.Split(identifier, "_")
	for i, w := range words {
		if a, ok := acronyms[strings.ToLower(w)]; ok {
			words[i] = a
			continue
		}
		words[i] = caser.String(w)
	}
	return strings.Join(words, " ")
}

// status describes how the run ended.
func status(s *model.RunSummary) string {
	switch {
	case s.Canceled:
		return "Canceled (partial results)"
	case s.Failed > 0 || s.Incomplete > 0:
		return "Complete with failures"
	default:
		return "Complete"
	}
}

// truncateString shortens s to maxLen bytes with an ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
