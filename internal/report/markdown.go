package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/imgrescue/internal/model"
)

// maxMarkdownFailures bounds the failure table of the Markdown report.
const maxMarkdownFailures = 50

// MarkdownWriter outputs reports in GitHub flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report.
func (w *MarkdownWriter) Write(report *Report) (int, error) {
	md := markdown.NewMarkdown(w.output)
	s := report.Summary

	w.writeHeader(md, s)
	w.writeTotals(md, s)
	w.writeSources(md, s)
	w.writeFailures(md, s, report.Failures)

	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Generated by [imgrescue](https://github.com/nao1215/imgrescue)*")

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *model.RunSummary) {
	md.H1("Image Recovery Report")
	md.PlainText("")

	rows := [][]string{
		{"Started", s.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"Duration", s.Duration().String()},
		{"Status", status(s)},
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	switch {
	case s.Canceled:
		md.Cautionf("The run was stopped early. %d URL(s) were left unfinished and are listed in the failure ledger.", s.Incomplete)
	case s.Failed > 0:
		md.Warningf("%d URL(s) could not be recovered from any source.", s.Failed)
	default:
		md.Tip("Every URL in the worklist was recovered.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeTotals(md *markdown.Markdown, s *model.RunSummary) {
	md.H2("Totals")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Occurrences", strconv.Itoa(s.Occurrences)},
			{"Unique URLs", strconv.Itoa(s.Targets)},
			{"Stored", strconv.Itoa(s.Stored)},
			{"Failed", strconv.Itoa(s.Failed)},
			{"Incomplete", strconv.Itoa(s.Incomplete)},
			{"Files written", strconv.Itoa(s.FilesWritten)},
			{"Files reused", strconv.Itoa(s.FilesReused)},
			{"Rewrite entries", strconv.Itoa(s.RewriteEntries)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSources(md *markdown.Markdown, s *model.RunSummary) {
	sources := s.SortedSources()
	if len(sources) == 0 {
		return
	}

	md.H2("Stored by Source")
	md.PlainText("")

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Recovered Images by Source"),
		piechart.WithShowData(true),
	)
	rows := make([][]string, 0, len(sources))
	for _, src := range sources {
		n := s.StoredBySource[src]
		rows = append(rows, []string{label(string(src)), strconv.Itoa(n)})
		chart.LabelAndIntValue(label(string(src)), uint64(n)) //nolint:gosec // Counts are never negative.
	}

	md.Table(markdown.TableSet{
		Header: []string{"Source", "Stored"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(sources) > 1 {
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, s *model.RunSummary, failures []model.FailureEntry) {
	kinds := s.SortedFailureKinds()
	if len(kinds) == 0 && len(failures) == 0 {
		return
	}

	md.H2("Failures")
	md.PlainText("")

	if len(kinds) > 0 {
		rows := make([][]string, 0, len(kinds))
		for _, k := range kinds {
			rows = append(rows, []string{string(k), strconv.Itoa(s.FailuresByKind[k])})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Error Kind", "Count"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	if len(failures) == 0 {
		return
	}

	shown := failures
	if len(shown) > maxMarkdownFailures {
		shown = shown[:maxMarkdownFailures]
	}
	rows := make([][]string, 0, len(shown))
	for _, f := range shown {
		code := "-"
		if f.StatusCode != 0 {
			code = strconv.Itoa(f.StatusCode)
		}
		rows = append(rows, []string{
			"`" + truncateString(f.URL, 80) + "`",
			string(f.Kind),
			code,
			truncateString(f.Message, 60),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Kind", "Status", "Error"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(failures) > len(shown) {
		md.Note(fmt.Sprintf("%d more failure(s) are listed in the failure ledger.", len(failures)-len(shown)))
		md.PlainText("")
	}
}
