// Package report renders the summary of a pipeline run.
//
// Three writers share the Writer interface:
//   - TextWriter: plain text for the terminal
//   - MarkdownWriter: GitHub flavored Markdown for a summary file
//   - JSONWriter: machine-readable output
package report
