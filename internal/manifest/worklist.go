package manifest

import (
	"io"

	"github.com/nao1215/imgrescue/internal/model"
)

// WorklistColumns is the column order of the unique worklist file.
var WorklistColumns = []string{ColChosenURL, "kind", "example_post_index", "example_post_title"}

// WriteWorklist writes one row per target.
func WriteWorklist(w io.Writer, targets []model.Target) error {
	rows := make([][]string, 0, len(targets))
	for _, t := range targets {
		rows = append(rows, []string{t.URL, string(t.Kind), t.ExampleDocumentID, t.ExampleDocumentTitle})
	}
	return writeTable(w, WorklistColumns, rows)
}

// ReadWorklist parses a worklist file. Occurrence links are not part of
// the file format and are left empty.
func ReadWorklist(r io.Reader) ([]model.Target, error) {
	t, err := readTable(r, ColChosenURL)
	if err != nil {
		return nil, err
	}

	targets := make([]model.Target, 0, len(t.rows))
	for _, row := range t.rows {
		url := t.get(row, ColChosenURL)
		if url == "" {
			continue
		}
		targets = append(targets, model.Target{
			URL:                  url,
			Kind:                 model.ParseKind(t.get(row, "kind")),
			ExampleDocumentID:    t.get(row, "example_post_index"),
			ExampleDocumentTitle: t.get(row, "example_post_title"),
		})
	}
	return targets, nil
}
