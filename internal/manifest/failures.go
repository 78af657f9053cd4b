package manifest

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/imgrescue/internal/model"
)

// FailureColumns is the column order of the failure ledger.
var FailureColumns = []string{"url", "status", "error_kind", "error"}

// WriteFailures writes the failure ledger. Failures without an HTTP
// response carry status 0.
func WriteFailures(w io.Writer, entries []model.FailureEntry) error {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.URL, strconv.Itoa(e.StatusCode), string(e.Kind), e.Message})
	}
	return writeTable(w, FailureColumns, rows)
}

// ReadFailures parses a failure ledger.
func ReadFailures(r io.Reader) ([]model.FailureEntry, error) {
	t, err := readTable(r, "url")
	if err != nil {
		return nil, err
	}

	entries := make([]model.FailureEntry, 0, len(t.rows))
	for i, row := range t.rows {
		url := t.get(row, "url")
		if url == "" {
			continue
		}

		status := 0
		if raw := t.get(row, "status"); raw != "" {
			status, err = strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d: status %q", ErrInvalidValue, i+2, raw)
			}
		}

		entries = append(entries, model.FailureEntry{
			URL:        url,
			StatusCode: status,
			Kind:       model.ErrorKind(t.get(row, "error_kind")),
			Message:    t.get(row, "error"),
		})
	}
	return entries, nil
}

// ReadFailuresFile reads the failure ledger at path.
func ReadFailuresFile(path string) ([]model.FailureEntry, error) {
	return readFile(path, ReadFailures)
}
