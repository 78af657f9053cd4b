package manifest

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/imgrescue/internal/model"
)

// Occurrence columns.
const (
	ColPostIndex       = "post_index"
	ColPostURL         = "post_unique_url"
	ColPostTitle       = "post_title"
	ColOccurrenceIndex = "occurrence_index"
	ColThumbURL        = "thumb_url"
	ColFullURL         = "full_url"
	ColInferredFullURL = "inferred_full_url"
	ColChosenURL       = "chosen_download_url"
	ColChosenKind      = "chosen_kind"
	ColAlt             = "alt"
	ColTitle           = "title"
	ColClasses         = "classes"
	ColStyle           = "style"
)

// OccurrenceColumns is the column order of an annotated occurrences file.
var OccurrenceColumns = []string{
	ColPostIndex,
	ColPostURL,
	ColPostTitle,
	ColOccurrenceIndex,
	ColThumbURL,
	ColFullURL,
	ColInferredFullURL,
	ColChosenURL,
	ColChosenKind,
	ColAlt,
	ColTitle,
	ColClasses,
	ColStyle,
}

// ReadOccurrences parses an occurrences CSV. Only thumb_url and full_url
// are required; chosen_* columns, when present, are ignored because the
// selection is always recomputed.
func ReadOccurrences(r io.Reader) ([]model.Occurrence, error) {
	t, err := readTable(r, ColThumbURL, ColFullURL)
	if err != nil {
		return nil, err
	}

	occurrences := make([]model.Occurrence, 0, len(t.rows))
	for i, row := range t.rows {
		index := 0
		if raw := t.get(row, ColOccurrenceIndex); raw != "" {
			index, err = strconv.Atoi(raw)
			if err != nil {
				// Row numbers are 1-based and the header is row 1.
				return nil, fmt.Errorf("%w: row %d: %s %q", ErrInvalidValue, i+2, ColOccurrenceIndex, raw)
			}
		}

		occurrences = append(occurrences, model.Occurrence{
			DocumentID:      t.get(row, ColPostIndex),
			DocumentURL:     t.get(row, ColPostURL),
			DocumentTitle:   t.get(row, ColPostTitle),
			Index:           index,
			ThumbURL:        t.get(row, ColThumbURL),
			FullURL:         t.get(row, ColFullURL),
			InferredFullURL: t.get(row, ColInferredFullURL),
			Alt:             t.get(row, ColAlt),
			Title:           t.get(row, ColTitle),
			Classes:         t.get(row, ColClasses),
			Style:           t.get(row, ColStyle),
		})
	}
	return occurrences, nil
}

// ReadOccurrencesFile reads the occurrences CSV at path.
func ReadOccurrencesFile(path string) ([]model.Occurrence, error) {
	return readFile(path, ReadOccurrences)
}

// WriteOccurrences writes selections as an annotated occurrences file.
func WriteOccurrences(w io.Writer, selections []model.Selection) error {
	rows := make([][]string, 0, len(selections))
	for _, sel := range selections {
		occ := sel.Occurrence
		rows = append(rows, []string{
			occ.DocumentID,
			occ.DocumentURL,
			occ.DocumentTitle,
			strconv.Itoa(occ.Index),
			occ.ThumbURL,
			occ.FullURL,
			sel.InferredFullURL,
			sel.URL,
			string(sel.Kind),
			occ.Alt,
			occ.Title,
			occ.Classes,
			occ.Style,
		})
	}
	return writeTable(w, OccurrenceColumns, rows)
}
