package manifest

import (
	"io"
	"strconv"

	"github.com/nao1215/imgrescue/internal/model"
)

// RewriteColumns is the column order of the rewrite table.
var RewriteColumns = []string{"original_url", "new_filename", "new_url", "kind", "sha1", "bytes", "content_type"}

// WriteRewriteTable writes the rewrite table.
func WriteRewriteTable(w io.Writer, entries []model.RewriteEntry) error {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.OriginalURL,
			e.Filename,
			e.PublicURL,
			string(e.Variant),
			e.ContentHash,
			strconv.FormatInt(e.ByteLength, 10),
			e.ContentType,
		})
	}
	return writeTable(w, RewriteColumns, rows)
}
