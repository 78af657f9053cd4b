package resolve

import (
	"regexp"
	"strings"

	"github.com/nao1215/imgrescue/internal/model"
)

// PopupToken replaces the size suffix of a thumbnail to address the
// full-size rendition.
const PopupToken = "-popup"

// sizeSuffixPattern matches a trailing "-<N>wi" size suffix (2 to 4 digits)
// that ends the path, optionally followed by a query or fragment.
var sizeSuffixPattern = regexp.MustCompile(`(?i)-\d{2,4}wi($|[?#])`)

// InferFullURL synthesizes the full-size URL for a thumbnail.
// It returns "" when thumb does not carry a recognized size suffix.
func InferFullURL(thumb string) string {
	thumb = strings.TrimSpace(thumb)
	if thumb == "" || !sizeSuffixPattern.MatchString(thumb) {
		return ""
	}
	return sizeSuffixPattern.ReplaceAllString(thumb, PopupToken+"${1}")
}

// Select resolves one occurrence to its canonical URL.
func Select(occ model.Occurrence) model.Selection {
	thumb := strings.TrimSpace(occ.ThumbURL)
	full := strings.TrimSpace(occ.FullURL)

	inferred := strings.TrimSpace(occ.InferredFullURL)
	if inferred == "" {
		inferred = InferFullURL(thumb)
	}

	sel := model.Selection{
		Occurrence:      occ,
		InferredFullURL: inferred,
		Kind:            model.KindNone,
	}

	switch {
	case full != "":
		sel.URL, sel.Kind = full, model.KindFull
	case inferred != "":
		sel.URL, sel.Kind = inferred, model.KindInferredFull
	case thumb != "":
		sel.URL, sel.Kind = thumb, model.KindThumb
	default:
		return sel
	}

	if model.IsLocalURL(sel.URL) {
		sel.Kind = model.KindLocal
	}
	return sel
}

// SelectAll resolves every occurrence, preserving input order.
func SelectAll(occurrences []model.Occurrence) []model.Selection {
	selections := make([]model.Selection, len(occurrences))
	for i, occ := range occurrences {
		selections[i] = Select(occ)
	}
	return selections
}
