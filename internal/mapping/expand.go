package mapping

import (
	"sort"
	"strings"

	"github.com/nao1215/imgrescue/internal/model"
)

// PublicURL joins a hosting prefix and a stored filename. It returns ""
// unless the prefix is an http(s) URL.
func PublicURL(prefix, filename string) string {
	prefix = strings.TrimSpace(prefix)
	if !strings.HasPrefix(strings.ToLower(prefix), "http") {
		return ""
	}
	return strings.TrimRight(prefix, "/") + "/" + filename
}

type entryKey struct {
	url     string
	variant model.Variant
}

// Expand builds the rewrite table. Every selection whose chosen URL has a
// stored outcome contributes one entry per non-empty URL variant. Entries
// are unique per (URL, variant), and once a URL maps to an asset later
// selections cannot remap it to a different one. The result is sorted by
// URL, then variant.
func Expand(selections []model.Selection, outcomes map[string]model.Outcome, publicPrefix string) []model.RewriteEntry {
	seen := make(map[entryKey]bool)
	assetOf := make(map[string]string)
	entries := make([]model.RewriteEntry, 0)

	for _, sel := range selections {
		if !sel.Kind.Fetchable() {
			continue
		}
		outcome, ok := outcomes[sel.URL]
		if !ok || !outcome.Stored() {
			continue
		}
		filename := outcome.Filename()

		for _, v := range sel.Variants() {
			if existing, ok := assetOf[v.URL]; ok && existing != filename {
				continue
			}
			key := entryKey{url: v.URL, variant: v.Variant}
			if seen[key] {
				continue
			}
			seen[key] = true
			assetOf[v.URL] = filename

			entries = append(entries, model.RewriteEntry{
				OriginalURL: v.URL,
				Filename:    filename,
				PublicURL:   PublicURL(publicPrefix, filename),
				Variant:     v.Variant,
				ContentHash: outcome.ContentHash,
				ByteLength:  outcome.ByteLength,
				ContentType: outcome.ContentType,
			})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].OriginalURL != entries[j].OriginalURL {
			return entries[i].OriginalURL < entries[j].OriginalURL
		}
		return variantOrder(entries[i].Variant) < variantOrder(entries[j].Variant)
	})
	return entries
}

func variantOrder(v model.Variant) int {
	switch v {
	case model.VariantThumb:
		return 0
	case model.VariantFull:
		return 1
	case model.VariantInferredFull:
		return 2
	default:
		return 3
	}
}
