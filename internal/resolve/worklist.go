package resolve

import (
	"sort"

	"github.com/nao1215/imgrescue/internal/model"
)

// BuildWorklist folds selections into one target per canonical URL, sorted
// by URL. Selections that are not fetchable (none, local) are skipped.
// The kind and example document of a target come from the first selection
// that chose its URL.
func BuildWorklist(selections []model.Selection) []model.Target {
	index := make(map[string]int)
	targets := make([]model.Target, 0)

	for _, sel := range selections {
		if !sel.Kind.Fetchable() {
			continue
		}

		i, ok := index[sel.URL]
		if !ok {
			i = len(targets)
			index[sel.URL] = i
			targets = append(targets, model.Target{
				URL:                  sel.URL,
				Kind:                 sel.Kind,
				ExampleDocumentID:    sel.Occurrence.DocumentID,
				ExampleDocumentTitle: sel.Occurrence.DocumentTitle,
			})
		}
		targets[i].Occurrences = append(targets[i].Occurrences, sel.Occurrence.Ref())
	}

	sort.SliceStable(targets, func(a, b int) bool {
		return targets[a].URL < targets[b].URL
	})
	return targets
}

// LocalSelections returns the selections whose chosen URL is a local file,
// sorted by URL. These are reported instead of fetched.
func LocalSelections(selections []model.Selection) []model.Selection {
	local := make([]model.Selection, 0)
	for _, sel := range selections {
		if sel.Kind == model.KindLocal {
			local = append(local, sel)
		}
	}
	sort.SliceStable(local, func(a, b int) bool {
		return local[a].URL < local[b].URL
	})
	return local
}

// Slice returns the worklist window [start, start+limit). A limit of zero
// means no upper bound. Out-of-range windows yield an empty slice.
func Slice(targets []model.Target, start, limit int) []model.Target {
	if start < 0 {
		start = 0
	}
	if start >= len(targets) {
		return []model.Target{}
	}
	end := len(targets)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return targets[start:end]
}

// Restrict keeps only targets whose URL is in allow, preserving order.
func Restrict(targets []model.Target, allow map[string]bool) []model.Target {
	kept := make([]model.Target, 0, len(allow))
	for _, t := range targets {
		if allow[t.URL] {
			kept = append(kept, t)
		}
	}
	return kept
}
