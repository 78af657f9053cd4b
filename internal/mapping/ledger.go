package mapping

import (
	"sort"

	"github.com/nao1215/imgrescue/internal/model"
)

// Message used for local-file selections.
const localFileMessage = "local file reference cannot be fetched"

// Message used for targets the run never finished.
const incompleteMessage = "run stopped before the target finished"

// Ledger lists every URL that did not produce a stored asset: failed
// outcomes, local-file selections and targets left unfinished. Entries are
// unique per URL and sorted by URL.
func Ledger(outcomes []model.Outcome, local []model.Selection, unfinished []model.Target) []model.FailureEntry {
	byURL := make(map[string]model.FailureEntry)

	for _, o := range outcomes {
		if o.Stored() {
			continue
		}
		byURL[o.URL] = model.FailureEntry{
			URL:        o.URL,
			StatusCode: o.StatusCode,
			Kind:       o.ErrorKind,
			Message:    o.Message,
		}
	}

	for _, sel := range local {
		if _, ok := byURL[sel.URL]; ok {
			continue
		}
		byURL[sel.URL] = model.FailureEntry{
			URL:     sel.URL,
			Kind:    model.ErrorKindLocalFile,
			Message: localFileMessage,
		}
	}

	for _, t := range unfinished {
		if _, ok := byURL[t.URL]; ok {
			continue
		}
		byURL[t.URL] = model.FailureEntry{
			URL:     t.URL,
			Kind:    model.ErrorKindIncomplete,
			Message: incompleteMessage,
		}
	}

	entries := make([]model.FailureEntry, 0, len(byURL))
	for _, e := range byURL {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].URL < entries[j].URL
	})
	return entries
}
