package model

import (
	"strconv"
	"strings"
)

// Occurrence is one image reference found in one source document.
// It is produced by the extraction step and consumed read-only.
type Occurrence struct {
	// DocumentID identifies the owning document (post index in the export).
	DocumentID string

	// DocumentURL is the unique URL of the owning document.
	DocumentURL string

	// DocumentTitle is the human-readable title of the owning document.
	DocumentTitle string

	// Index is the position of the image within the document.
	Index int

	// ThumbURL is the src attribute of the image, if any.
	ThumbURL string

	// FullURL is the explicit full-size link (usually the wrapping anchor).
	FullURL string

	// InferredFullURL is a full-size URL derived from the thumbnail.
	// It is empty when the record did not carry one; the resolver may
	// synthesize it.
	InferredFullURL string

	// Display metadata carried through for the rewrite step.
	Alt     string
	Title   string
	Classes string
	Style   string
}

// Ref returns the reference used to link a target back to this occurrence.
func (o Occurrence) Ref() OccurrenceRef {
	return OccurrenceRef{DocumentID: o.DocumentID, Index: o.Index}
}

// OccurrenceRef identifies an occurrence by document and position.
type OccurrenceRef struct {
	DocumentID string
	Index      int
}

// String returns "<document>#<index>".
func (r OccurrenceRef) String() string {
	return r.DocumentID + "#" + strconv.Itoa(r.Index)
}

// IsLocalURL reports whether u points at the local filesystem.
// Such URLs cannot be fetched and are reported instead of silently skipped.
func IsLocalURL(u string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(u)), "file://")
}
