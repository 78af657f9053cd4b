package model

// Target is one entry of the deduplicated fetch worklist.
type Target struct {
	// URL is the canonical URL to fetch. Unique within a worklist.
	URL string

	// Kind is the selection kind of the first occurrence that chose URL.
	Kind Kind

	// Occurrences lists every occurrence that selected URL, in input order.
	Occurrences []OccurrenceRef

	// ExampleDocumentID and ExampleDocumentTitle point at one owning
	// document for traceability in the worklist file.
	ExampleDocumentID    string
	ExampleDocumentTitle string
}
