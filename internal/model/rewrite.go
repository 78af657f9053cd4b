package model

// RewriteEntry maps one originally observed URL to its stored asset.
// Multiple entries may point at the same asset.
type RewriteEntry struct {
	OriginalURL string
	Filename    string
	// PublicURL is empty unless a hosting prefix is configured.
	PublicURL   string
	Variant     Variant
	ContentHash string
	ByteLength  int64
	ContentType string
}

// FailureEntry is one row of the failure ledger.
type FailureEntry struct {
	URL string
	// StatusCode is the last HTTP status, or 0 for non-HTTP failures.
	StatusCode int
	Kind       ErrorKind
	Message    string
}
