package model

// ErrorKind classifies why a fetch did not produce a stored asset.
type ErrorKind string

const (
	// ErrorKindNone is the zero value used by stored outcomes.
	ErrorKindNone ErrorKind = ""

	// ErrorKindTransport covers connection failures and timeouts. Retryable.
	ErrorKindTransport ErrorKind = "TransportError"

	// ErrorKindTLS covers certificate and handshake failures. Retryable, and
	// eligible for one fallback attempt over a weaker channel.
	ErrorKindTLS ErrorKind = "TLSError"

	// ErrorKindClient is a 4xx response. Terminal.
	ErrorKindClient ErrorKind = "ClientError"

	// ErrorKindServer is a 5xx response. Retryable.
	ErrorKindServer ErrorKind = "ServerError"

	// ErrorKindArchiveMiss means the snapshot index had no usable capture.
	ErrorKindArchiveMiss ErrorKind = "ArchiveMiss"

	// ErrorKindDecode is an incomplete, oversized or unreadable body. Retryable.
	ErrorKindDecode ErrorKind = "DecodeError"

	// ErrorKindLocalFile marks a file:// selection that cannot be fetched.
	ErrorKindLocalFile ErrorKind = "LocalFile"

	// ErrorKindIncomplete marks a target left without an outcome because the
	// run was stopped.
	ErrorKindIncomplete ErrorKind = "Incomplete"
)

// Retryable reports whether another attempt may succeed.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrorKindTransport, ErrorKindTLS, ErrorKindServer, ErrorKindDecode:
		return true
	default:
		return false
	}
}

// Source records which strategy produced the bytes of a stored outcome.
type Source string

const (
	SourceOrigin      Source = "origin"
	SourceTLSFallback Source = "tls_fallback"
	SourceArchive     Source = "archive"
	SourceAlternate   Source = "alternate"
	// SourceHistory marks an outcome reused from a previous run.
	SourceHistory Source = "history"
)

// Status is the terminal state of an outcome.
type Status string

const (
	StatusStored Status = "stored"
	StatusFailed Status = "failed"
)

// Outcome is the terminal result of fetching one target.
// Exactly one Outcome exists per completed target.
type Outcome struct {
	// URL is the canonical target URL, not the URL the bytes came from.
	URL    string
	Status Status

	// Stored fields.
	ContentHash string
	Extension   string
	ByteLength  int64
	ContentType string
	Source      Source
	// SourceURL is the URL that actually returned the bytes (archive
	// location, plaintext variant, ...).
	SourceURL string

	// Failed fields.
	ErrorKind  ErrorKind
	StatusCode int
	Message    string

	// Attempts counts every request issued for this target, fallbacks included.
	Attempts int
}

// Stored reports whether the outcome produced an asset.
func (o Outcome) Stored() bool {
	return o.Status == StatusStored
}

// Filename returns the content-addressed file name, or "" for failures.
func (o Outcome) Filename() string {
	if !o.Stored() {
		return ""
	}
	return o.ContentHash + o.Extension
}

// Asset is a file in the content-addressed store.
type Asset struct {
	Hash      string
	Extension string
	Size      int64
	// Path is the absolute or store-relative location on disk.
	Path string
}

// Filename returns "<hash><extension>".
func (a Asset) Filename() string {
	return a.Hash + a.Extension
}
