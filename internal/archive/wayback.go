package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	// DefaultCDXEndpoint is the Wayback Machine CDX search API.
	DefaultCDXEndpoint = "https://web.archive.org/cdx/search/cdx"

	// DefaultWaybackBase is the prefix of Wayback retrieval URLs.
	DefaultWaybackBase = "https://web.archive.org/web"

	// maxIndexSize caps the CDX response read into memory.
	maxIndexSize = 8 * 1024 * 1024
)

// ErrArchiveMiss is returned when no successful capture exists for a URL.
var ErrArchiveMiss = errors.New("no archived capture found")

// Resolver maps an unreachable URL to an archived retrieval location.
type Resolver interface {
	Resolve(ctx context.Context, rawURL string) (string, error)
}

// Doer issues HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// WaybackResolver resolves URLs through the CDX index.
type WaybackResolver struct {
	client    Doer
	endpoint  string
	base      string
	userAgent string
}

// WaybackOption configures a WaybackResolver.
type WaybackOption func(*WaybackResolver)

// WithEndpoint overrides the CDX endpoint.
func WithEndpoint(endpoint string) WaybackOption {
	return func(w *WaybackResolver) {
		if endpoint != "" {
			w.endpoint = endpoint
		}
	}
}

// WithBase overrides the retrieval URL prefix.
func WithBase(base string) WaybackOption {
	return func(w *WaybackResolver) {
		if base != "" {
			w.base = strings.TrimRight(base, "/")
		}
	}
}

// WithUserAgent sets the User-Agent sent to the index.
func WithUserAgent(ua string) WaybackOption {
	return func(w *WaybackResolver) {
		w.userAgent = ua
	}
}

// NewWaybackResolver creates a resolver that queries the index with client.
func NewWaybackResolver(client Doer, opts ...WaybackOption) *WaybackResolver {
	w := &WaybackResolver{
		client:   client,
		endpoint: DefaultCDXEndpoint,
		base:     DefaultWaybackBase,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.client == nil {
		w.client = http.DefaultClient
	}
	return w
}

// Resolve returns the retrieval URL of the newest status-200 capture of rawURL.
func (w *WaybackResolver) Resolve(ctx context.Context, rawURL string) (string, error) {
	query := url.Values{}
	query.Set("url", rawURL)
	query.Set("output", "json")
	query.Set("filter", "statuscode:200")
	query.Set("collapse", "digest")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build index request: %w", err)
	}
	if w.userAgent != "" {
		req.Header.Set("User-Agent", w.userAgent)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("index query failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // Draining for connection reuse.
		return "", fmt.Errorf("index query returned status %d: %w", resp.StatusCode, ErrArchiveMiss)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxIndexSize))
	if err != nil {
		return "", fmt.Errorf("failed to read index response: %w", err)
	}

	timestamp, err := newestTimestamp(body)
	if err != nil {
		return "", err
	}
	return SnapshotURL(w.base, timestamp, rawURL), nil
}

// newestTimestamp parses a CDX JSON response and returns the largest
// capture timestamp. The first row is the field header.
func newestTimestamp(body []byte) (string, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", ErrArchiveMiss
	}

	var rows [][]string
	if err := json.Unmarshal(body, &rows); err != nil {
		return "", fmt.Errorf("failed to parse index response: %w", err)
	}
	if len(rows) < 2 {
		return "", ErrArchiveMiss
	}

	column := -1
	for i, field := range rows[0] {
		if field == "timestamp" {
			column = i
			break
		}
	}
	if column < 0 {
		return "", fmt.Errorf("index response has no timestamp column: %w", ErrArchiveMiss)
	}

	newest := ""
	for _, row := range rows[1:] {
		if column >= len(row) {
			continue
		}
		// CDX timestamps are fixed-width digits, so lexical order is time order.
		if ts := row[column]; ts > newest {
			newest = ts
		}
	}
	if newest == "" {
		return "", ErrArchiveMiss
	}
	return newest, nil
}

// SnapshotURL builds "<base>/<timestamp>id_/<url>".
func SnapshotURL(base, timestamp, rawURL string) string {
	return strings.TrimRight(base, "/") + "/" + timestamp + "id_/" + rawURL
}

// PinnedResolver maps every URL to the capture nearest a fixed timestamp
// without querying the index. The archive redirects to the closest capture.
type PinnedResolver struct {
	base      string
	timestamp string
}

// NewPinnedResolver creates a resolver pinned to timestamp (YYYYMMDDhhmmss).
func NewPinnedResolver(base, timestamp string) *PinnedResolver {
	if base == "" {
		base = DefaultWaybackBase
	}
	return &PinnedResolver{base: base, timestamp: timestamp}
}

// Resolve returns the pinned retrieval URL. It never misses.
func (p *PinnedResolver) Resolve(_ context.Context, rawURL string) (string, error) {
	return SnapshotURL(p.base, p.timestamp, rawURL), nil
}
