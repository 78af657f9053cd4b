package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/imgrescue/internal/archive"
	"github.com/nao1215/imgrescue/internal/model"
	"github.com/nao1215/imgrescue/internal/store"
)

// Defaults applied by NewEngine.
const (
	DefaultWorkers     = 4
	DefaultRetries     = 2
	DefaultTimeout     = 20 * time.Second
	DefaultBackoffBase = time.Second
	DefaultMaxBodySize = 50 * 1024 * 1024
)

// Doer issues HTTP requests. *http.Client satisfies it, and tests inject
// fakes through it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HeaderFunc returns extra request headers for a host.
type HeaderFunc func(host string) map[string]string

// Result pairs a target with its terminal outcome.
//
// Results are returned in worklist order, whatever order the workers
// finished in. A stored outcome carries the payload in Body so the caller
// can persist it without a second request; the outcome's extension is only
// a suggestion until the store has decided on the file name.
type Result struct {
	Target  model.Target
	Outcome model.Outcome

	// Body holds the payload of a stored outcome. It is released once a
	// result handler has seen it.
	Body []byte

	// Done is false when the run stopped before this target finished.
	// Such targets have no outcome.
	Done bool
}

// Engine fetches worklist targets with a bounded pool of workers.
//
// Every target is driven through the direct, fallback, archive and
// alternate phases described in the package documentation until it has
// exactly one terminal outcome, or until the run is canceled. Per-target
// failures never stop the batch; Run only returns an error when its
// context ends.
//
// Result handler calls are serialized, so a handler may update caller
// state without its own locking.
type Engine struct {
	client            Doer
	insecure          Doer
	plaintextFallback bool
	alternate         Doer
	resolver          archive.Resolver

	workers     int
	retries     int
	backoff     Backoff
	timeout     time.Duration
	maxBodySize int64
	userAgent   string
	headers     HeaderFunc
	limiter     *hostLimiter

	handler   func(Result)
	handlerMu sync.Mutex

	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets the number of concurrent targets. Non-positive values
// keep the default.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithRetries sets how many retries follow the first direct attempt.
func WithRetries(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.retries = n
		}
	}
}

// WithBackoff sets the delay function between direct attempts.
func WithBackoff(b Backoff) Option {
	return func(e *Engine) {
		if b != nil {
			e.backoff = b
		}
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithMaxBodySize caps the bytes read from one response.
func WithMaxBodySize(n int64) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxBodySize = n
		}
	}
}

// WithUserAgent sets the default User-Agent header.
func WithUserAgent(ua string) Option {
	return func(e *Engine) {
		e.userAgent = ua
	}
}

// WithHeaders sets per-host request headers. They override the User-Agent.
func WithHeaders(fn HeaderFunc) Option {
	return func(e *Engine) {
		e.headers = fn
	}
}

// WithRateLimit allows perSecond requests per host with the given burst.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(e *Engine) {
		e.limiter = newHostLimiter(perSecond, burst)
	}
}

// WithInsecureFallback enables one fallback attempt through client, which
// is expected to skip certificate verification, after a TLS failure.
func WithInsecureFallback(client Doer) Option {
	return func(e *Engine) {
		e.insecure = client
	}
}

// WithPlaintextFallback enables one fallback attempt against the http://
// variant of an https:// URL after a TLS failure. The insecure client
// fallback takes precedence when both are configured.
func WithPlaintextFallback(enabled bool) Option {
	return func(e *Engine) {
		e.plaintextFallback = enabled
	}
}

// WithArchive enables the archive fallback through resolver.
func WithArchive(resolver archive.Resolver) Option {
	return func(e *Engine) {
		e.resolver = resolver
	}
}

// WithAlternate enables one last attempt through an alternate transport.
func WithAlternate(client Doer) Option {
	return func(e *Engine) {
		e.alternate = client
	}
}

// WithResultHandler registers fn to receive every finished result as soon
// as it completes. Calls are serialized. Bodies are released after fn
// returns, so results returned by Run carry no bodies.
func WithResultHandler(fn func(Result)) Option {
	return func(e *Engine) {
		e.handler = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an engine that fetches with client.
func NewEngine(client Doer, opts ...Option) *Engine {
	e := &Engine{
		client:      client,
		workers:     DefaultWorkers,
		retries:     DefaultRetries,
		backoff:     LinearBackoff(DefaultBackoffBase),
		timeout:     DefaultTimeout,
		maxBodySize: DefaultMaxBodySize,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.client == nil {
		e.client = http.DefaultClient
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Run fetches every target and returns one result per target, in target
// order. When ctx is canceled, targets that did not finish have Done set
// to false and Run returns ctx.Err() alongside the partial results.
func (e *Engine) Run(ctx context.Context, targets []model.Target) ([]Result, error) {
	e.logger.Info("starting fetch",
		"targets", len(targets),
		"workers", e.workers,
		"retries", e.retries,
	)
	started := time.Now()

	results := make([]Result, len(targets))
	for i, target := range targets {
		results[i].Target = target
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, target := range targets {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}

			result := e.fetchTarget(gctx, target)
			if result.Done && e.handler != nil {
				e.handlerMu.Lock()
				e.handler(result)
				e.handlerMu.Unlock()
				result.Body = nil
			}
			// Each goroutine owns its own index.
			results[i] = result
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // Workers never return errors; failures live in outcomes.

	e.logger.Info("fetch complete",
		"targets", len(targets),
		"elapsed", time.Since(started),
	)

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// attempt is the classified result of one request.
type attempt struct {
	body        []byte
	contentType string
	status      int
	kind        model.ErrorKind
	err         error
}

func (a attempt) ok() bool {
	return a.err == nil
}

// fetchTarget runs the state machine of one target to completion.
func (e *Engine) fetchTarget(ctx context.Context, target model.Target) Result {
	log := e.logger.With("url", target.URL)
	result := Result{Target: target}
	attempts := 0

	var last attempt
	tlsFallbackUsed := false

	for try := 0; try <= e.retries; try++ {
		if try > 0 {
			if err := e.sleep(ctx, e.backoff(try)); err != nil {
				return result
			}
		}

		last = e.attempt(ctx, e.client, target.URL)
		attempts++
		if last.ok() {
			return e.stored(result, last, model.SourceOrigin, target.URL, attempts)
		}
		if isCanceled(ctx, last.err) {
			return result
		}

		log.Debug("attempt failed",
			"attempt", attempts,
			"kind", last.kind,
			"status", last.status,
			"error", last.err,
		)

		if !last.kind.Retryable() {
			break
		}

		if last.kind == model.ErrorKindTLS && !tlsFallbackUsed {
			if fallbackURL, client, ok := e.tlsFallback(target.URL); ok {
				tlsFallbackUsed = true
				fb := e.attempt(ctx, client, fallbackURL)
				attempts++
				if fb.ok() {
					return e.stored(result, fb, model.SourceTLSFallback, fallbackURL, attempts)
				}
				if isCanceled(ctx, fb.err) {
					return result
				}
				log.Debug("tls fallback failed", "fallback_url", fallbackURL, "error", fb.err)
			}
		}
	}

	if e.resolver != nil && last.kind != model.ErrorKindClient {
		location, err := e.resolver.Resolve(ctx, target.URL)
		switch {
		case err != nil && isCanceled(ctx, err):
			return result
		case err != nil:
			log.Debug("archive lookup failed", "error", err)
			last = attempt{kind: model.ErrorKindArchiveMiss, err: err}
		default:
			a := e.attempt(ctx, e.client, location)
			attempts++
			if a.ok() {
				return e.stored(result, a, model.SourceArchive, location, attempts)
			}
			if isCanceled(ctx, a.err) {
				return result
			}
			log.Debug("archive fetch failed", "archive_url", location, "error", a.err)
			last = a
			last.err = fmt.Errorf("archive %s: %w", location, a.err)
		}
	}

	if e.alternate != nil {
		a := e.attempt(ctx, e.alternate, target.URL)
		attempts++
		if a.ok() {
			return e.stored(result, a, model.SourceAlternate, target.URL, attempts)
		}
		if isCanceled(ctx, a.err) {
			return result
		}
		log.Debug("alternate transport failed", "error", a.err)
	}

	log.Warn("fetch failed",
		"kind", last.kind,
		"status", last.status,
		"attempts", attempts,
		"error", last.err,
	)

	result.Done = true
	result.Outcome = model.Outcome{
		URL:        target.URL,
		Status:     model.StatusFailed,
		ErrorKind:  last.kind,
		StatusCode: last.status,
		Message:    errorMessage(last.err),
		Attempts:   attempts,
	}
	return result
}

// stored completes result with a successful attempt.
func (e *Engine) stored(result Result, a attempt, source model.Source, sourceURL string, attempts int) Result {
	result.Done = true
	result.Body = a.body
	result.Outcome = model.Outcome{
		URL:         result.Target.URL,
		Status:      model.StatusStored,
		ContentHash: store.Digest(a.body),
		Extension:   store.InferExtension(a.contentType, result.Target.URL),
		ByteLength:  int64(len(a.body)),
		ContentType: a.contentType,
		Source:      source,
		SourceURL:   sourceURL,
		Attempts:    attempts,
	}

	e.logger.Debug("fetched",
		"url", result.Target.URL,
		"source", source,
		"bytes", len(a.body),
		"sha1", result.Outcome.ContentHash,
	)
	return result
}

// tlsFallback picks the fallback channel for a TLS failure.
func (e *Engine) tlsFallback(rawURL string) (string, Doer, bool) {
	if e.insecure != nil {
		return rawURL, e.insecure, true
	}
	if e.plaintextFallback && strings.HasPrefix(strings.ToLower(rawURL), "https://") {
		return "http://" + rawURL[len("https://"):], e.client, true
	}
	return "", nil, false
}

// attempt issues one timed GET and classifies the result.
func (e *Engine) attempt(ctx context.Context, client Doer, rawURL string) attempt {
	if err := e.limiter.Wait(ctx, rawURL); err != nil {
		return attempt{kind: model.ErrorKindTransport, err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		// A URL that cannot form a request will never succeed.
		return attempt{kind: model.ErrorKindClient, err: err}
	}
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}
	if e.headers != nil {
		for key, value := range e.headers(req.URL.Hostname()) {
			req.Header.Set(key, value)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return attempt{kind: classifyError(err), err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024)) //nolint:errcheck // Draining for connection reuse.
		return attempt{
			status: resp.StatusCode,
			kind:   classifyStatus(resp.StatusCode),
			err:    &StatusError{Code: resp.StatusCode},
		}
	}

	body, err := e.readBody(resp)
	if err != nil {
		return attempt{status: resp.StatusCode, kind: classifyError(err), err: err}
	}

	return attempt{
		body:        body,
		contentType: resp.Header.Get("Content-Type"),
		status:      resp.StatusCode,
	}
}

// readBody reads a complete response body within the size cap.
func (e *Engine) readBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBodySize+1))
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %w", ErrIncompleteBody, err)
		}
		return nil, err
	}
	if int64(len(body)) > e.maxBodySize {
		return nil, ErrBodyTooLarge
	}
	if resp.ContentLength >= 0 && int64(len(body)) != resp.ContentLength {
		return nil, fmt.Errorf("%w: got %d of %d bytes", ErrIncompleteBody, len(body), resp.ContentLength)
	}
	if len(body) == 0 {
		return nil, ErrEmptyBody
	}
	return body, nil
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
