package fetch

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// hostLimiter keeps one token bucket per host.
type hostLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// newHostLimiter creates a limiter allowing perSecond requests per host.
// A non-positive perSecond disables limiting.
func newHostLimiter(perSecond float64, burst int) *hostLimiter {
	if burst < 1 {
		burst = 1
	}
	return &hostLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until a request to rawURL's host may proceed.
func (h *hostLimiter) Wait(ctx context.Context, rawURL string) error {
	if h == nil || h.limit <= 0 {
		return nil
	}
	return h.get(hostOf(rawURL)).Wait(ctx)
}

func (h *hostLimiter) get(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()

	l, ok := h.limiters[host]
	if !ok {
		l = rate.NewLimiter(h.limit, h.burst)
		h.limiters[host] = l
	}
	return l
}

// hostOf returns the lowercase host of rawURL, or rawURL itself if it
// cannot be parsed.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return strings.ToLower(u.Hostname())
}

// Backoff returns the delay to wait before the given retry (1-based).
type Backoff func(retry int) time.Duration

// LinearBackoff waits retry × base before each retry.
func LinearBackoff(base time.Duration) Backoff {
	return func(retry int) time.Duration {
		return time.Duration(retry) * base
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
