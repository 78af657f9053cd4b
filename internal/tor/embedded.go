package tor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nao1215/tornago"
)

// DefaultStartupTimeout is how long a fresh daemon gets to bootstrap.
const DefaultStartupTimeout = 3 * time.Minute

// EmbeddedTor runs a private tor daemon for the lifetime of one command.
// Bootstrapping needs directory downloads and circuit builds, so Start can
// take minutes on a cold cache.
type EmbeddedTor struct {
	mu             sync.Mutex
	process        *tornago.TorProcess
	socksAddr      string
	controlAddr    string
	startupTimeout time.Duration
}

// EmbeddedTorOption configures an EmbeddedTor.
type EmbeddedTorOption func(*EmbeddedTor)

// WithStartupTimeout overrides DefaultStartupTimeout.
func WithStartupTimeout(timeout time.Duration) EmbeddedTorOption {
	return func(e *EmbeddedTor) {
		if timeout > 0 {
			e.startupTimeout = timeout
		}
	}
}

// NewEmbeddedTor returns an unstarted daemon manager.
func NewEmbeddedTor(opts ...EmbeddedTorOption) *EmbeddedTor {
	e := &EmbeddedTor{startupTimeout: DefaultStartupTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches tor on OS-assigned ports and blocks until it has
// bootstrapped, the startup timeout passes, or ctx is done. A daemon that
// finishes starting after ctx was canceled is stopped again.
func (e *EmbeddedTor) Start(ctx context.Context) error {
	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(e.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create Tor launch config: %w", err)
	}

	type started struct {
		process *tornago.TorProcess
		err     error
	}
	ch := make(chan started, 1)
	go func() {
		p, err := tornago.StartTorDaemon(launchCfg)
		ch <- started{p, err}
	}()

	select {
	case s := <-ch:
		if s.err != nil {
			return fmt.Errorf("failed to start embedded Tor daemon: %w", s.err)
		}
		e.mu.Lock()
		e.process = s.process
		e.socksAddr = s.process.SocksAddr()
		e.controlAddr = s.process.ControlAddr()
		e.mu.Unlock()
		return nil
	case <-ctx.Done():
		go func() {
			if s := <-ch; s.process != nil {
				_ = s.process.Stop() //nolint:errcheck // nobody is left to report to
			}
		}()
		return ctx.Err()
	}
}

// Stop shuts the daemon down. It is a no-op on an unstarted or stopped
// instance.
func (e *EmbeddedTor) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.process == nil {
		return nil
	}
	err := e.process.Stop()
	e.process = nil
	e.socksAddr = ""
	e.controlAddr = ""
	return err
}

// SocksAddr returns the daemon's SOCKS5 address, or "" when not running.
func (e *EmbeddedTor) SocksAddr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.socksAddr
}

// ControlAddr returns the daemon's control port address, or "" when not
// running.
func (e *EmbeddedTor) ControlAddr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.controlAddr
}

// IsRunning reports whether Start succeeded and Stop has not been called.
func (e *EmbeddedTor) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.process != nil
}

// NewClient returns a Client bound to the daemon's SOCKS port.
func (e *EmbeddedTor) NewClient(timeout time.Duration) (*Client, error) {
	addr := e.SocksAddr()
	if addr == "" {
		return nil, ErrNotRunning
	}
	return NewClient(addr, timeout)
}
