package tor

import "errors"

// Tor connectivity errors.
// They are returned while preparing the alternate transport, before any
// image is fetched through it. Each maps to one ProxyStatus, so the fetch
// command can tell a daemon that is not running from one that is slow to
// answer.
var (
	// ErrProxyNotTor is returned when the proxy answers but does not speak
	// unauthenticated SOCKS5. An HTTP proxy or an unrelated service on the
	// configured port produces this.
	ErrProxyNotTor = errors.New("proxy is not a Tor SOCKS5 proxy")

	// ErrProxyCannotConnect is returned when no TCP connection to the proxy
	// could be made. Usually tor is not running or the address is wrong.
	ErrProxyCannotConnect = errors.New("cannot connect to Tor proxy")

	// ErrProxyTimeout is returned when the proxy check runs out of time.
	ErrProxyTimeout = errors.New("timeout connecting to Tor proxy")

	// ErrInvalidProxyAddress is returned for addresses not in host:port form.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrNotRunning is returned when a client is requested from an embedded
	// daemon that was never started or already stopped.
	ErrNotRunning = errors.New("embedded Tor daemon is not running")
)

// ProxyStatus is the result of probing a SOCKS5 proxy.
// Client.CheckConnection returns it instead of an error so callers can log
// the short String form and still reach the sentinel through Error.
type ProxyStatus int

const (
	// ProxyStatusOK means the proxy completed a SOCKS5 CONNECT exchange.
	ProxyStatusOK ProxyStatus = iota
	// ProxyStatusWrongType means something answered that is not a usable
	// SOCKS5 proxy.
	ProxyStatusWrongType
	// ProxyStatusCannotConnect means the proxy address refused the connection.
	ProxyStatusCannotConnect
	// ProxyStatusTimeout means the check did not finish in time.
	ProxyStatusTimeout
)

// String returns a short description for log lines.
func (s ProxyStatus) String() string {
	switch s {
	case ProxyStatusOK:
		return "OK"
	case ProxyStatusWrongType:
		return "wrong type (not Tor)"
	case ProxyStatusCannotConnect:
		return "cannot connect"
	case ProxyStatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error maps the status to its sentinel error, or nil for ProxyStatusOK.
func (s ProxyStatus) Error() error {
	switch s {
	case ProxyStatusOK:
		return nil
	case ProxyStatusWrongType:
		return ErrProxyNotTor
	case ProxyStatusCannotConnect:
		return ErrProxyCannotConnect
	case ProxyStatusTimeout:
		return ErrProxyTimeout
	default:
		return errors.New("unknown proxy status")
	}
}
