// Package tor routes image requests through the Tor network.
//
// Some origins block the address a recovery run comes from, or answer with
// a region wall. The Client in this package wraps a SOCKS5 dialer so the
// fetch engine can retry such URLs once through Tor as its alternate
// transport. EmbeddedTor starts a private tor daemon via tornago when no
// external daemon is available.
package tor
