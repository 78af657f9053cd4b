package tor

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

// serveOnce accepts a single connection and hands it to handle.
func serveOnce(t *testing.T, handle func(net.Conn)) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to start mock server: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}()
	return listener.Addr().String()
}

// socks5Relay is a minimal no-auth SOCKS5 server that tunnels CONNECT
// requests to their target.
func socks5Relay(t *testing.T) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to start relay: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go relay(conn)
		}
	}()
	return listener.Addr().String()
}

func relay(conn net.Conn) {
	defer conn.Close()

	head := make([]byte, 2)
	if _, err := io.ReadFull(conn, head); err != nil {
		return
	}
	if _, err := io.ReadFull(conn, make([]byte, head[1])); err != nil {
		return
	}
	if _, err := conn.Write([]byte{socks5Version, socks5AuthNone}); err != nil {
		return
	}

	req := make([]byte, 4)
	if _, err := io.ReadFull(conn, req); err != nil {
		return
	}
	var host string
	switch req[3] {
	case 0x01:
		ip := make([]byte, 4)
		if _, err := io.ReadFull(conn, ip); err != nil {
			return
		}
		host = net.IP(ip).String()
	case socks5AddrDomain:
		n := make([]byte, 1)
		if _, err := io.ReadFull(conn, n); err != nil {
			return
		}
		name := make([]byte, n[0])
		if _, err := io.ReadFull(conn, name); err != nil {
			return
		}
		host = string(name)
	default:
		return
	}
	port := make([]byte, 2)
	if _, err := io.ReadFull(conn, port); err != nil {
		return
	}

	target, err := net.Dial("tcp", net.JoinHostPort(host, strconv.Itoa(int(binary.BigEndian.Uint16(port))))) //nolint:noctx // test code
	if err != nil {
		_, _ = conn.Write([]byte{socks5Version, 0x04, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
		return
	}
	defer target.Close()
	if _, err := conn.Write([]byte{socks5Version, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0}); err != nil {
		return
	}

	done := make(chan struct{}, 2)
	go func() { _, _ = io.Copy(target, conn); done <- struct{}{} }()
	go func() { _, _ = io.Copy(conn, target); done <- struct{}{} }()
	<-done
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	t.Run("keeps the proxy address", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("127.0.0.1:9050", 30*time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.ProxyAddress() != "127.0.0.1:9050" {
			t.Errorf("ProxyAddress() = %q, want %q", client.ProxyAddress(), "127.0.0.1:9050")
		}
	})

	t.Run("rejects malformed addresses", func(t *testing.T) {
		t.Parallel()

		for _, addr := range []string{"", "127.0.0.1", ":9050", "127.0.0.1:", "127.0.0.1:9050:extra"} {
			if _, err := NewClient(addr, time.Second); !errors.Is(err, ErrInvalidProxyAddress) {
				t.Errorf("NewClient(%q) error = %v, want ErrInvalidProxyAddress", addr, err)
			}
		}
	})
}

func TestIsValidProxyAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		address string
		want    bool
	}{
		{"IPv4 with port", "127.0.0.1:9050", true},
		{"localhost with port", "localhost:9050", true},
		{"hostname with port", "tor.example.com:9150", true},
		{"bracketed IPv6", "[::1]:9050", true},
		{"empty", "", false},
		{"no port", "127.0.0.1", false},
		{"empty host", ":9050", false},
		{"empty port", "127.0.0.1:", false},
		{"port zero", "127.0.0.1:0", false},
		{"port too large", "127.0.0.1:65536", false},
		{"non numeric port", "127.0.0.1:tor", false},
		{"extra colon", "127.0.0.1:9050:extra", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isValidProxyAddress(tt.address); got != tt.want {
				t.Errorf("isValidProxyAddress(%q) = %v, want %v", tt.address, got, tt.want)
			}
		})
	}
}

func TestProxyStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status  ProxyStatus
		str     string
		wantErr error
	}{
		{ProxyStatusOK, "OK", nil},
		{ProxyStatusWrongType, "wrong type (not Tor)", ErrProxyNotTor},
		{ProxyStatusCannotConnect, "cannot connect", ErrProxyCannotConnect},
		{ProxyStatusTimeout, "timeout", ErrProxyTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			t.Parallel()
			if got := tt.status.String(); got != tt.str {
				t.Errorf("String() = %q, want %q", got, tt.str)
			}
			if err := tt.status.Error(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Error() = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if ProxyStatus(99).String() != "unknown" {
		t.Error("unknown status should stringify as unknown")
	}
	if ProxyStatus(99).Error() == nil {
		t.Error("unknown status should carry an error")
	}
}

func TestCheckConnection(t *testing.T) {
	t.Parallel()

	t.Run("nothing listening", func(t *testing.T) {
		t.Parallel()

		listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
		if err != nil {
			t.Fatal(err)
		}
		addr := listener.Addr().String()
		listener.Close()

		client, err := NewClient(addr, time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if status := client.CheckConnection(t.Context()); status != ProxyStatusCannotConnect {
			t.Errorf("status = %v, want %v", status, ProxyStatusCannotConnect)
		}
	})

	tests := []struct {
		name   string
		handle func(net.Conn)
		want   ProxyStatus
	}{
		{
			name: "HTTP server",
			handle: func(conn net.Conn) {
				_, _ = conn.Read(make([]byte, 3))
				_, _ = conn.Write([]byte("HTTP/1.1 200 OK\r\n\r\n"))
			},
			want: ProxyStatusWrongType,
		},
		{
			name: "SOCKS5 requiring auth",
			handle: func(conn net.Conn) {
				_, _ = conn.Read(make([]byte, 3))
				_, _ = conn.Write([]byte{socks5Version, socks5AuthNoAccept})
			},
			want: ProxyStatusWrongType,
		},
		{
			name: "CONNECT refused is still a proxy",
			handle: func(conn net.Conn) {
				_, _ = conn.Read(make([]byte, 3))
				_, _ = conn.Write([]byte{socks5Version, socks5AuthNone})
				_, _ = conn.Read(make([]byte, 256))
				_, _ = conn.Write([]byte{socks5Version, 0x04, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
			},
			want: ProxyStatusOK,
		},
		{
			name: "wrong version in CONNECT reply",
			handle: func(conn net.Conn) {
				_, _ = conn.Read(make([]byte, 3))
				_, _ = conn.Write([]byte{socks5Version, socks5AuthNone})
				_, _ = conn.Read(make([]byte, 256))
				_, _ = conn.Write([]byte{0x04, 0x00, 0x00, 0x01})
			},
			want: ProxyStatusWrongType,
		},
		{
			name: "silent server",
			handle: func(conn net.Conn) {
				_, _ = conn.Read(make([]byte, 3))
				time.Sleep(checkProxyTimeout + time.Second)
			},
			want: ProxyStatusTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, err := NewClient(serveOnce(t, tt.handle), time.Second)
			if err != nil {
				t.Fatal(err)
			}
			if status := client.CheckConnection(t.Context()); status != tt.want {
				t.Errorf("status = %v, want %v", status, tt.want)
			}
		})
	}

	t.Run("canceled context", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("127.0.0.1:9", time.Second)
		if err != nil {
			t.Fatal(err)
		}
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		status := client.CheckConnection(ctx)
		if status == ProxyStatusOK {
			t.Error("canceled check should not report OK")
		}
	})
}

func TestConnectRequest(t *testing.T) {
	t.Parallel()

	got := connectRequest("ab.cd", 443)
	want := []byte{0x05, 0x01, 0x00, 0x03, 5, 'a', 'b', '.', 'c', 'd', 0x01, 0xBB}
	if string(got) != string(want) {
		t.Errorf("connectRequest() = %v, want %v", got, want)
	}
}

func TestNewHTTPClient(t *testing.T) {
	t.Parallel()

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("via relay"))
	}))
	t.Cleanup(origin.Close)

	client, err := NewClient(socks5Relay(t), 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	httpClient := client.NewHTTPClient()

	if httpClient.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", httpClient.Timeout)
	}

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, origin.URL+"/a.png", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("request through relay failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "via relay" {
		t.Errorf("body = %q, want %q", body, "via relay")
	}
}

func TestDialContextCanceled(t *testing.T) {
	t.Parallel()

	client, err := NewClient(socks5Relay(t), time.Second)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	if conn, err := client.DialContext(ctx, "tcp", "example.com:80"); err == nil {
		conn.Close()
		t.Error("expected an error for a canceled context")
	}
}
