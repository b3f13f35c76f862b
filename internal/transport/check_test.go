package transport

import (
	"context"
	"io"
	"net"
	"testing"
)

// fakeSOCKS5 accepts one connection and runs script against it.
func fakeSOCKS5(t *testing.T, script func(conn net.Conn)) string {
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
		script(conn)
	}()
	return listener.Addr().String()
}

func TestCheckProxy(t *testing.T) {
	t.Parallel()

	t.Run("direct client is always OK", func(t *testing.T) {
		t.Parallel()

		c, _ := NewClient("")
		if got := c.CheckProxy(context.Background(), "https://api.example.com"); got != ProxyStatusOK {
			t.Errorf("CheckProxy() = %v, want OK", got)
		}
	})

	t.Run("cannot connect", func(t *testing.T) {
		t.Parallel()

		c, _ := NewClient("127.0.0.1:59999")
		if got := c.CheckProxy(context.Background(), ""); got != ProxyStatusCannotConnect {
			t.Errorf("CheckProxy() = %v, want CannotConnect", got)
		}
	})

	t.Run("non SOCKS5 server", func(t *testing.T) {
		t.Parallel()

		addr := fakeSOCKS5(t, func(conn net.Conn) {
			buf := make([]byte, 3)
			_, _ = io.ReadFull(conn, buf)
			_, _ = conn.Write([]byte("HTTP/1.1 200 OK\r\n\r\n"))
		})
		c, _ := NewClient(addr)
		if got := c.CheckProxy(context.Background(), ""); got != ProxyStatusWrongType {
			t.Errorf("CheckProxy() = %v, want WrongType", got)
		}
	})

	t.Run("no acceptable auth method", func(t *testing.T) {
		t.Parallel()

		addr := fakeSOCKS5(t, func(conn net.Conn) {
			buf := make([]byte, 3)
			_, _ = io.ReadFull(conn, buf)
			_, _ = conn.Write([]byte{0x05, 0xFF})
		})
		c, _ := NewClient(addr)
		if got := c.CheckProxy(context.Background(), ""); got != ProxyStatusWrongType {
			t.Errorf("CheckProxy() = %v, want WrongType", got)
		}
	})

	t.Run("CONNECT carries the target host", func(t *testing.T) {
		t.Parallel()

		gotHost := make(chan string, 1)
		addr := fakeSOCKS5(t, func(conn net.Conn) {
			buf := make([]byte, 3)
			_, _ = io.ReadFull(conn, buf)
			_, _ = conn.Write([]byte{0x05, 0x00})

			head := make([]byte, 5)
			_, _ = io.ReadFull(conn, head)
			host := make([]byte, int(head[4])+2)
			_, _ = io.ReadFull(conn, host)
			gotHost <- string(host[:len(host)-2])

			_, _ = conn.Write([]byte{0x05, 0x04, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
		})
		c, _ := NewClient("socks5h://" + addr)
		if got := c.CheckProxy(context.Background(), "https://api.example.com/v1"); got != ProxyStatusOK {
			t.Errorf("CheckProxy() = %v, want OK", got)
		}
		if h := <-gotHost; h != "api.example.com" {
			t.Errorf("CONNECT host = %q, want api.example.com", h)
		}
	})

	t.Run("username and password negotiation", func(t *testing.T) {
		t.Parallel()

		gotCreds := make(chan string, 1)
		addr := fakeSOCKS5(t, func(conn net.Conn) {
			greeting := make([]byte, 4)
			_, _ = io.ReadFull(conn, greeting)
			_, _ = conn.Write([]byte{0x05, 0x02})

			ver := make([]byte, 2)
			_, _ = io.ReadFull(conn, ver)
			name := make([]byte, int(ver[1]))
			_, _ = io.ReadFull(conn, name)
			plen := make([]byte, 1)
			_, _ = io.ReadFull(conn, plen)
			pass := make([]byte, int(plen[0]))
			_, _ = io.ReadFull(conn, pass)
			gotCreds <- string(name) + ":" + string(pass)
			_, _ = conn.Write([]byte{0x01, 0x00})

			connect := make([]byte, 256)
			_, _ = conn.Read(connect)
			_, _ = conn.Write([]byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
		})
		c, _ := NewClient("socks5://alice:s3cret@" + addr)
		if got := c.CheckProxy(context.Background(), ""); got != ProxyStatusOK {
			t.Errorf("CheckProxy() = %v, want OK", got)
		}
		if creds := <-gotCreds; creds != "alice:s3cret" {
			t.Errorf("credentials = %q", creds)
		}
	})

	t.Run("wrong version in CONNECT reply", func(t *testing.T) {
		t.Parallel()

		addr := fakeSOCKS5(t, func(conn net.Conn) {
			buf := make([]byte, 3)
			_, _ = io.ReadFull(conn, buf)
			_, _ = conn.Write([]byte{0x05, 0x00})
			connect := make([]byte, 256)
			_, _ = conn.Read(connect)
			_, _ = conn.Write([]byte{0x04, 0x00, 0x00, 0x01})
		})
		c, _ := NewClient(addr)
		if got := c.CheckProxy(context.Background(), ""); got != ProxyStatusWrongType {
			t.Errorf("CheckProxy() = %v, want WrongType", got)
		}
	})
}

func TestTargetHostPort(t *testing.T) {
	t.Parallel()

	tests := []struct {
		target   string
		wantHost string
		wantPort uint16
	}{
		{"", "example.com", 443},
		{"https://api.example.com", "api.example.com", 443},
		{"http://api.example.com", "api.example.com", 80},
		{"http://api.example.com:8080/x", "api.example.com", 8080},
		{"api.example.com:9000", "api.example.com", 9000},
		{"api.example.com", "api.example.com", 443},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			t.Parallel()

			h, p := targetHostPort(tt.target)
			if h != tt.wantHost || p != tt.wantPort {
				t.Errorf("targetHostPort(%q) = %s:%d, want %s:%d", tt.target, h, p, tt.wantHost, tt.wantPort)
			}
		})
	}
}

func TestProxyStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status  ProxyStatus
		text    string
		wantErr error
	}{
		{ProxyStatusOK, "OK", nil},
		{ProxyStatusWrongType, "wrong type (not SOCKS5)", ErrProxyNotSOCKS5},
		{ProxyStatusCannotConnect, "cannot connect", ErrProxyCannotConnect},
		{ProxyStatusTimeout, "timeout", ErrProxyTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()

			if tt.status.String() != tt.text {
				t.Errorf("String() = %q, want %q", tt.status.String(), tt.text)
			}
			if tt.status.Err() != tt.wantErr { //nolint:errorlint // sentinel identity
				t.Errorf("Err() = %v, want %v", tt.status.Err(), tt.wantErr)
			}
		})
	}
	if ProxyStatus(99).String() != "unknown" {
		t.Error("unexpected string for unknown status")
	}
}
