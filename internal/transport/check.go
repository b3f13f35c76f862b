package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"strconv"
	"time"
)

// checkProxyTimeout bounds a proxy check. It is a connectivity probe, not a
// request through the proxy.
const checkProxyTimeout = 5 * time.Second

const (
	socks5Version       = 0x05
	socks5AuthNone      = 0x00
	socks5AuthPassword  = 0x02
	socks5AuthNoAccept  = 0xFF
	socks5CmdConnect    = 0x01
	socks5AddrTypeDomID = 0x03
	socks5PasswordVer   = 0x01
)

// CheckProxy verifies that the configured proxy is reachable. For a SOCKS5
// proxy it performs the handshake and a CONNECT request to target, which
// must be a URL or "host:port". Any CONNECT reply, success or not, counts
// as a working proxy. A direct client always reports ProxyStatusOK.
func (c *Client) CheckProxy(ctx context.Context, target string) ProxyStatus {
	if c.proxyURL == nil {
		return ProxyStatusOK
	}
	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.proxyURL.Host)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	if !isSOCKS(c.proxyURL) {
		return ProxyStatusOK
	}
	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return ProxyStatusCannotConnect
	}
	host, port := targetHostPort(target)
	return socks5Handshake(conn, c.proxyURL.User, host, port)
}

func socks5Handshake(conn net.Conn, user *url.Userinfo, host string, port uint16) ProxyStatus {
	methods := []byte{socks5AuthNone}
	if user != nil {
		methods = append(methods, socks5AuthPassword)
	}
	greeting := append([]byte{socks5Version, byte(len(methods))}, methods...)
	if _, err := conn.Write(greeting); err != nil {
		return ProxyStatusCannotConnect
	}

	authResp := make([]byte, 2)
	if _, err := io.ReadFull(conn, authResp); err != nil {
		return readFailure(err)
	}
	if authResp[0] != socks5Version {
		return ProxyStatusWrongType
	}
	switch authResp[1] {
	case socks5AuthNone:
	case socks5AuthPassword:
		if user == nil {
			return ProxyStatusWrongType
		}
		if status := socks5Authenticate(conn, user); status != ProxyStatusOK {
			return status
		}
	default:
		return ProxyStatusWrongType
	}

	req := []byte{socks5Version, socks5CmdConnect, 0x00, socks5AddrTypeDomID, byte(len(host))}
	req = append(req, host...)
	req = append(req, byte(port>>8), byte(port&0xFF))
	if _, err := conn.Write(req); err != nil {
		return ProxyStatusCannotConnect
	}

	resp := make([]byte, 4)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return readFailure(err)
	}
	if resp[0] != socks5Version {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}

// socks5Authenticate runs the username/password sub-negotiation of RFC 1929.
func socks5Authenticate(conn net.Conn, user *url.Userinfo) ProxyStatus {
	name := user.Username()
	pass, _ := user.Password()
	if len(name) > 255 || len(pass) > 255 {
		return ProxyStatusWrongType
	}
	msg := []byte{socks5PasswordVer, byte(len(name))}
	msg = append(msg, name...)
	msg = append(msg, byte(len(pass)))
	msg = append(msg, pass...)
	if _, err := conn.Write(msg); err != nil {
		return ProxyStatusCannotConnect
	}
	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return readFailure(err)
	}
	if resp[0] != socks5PasswordVer || resp[1] != 0x00 {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}

func readFailure(err error) ProxyStatus {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ProxyStatusTimeout
	}
	return ProxyStatusWrongType
}

// targetHostPort extracts the host and port to CONNECT to. It falls back
// to port 443 and to "example.com" when target is empty.
func targetHostPort(target string) (string, uint16) {
	host, port := "example.com", uint16(443)
	if target == "" {
		return host, port
	}
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		host = u.Hostname()
		if u.Scheme == "http" {
			port = 80
		}
		if p, err := strconv.ParseUint(u.Port(), 10, 16); err == nil && p > 0 {
			port = uint16(p)
		}
		return host, port
	}
	if h, p, err := net.SplitHostPort(target); err == nil {
		if n, err := strconv.ParseUint(p, 10, 16); err == nil && n > 0 {
			port = uint16(n)
		}
		return h, port
	}
	return target, port
}
