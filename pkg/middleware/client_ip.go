package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// clientAddr returns the caller's address: the first entry of the proxy
// header when set, else the connection's remote address.
func clientAddr(r *http.Request, header string) (string, bool) {
	if r == nil {
		return "", false
	}
	if header != "" {
		if v := strings.TrimSpace(r.Header.Get(header)); v != "" {
			if i := strings.IndexByte(v, ','); i >= 0 {
				v = strings.TrimSpace(v[:i])
			}
			return stripPort(v)
		}
	}
	return stripPort(r.RemoteAddr)
}

// clientIP is clientAddr parsed; IPv4-mapped IPv6 addresses are unmapped.
func clientIP(r *http.Request, header string) (netip.Addr, bool) {
	raw, ok := clientAddr(r, header)
	if !ok {
		return netip.Addr{}, false
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

func stripPort(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		return host, true
	}
	return s, true
}
