package httputil

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the originating address of r: the first X-Forwarded-For
// hop when present, otherwise RemoteAddr without its port.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
