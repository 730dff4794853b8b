package http

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP extracts the caller address, preferring the first entry of the
// forwarded-for header. That entry is only trustworthy when upstream
// infrastructure overwrites the header rather than appending to it; treat
// that as a deployment configuration requirement.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if first != "" {
			return first
		}
	}

	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}

	return "unknown"
}
