package utilities

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP extracts the originating client address from a request, honoring
// the standard proxy headers before falling back to the socket address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RequestMeta returns the client IP and user agent of a request as optional
// values suitable for session records.
func RequestMeta(r *http.Request) (ip *string, userAgent *string) {
	if addr := ClientIP(r); addr != "" {
		ip = &addr
	}
	if ua := r.UserAgent(); ua != "" {
		userAgent = &ua
	}
	return ip, userAgent
}
