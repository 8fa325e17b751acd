package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// Unknown is the address used when a request carries no usable source.
const Unknown = "unknown"

// ClientAddress returns the first X-Forwarded-For entry, else the host part
// of the connection address, else Unknown.
func ClientAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	if r.RemoteAddr == "" {
		return Unknown
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	if host == "" {
		return Unknown
	}
	return host
}
