package httputil

import (
	"net"
	"net/http"
	"strings"
)

// RemoteAddrFromRequest returns the remote address for the request,
// consulting the X-Forwarded-For header only when the service is known
// to be behind a trusted reverse proxy. Any port is stripped.
func RemoteAddrFromRequest(r *http.Request, behindProxy bool) string {
	if behindProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			return strings.TrimSpace(strings.Split(xff, ",")[0])
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
