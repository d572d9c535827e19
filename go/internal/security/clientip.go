package security

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the caller's IP. With trustProxy the first X-Forwarded-For entry wins.
// IPv4-mapped IPv6 addresses come back in dotted IPv4 form.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := normalizeIP(strings.TrimSpace(first)); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return normalizeIP(host)
}

func normalizeIP(s string) string {
	ip := net.ParseIP(s)
	if ip == nil {
		return strings.TrimPrefix(s, "::ffff:")
	}
	if v4 := ip.To4(); v4 != nil {
		return v4.String()
	}
	return ip.String()
}
