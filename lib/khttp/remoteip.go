package khttp

import (
	"net"
	"net/http"
	"strings"
)

// RemoteIP returns the IP address of the client that sent r.
//
// This is the first field of apache style request logs. Behind a proxy, the
// first valid address in X-Forwarded-For is used, then X-Real-IP. Entries
// that do not parse as an IP, like "unknown", are ignored.
func RemoteIP(r *http.Request) string {
	for _, candidate := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if ip := net.ParseIP(strings.TrimSpace(candidate)); ip != nil {
			return ip.String()
		}
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
