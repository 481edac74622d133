// Package khttp collects small helpers for net/http servers.
package khttp

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// FuncHandler is the signature of an http handler function.
type FuncHandler func(w http.ResponseWriter, r *http.Request)

// RequestURL reconstructs the URL the client used to reach the server.
func RequestURL(r *http.Request) *url.URL {
	u := *r.URL
	u.Host = r.Host
	u.Scheme = "http"
	if r.TLS != nil {
		u.Scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		u.Scheme = proto
	}
	return &u
}

// ClientOrigin returns a string identifying the origin of a request, for logs.
//
// It includes the direct remote address and any proxy header present.
func ClientOrigin(r *http.Request) string {
	var parts []string
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts = append(parts, fmt.Sprintf("x-forwarded-for: %q", fwd))
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		parts = append(parts, fmt.Sprintf("x-real-ip: %q", realIP))
	}
	if len(parts) == 0 {
		return r.RemoteAddr
	}
	return fmt.Sprintf("%s (%s)", r.RemoteAddr, strings.Join(parts, ", "))
}
