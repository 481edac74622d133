// Package kcookie provides modifiers to tune http.Cookie objects.
package kcookie

import (
	"net/http"
	"time"
)

type Modifier func(*http.Cookie)

type Modifiers []Modifier

// Apply applies all modifiers to the cookie, and returns it.
func (mods Modifiers) Apply(cookie *http.Cookie) *http.Cookie {
	for _, m := range mods {
		m(cookie)
	}
	return cookie
}

func WithPath(path string) Modifier {
	return func(c *http.Cookie) {
		c.Path = path
	}
}

func WithDomain(domain string) Modifier {
	return func(c *http.Cookie) {
		c.Domain = domain
	}
}

func WithSecure(secure bool) Modifier {
	return func(c *http.Cookie) {
		c.Secure = secure
	}
}

func WithSameSite(mode http.SameSite) Modifier {
	return func(c *http.Cookie) {
		c.SameSite = mode
	}
}

// WithMaxAge sets both MaxAge and Expires, for older clients.
func WithMaxAge(age time.Duration) Modifier {
	return func(c *http.Cookie) {
		c.MaxAge = int(age.Seconds())
		c.Expires = time.Now().Add(age)
	}
}

// WithExpired turns the cookie into an instruction for the browser to delete it.
func WithExpired() Modifier {
	return func(c *http.Cookie) {
		c.Value = ""
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
	}
}
