// Package otesting provides helpers to assume authenticated users in tests
// and local development without real session cookies.
//
// Example:
//
//	auth := otesting.AssumedCredentials("bob", "ROLE_USER")
//	handler := policy.Filter(otesting.Resolver(auth), log, mux)
package otesting

import (
	"net/http"
	"strings"

	"github.com/ccontavalli/webauth/lib/identity"
	"github.com/ccontavalli/webauth/lib/security"
)

// AssumedCredentials returns the authentication of a form login user, used for local testing.
func AssumedCredentials(user string, authorities ...string) *identity.Authentication {
	return &identity.Authentication{
		Principal:     &identity.CredentialsIdentity{Username: strings.TrimSpace(user)},
		Authorities:   authorities,
		Authenticated: true,
	}
}

// AssumedClaims returns the authentication of a user logged in with provider.
//
// The "sub" claim, if present, is used as subject and name attribute.
func AssumedClaims(provider string, claims identity.Claims) *identity.Authentication {
	subject, _ := claims.String("sub")
	return &identity.Authentication{
		Principal: &identity.ClaimsIdentity{
			Provider:      provider,
			Subject:       subject,
			NameAttribute: "sub",
			Claims:        claims,
		},
		Authorities:   []string{identity.AuthorityOAuth2},
		Authenticated: true,
	}
}

// Resolver returns a resolver assigning auth to every request.
func Resolver(auth *identity.Authentication) security.AuthenticationResolver {
	return security.ResolverFunc(func(r *http.Request) (*identity.Authentication, error) {
		return auth, nil
	})
}

// AssumeAuth injects auth in the context of all the requests to handler.
func AssumeAuth(auth *identity.Authentication, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r.WithContext(identity.SetAuthentication(r.Context(), auth)))
	})
}
