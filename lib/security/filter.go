package security

import (
	"net/http"

	"github.com/ccontavalli/webauth/lib/identity"
	"github.com/ccontavalli/webauth/lib/logger"
)

// AuthenticationResolver finds the authentication of a request.
//
// It returns nil, with no error, if the request carries no valid session.
type AuthenticationResolver interface {
	Resolve(r *http.Request) (*identity.Authentication, error)
}

// ResolverFunc adapts a function to the AuthenticationResolver interface.
type ResolverFunc func(r *http.Request) (*identity.Authentication, error)

func (rf ResolverFunc) Resolve(r *http.Request) (*identity.Authentication, error) {
	return rf(r)
}

// Filter enforces the policy in front of next.
//
// Every request reaching next has an Authentication in its context: the one
// of its session, or the anonymous one. Requests to non public paths without
// an authenticated session are redirected to the login page.
func (p *Policy) Filter(resolver AuthenticationResolver, log logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth, err := resolver.Resolve(r)
		if err != nil {
			log.Warnf("could not resolve session for %s %s - %s", r.Method, r.URL.Path, err)
		}
		if auth == nil {
			auth = identity.Anonymous()
		}

		if !auth.Authenticated && !p.IsPublic(r.URL.Path) {
			http.Redirect(w, r, p.FormLogin.LoginPage, http.StatusFound)
			return
		}

		next.ServeHTTP(w, r.WithContext(identity.SetAuthentication(r.Context(), auth)))
	})
}
