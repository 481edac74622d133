package oauth

import (
	"context"
	"net/http"

	"github.com/ccontavalli/webauth/lib/identity"
	"github.com/ccontavalli/webauth/lib/khttp"
	"github.com/ccontavalli/webauth/lib/logger"
)

// GetAuthentication returns the authentication of the user from the context.
// Returns nil if the context has no authentication.
func GetAuthentication(ctx context.Context) *identity.Authentication {
	return identity.GetAuthentication(ctx)
}

// SetAuthentication returns a context with the authentication of the user added.
// Use GetAuthentication to retrieve it later.
func SetAuthentication(ctx context.Context, auth *identity.Authentication) context.Context {
	return identity.SetAuthentication(ctx, auth)
}

// AuthenticatedHandler is an http handler receiving the authentication of the user.
type AuthenticatedHandler func(w http.ResponseWriter, r *http.Request, auth *identity.Authentication)

// WithAuthentication invokes the handler with the authentication stored in the context.
//
// Requests with no authentication in the context are handled as anonymous.
func WithAuthentication(handler AuthenticatedHandler) khttp.FuncHandler {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := GetAuthentication(r.Context())
		if auth == nil {
			auth = identity.Anonymous()
		}
		handler(w, r, auth)
	}
}

// WithCredentials invokes the handler with the authentication of the session in the context.
//
// Use it on handlers not behind a security.Policy filter.
func WithCredentials(a IAuthenticator, handler khttp.FuncHandler) khttp.FuncHandler {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := a.GetCredentialsFromRequest(r)
		if sess != nil && err == nil {
			r = r.WithContext(SetAuthentication(r.Context(), &sess.Authentication))
		}
		handler(w, r)
	}
}

// Observer is notified with the outcome of each login attempt.
type Observer func(r *http.Request, data AuthData, err error)

// LoginHandler creates and returns a LoginHandler.
//
// If the login cannot be started, the user is sent to failure.
func LoginHandler(a IAuthenticator, log logger.Logger, failure string, lm ...LoginModifier) khttp.FuncHandler {
	return func(w http.ResponseWriter, r *http.Request) {
		err := a.PerformLogin(w, r, lm...)
		if err != nil {
			log.Errorf("could not start login - %s", err)
			http.Redirect(w, r, failure, http.StatusFound)
		}
	}
}

// AuthHandler returns the http handler to be invoked at the end of the login process.
//
// Users are sent to success once logged in, to failure otherwise. Errors
// are logged, never shown.
func AuthHandler(a IAuthenticator, log logger.Logger, success, failure string, observers ...Observer) khttp.FuncHandler {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := a.PerformAuth(w, r)
		for _, observer := range observers {
			observer(r, data, err)
		}

		if err != nil || !data.Complete() {
			log.Warnf("%s - could not complete authentication - %s", khttp.ClientOrigin(r), err)
			http.Redirect(w, r, failure, http.StatusFound)
			return
		}
		log.Infof("%s - user %s logged in", khttp.ClientOrigin(r), data.Authentication.Name())
		http.Redirect(w, r, success, http.StatusFound)
	}
}

// LogoutHandler terminates the session of the user, and sends it to target.
func LogoutHandler(e *Extractor, log logger.Logger, target string, observers ...Observer) khttp.FuncHandler {
	return func(w http.ResponseWriter, r *http.Request) {
		err := e.Logout(w, r)
		if err != nil {
			log.Warnf("%s - logout - %s", khttp.ClientOrigin(r), err)
		}
		for _, observer := range observers {
			observer(r, AuthData{}, err)
		}
		http.Redirect(w, r, target, http.StatusFound)
	}
}
