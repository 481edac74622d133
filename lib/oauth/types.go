package oauth

import (
	"errors"
	"net/http"

	"github.com/ccontavalli/webauth/lib/identity"
	"github.com/ccontavalli/webauth/lib/khttp/kcookie"
	"github.com/ccontavalli/webauth/lib/session"
)

var (
	// ErrorNotAuthenticated means the request carries no credentials at all.
	ErrorNotAuthenticated = errors.New("no authentication information found")
	// ErrorStateMismatch means the oauth state does not match the secret in the auth cookie.
	ErrorStateMismatch = errors.New("oauth state does not match the login cookie")
	// ErrorProviderDenied means the provider returned an error instead of a code.
	ErrorProviderDenied = errors.New("identity provider denied the login")
	// ErrorCannotAuthenticate means the provider returned no usable identity.
	ErrorCannotAuthenticate = errors.New("authentication succeeded with no credentials")
)

// An IAuthenticator is any object capable of performing authentication for a web server.
type IAuthenticator interface {
	// PerformLogin initiates the login process.
	//
	// For federated login, PerformLogin redirects the user to the IdP login
	// page, after generating signed cookies containing enough information to
	// verify success at the end of the process.
	//
	// PerformLogin will initiate the process even if the user is already logged in.
	PerformLogin(w http.ResponseWriter, r *http.Request, lm ...LoginModifier) error

	// PerformAuth turns the credentials received into AuthData (and a session cookie).
	//
	// PerformAuth is invoked at the END of the authentication process.
	//
	// If no error is returned, AuthData is complete: a session has been
	// created, and its cookie set on the response.
	//
	// If the error returned is ErrorNotAuthenticated, it means that
	// authentication data was not found at all, meaning that a Login process
	// probably needs to be started.
	PerformAuth(w http.ResponseWriter, r *http.Request, mods ...kcookie.Modifier) (AuthData, error)

	// GetCredentialsFromRequest returns the session of an http request.
	//
	// If no session cookie is found, or the session no longer exists,
	// ErrorNotAuthenticated is returned.
	GetCredentialsFromRequest(r *http.Request) (*session.Session, error)
}

// AuthData is the result of a successful PerformAuth.
type AuthData struct {
	Authentication *identity.Authentication
	Session        *session.Session
	// Target is the URL requested with WithTarget when the login started, if any.
	Target string
}

// Complete returns true if the AuthData carries an authenticated user.
func (a AuthData) Complete() bool {
	return a.Authentication != nil && a.Authentication.Authenticated && a.Session != nil
}

// LoginState is carried through the provider as the oauth2 state parameter.
type LoginState struct {
	Secret []byte
	Target string
}

type LoginOptions struct {
	CookieOptions kcookie.Modifiers
	Target        string
}

type LoginModifier func(*LoginOptions)

type LoginModifiers []LoginModifier

func (lm LoginModifiers) Apply(o *LoginOptions) *LoginOptions {
	for _, m := range lm {
		m(o)
	}
	return o
}

// WithTarget sets the URL the login process should return to.
func WithTarget(target string) LoginModifier {
	return func(o *LoginOptions) {
		o.Target = target
	}
}

// WithCookieOptions applies the modifiers to the cookies set during login.
func WithCookieOptions(mod ...kcookie.Modifier) LoginModifier {
	return func(o *LoginOptions) {
		o.CookieOptions = append(o.CookieOptions, mod...)
	}
}
