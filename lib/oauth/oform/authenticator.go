package oform

import (
	"fmt"
	"net/http"

	"github.com/ccontavalli/webauth/lib/identity"
	"github.com/ccontavalli/webauth/lib/khttp/kcookie"
	"github.com/ccontavalli/webauth/lib/oauth"
)

// Authenticator implements the full IAuthenticator interface for username and password login.
type Authenticator struct {
	*oauth.Extractor

	directory UserDirectory
	loginPage string
}

type Modifier func(*Authenticator)

// WithLoginPage sets the page showing the login form.
func WithLoginPage(page string) Modifier {
	return func(a *Authenticator) {
		a.loginPage = page
	}
}

func NewAuthenticator(extractor *oauth.Extractor, directory UserDirectory, mods ...Modifier) *Authenticator {
	a := &Authenticator{Extractor: extractor, directory: directory, loginPage: "/login"}
	for _, m := range mods {
		m(a)
	}
	return a
}

// PerformLogin sends the user to the login form.
func (a *Authenticator) PerformLogin(w http.ResponseWriter, r *http.Request, lm ...oauth.LoginModifier) error {
	http.Redirect(w, r, a.loginPage, http.StatusFound)
	return nil
}

// PerformAuth verifies the username and password posted, and creates a session.
func (a *Authenticator) PerformAuth(w http.ResponseWriter, r *http.Request, co ...kcookie.Modifier) (oauth.AuthData, error) {
	if r.Method != http.MethodPost {
		return oauth.AuthData{}, fmt.Errorf("credentials must be sent with POST, got %s", r.Method)
	}
	if err := r.ParseForm(); err != nil {
		return oauth.AuthData{}, fmt.Errorf("invalid login form - %w", err)
	}

	username := r.PostForm.Get("username")
	if username == "" {
		return oauth.AuthData{}, ErrorInvalidCredentials
	}
	user, err := a.directory.Authenticate(username, r.PostForm.Get("password"))
	if err != nil {
		return oauth.AuthData{}, fmt.Errorf("user %q - %w", username, err)
	}

	auth := identity.Authentication{
		Principal:     &identity.CredentialsIdentity{Username: user.Name},
		Authorities:   user.Authorities(),
		Authenticated: true,
	}
	sess, err := a.SetCredentialsOnResponse(w, r, auth, co...)
	if err != nil {
		return oauth.AuthData{}, err
	}
	return oauth.AuthData{Authentication: &auth, Session: sess}, nil
}
