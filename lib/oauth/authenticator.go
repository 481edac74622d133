package oauth

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/ccontavalli/webauth/lib/identity"
	"github.com/ccontavalli/webauth/lib/khttp"
	"github.com/ccontavalli/webauth/lib/khttp/kcookie"
	"github.com/ccontavalli/webauth/lib/logger"
	"github.com/ccontavalli/webauth/lib/token"
	"golang.org/x/oauth2"
)

// Authenticator performs the oauth2 authorization code flow with one provider.
type Authenticator struct {
	*Extractor

	provider    *Provider
	rng         io.Reader
	log         logger.Logger
	authEncoder *token.TypeEncoder
	callback    string

	conf      oauth2.Config
	verifiers []Verifier
}

type Options struct {
	rng      io.Reader
	log      logger.Logger
	callback string
	timeout  time.Duration
}

type Modifier func(*Options)

// WithRng sets the source of the login secrets.
func WithRng(rng io.Reader) Modifier {
	return func(o *Options) {
		o.rng = rng
	}
}

func WithAuthLogger(log logger.Logger) Modifier {
	return func(o *Options) {
		o.log = log
	}
}

// WithCallbackPrefix sets the path prefix of the redirect URL, the provider id is appended.
func WithCallbackPrefix(prefix string) Modifier {
	return func(o *Options) {
		o.callback = prefix
	}
}

// WithLoginTimeout sets how long users have to complete login with the provider.
func WithLoginTimeout(timeout time.Duration) Modifier {
	return func(o *Options) {
		o.timeout = timeout
	}
}

// NewAuthenticator creates an Authenticator for provider, storing sessions through extractor.
func NewAuthenticator(extractor *Extractor, provider *Provider, mods ...Modifier) (*Authenticator, error) {
	options := &Options{
		rng:      rand.Reader,
		log:      extractor.log,
		callback: "/oauth2/code/",
		timeout:  10 * time.Minute,
	}
	for _, m := range mods {
		m(options)
	}

	authEncoder, err := extractor.newEncoder("webauth/login/"+provider.ID, options.timeout)
	if err != nil {
		return nil, err
	}

	a := &Authenticator{
		Extractor:   extractor,
		provider:    provider,
		rng:         options.rng,
		log:         options.log,
		authEncoder: authEncoder,
		callback:    options.callback + provider.ID,
		conf:        provider.Config,
	}
	a.conf.Scopes = append([]string{}, provider.Config.Scopes...)

	for ix, factory := range provider.Verifiers {
		verifier, err := factory(&a.conf)
		if err != nil {
			return nil, fmt.Errorf("provider %s: verifier#%d - %w", provider.ID, ix, err)
		}
		for _, scope := range verifier.Scopes() {
			if !slices.Contains(a.conf.Scopes, scope) {
				a.conf.Scopes = append(a.conf.Scopes, scope)
			}
		}
		a.verifiers = append(a.verifiers, verifier)
	}
	return a, nil
}

// Provider returns the provider this Authenticator logs users in with.
func (a *Authenticator) Provider() *Provider {
	return a.provider
}

// AuthCookieName returns the name of the cookie holding the login secret.
func (a *Authenticator) AuthCookieName() string {
	return a.baseCookie + "Auth"
}

// config returns the oauth2 configuration to use for r.
//
// When no RedirectURL is configured, it points back to the host the request was sent to.
func (a *Authenticator) config(r *http.Request) *oauth2.Config {
	conf := a.conf
	if conf.RedirectURL == "" {
		rurl := khttp.RequestURL(r)
		rurl.Path = a.callback
		rurl.RawQuery = ""
		rurl.Fragment = ""
		conf.RedirectURL = rurl.String()
	}
	return &conf
}

// LoginURL computes the URL the user is redirected to to perform login.
//
// After the user authenticates, it is redirected back to the callback URL,
// which verifies the credentials, and creates the session.
//
// Returns: the url to use, a secure token, and nil or an error, in order.
func (a *Authenticator) LoginURL(r *http.Request, target string) (string, []byte, error) {
	secret := make([]byte, 16)
	if _, err := io.ReadFull(a.rng, secret); err != nil {
		return "", nil, err
	}
	esecret, err := a.authEncoder.Encode(LoginState{Secret: secret, Target: target})
	if err != nil {
		return "", nil, err
	}
	return a.config(r).AuthCodeURL(string(esecret)), secret, nil
}

// AuthCookie returns the cookie tracking a login in progress.
//
// The options of the session cookie apply to it too, followed by co.
func (a *Authenticator) AuthCookie(value string, co ...kcookie.Modifier) *http.Cookie {
	cookie := &http.Cookie{
		Name:     a.AuthCookieName(),
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	a.cookieOptions.Apply(cookie)
	return kcookie.Modifiers(co).Apply(cookie)
}

// PerformLogin writes the response to the request to actually perform the login.
func (a *Authenticator) PerformLogin(w http.ResponseWriter, r *http.Request, lm ...LoginModifier) error {
	options := LoginModifiers(lm).Apply(&LoginOptions{})
	url, secret, err := a.LoginURL(r, options.Target)
	if err != nil {
		return err
	}

	authcookie, err := a.authEncoder.Encode(secret)
	if err != nil {
		return err
	}

	http.SetCookie(w, a.AuthCookie(string(authcookie), options.CookieOptions...))

	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
	return nil
}

// ExtractAuth verifies the callback request, and returns the identity of the user.
func (a *Authenticator) ExtractAuth(w http.ResponseWriter, r *http.Request) (*identity.Authentication, *LoginState, error) {
	query := r.URL.Query()
	if perr := query.Get("error"); perr != "" {
		return nil, nil, fmt.Errorf("%w: %s %s", ErrorProviderDenied, perr, query.Get("error_description"))
	}

	cookie, err := r.Cookie(a.AuthCookieName())
	if err != nil || cookie == nil {
		return nil, nil, ErrorNotAuthenticated
	}
	http.SetCookie(w, a.AuthCookie("", kcookie.WithExpired()))

	var secretExpected []byte
	if _, err := a.authEncoder.Decode(context.Background(), []byte(cookie.Value), &secretExpected); err != nil {
		return nil, nil, fmt.Errorf("cookie decoding failed - %w", err)
	}

	var received LoginState
	if _, err := a.authEncoder.Decode(context.Background(), []byte(query.Get("state")), &received); err != nil {
		return nil, nil, fmt.Errorf("state decoding failed - %w", err)
	}
	if !bytes.Equal(secretExpected, received.Secret) {
		return nil, nil, ErrorStateMismatch
	}

	code := query.Get("code")
	if code == "" {
		return nil, nil, fmt.Errorf("no authorization code in callback - %w", ErrorCannotAuthenticate)
	}

	conf := a.config(r)
	tok, err := conf.Exchange(r.Context(), code)
	if err != nil {
		return nil, nil, fmt.Errorf("could not retrieve token - %w", err)
	}
	if !tok.Valid() {
		return nil, nil, fmt.Errorf("invalid token retrieved")
	}

	claims := identity.Claims{}
	for _, verifier := range a.verifiers {
		claims, err = verifier.Verify(r.Context(), a.log, claims, tok)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid token - %w", err)
		}
	}
	if len(claims) == 0 {
		return nil, nil, ErrorCannotAuthenticate
	}

	subject := ""
	if value, found := claims[a.provider.SubjectAttribute]; found && value != nil {
		subject = fmt.Sprint(value)
	}

	auth := &identity.Authentication{
		Principal: &identity.ClaimsIdentity{
			Provider:      a.provider.ID,
			Subject:       subject,
			NameAttribute: a.provider.NameAttribute,
			Claims:        claims,
		},
		Authorities:   a.authorities(tok),
		Authenticated: true,
	}
	return auth, &received, nil
}

// authorities returns the authorities of a user logged in with tok.
func (a *Authenticator) authorities(tok *oauth2.Token) []string {
	authorities := []string{identity.AuthorityOAuth2}
	if a.provider.OIDC() {
		authorities = []string{identity.AuthorityOIDC}
	}

	scopes := a.conf.Scopes
	if granted, ok := tok.Extra("scope").(string); ok && granted != "" {
		scopes = strings.FieldsFunc(granted, func(r rune) bool { return r == ' ' || r == ',' })
	}
	for _, scope := range scopes {
		authorities = append(authorities, "SCOPE_"+scope)
	}
	return authorities
}

// PerformAuth implements the logic to handle an oauth request from an oauth provider.
func (a *Authenticator) PerformAuth(w http.ResponseWriter, r *http.Request, co ...kcookie.Modifier) (AuthData, error) {
	auth, state, err := a.ExtractAuth(w, r)
	if err != nil {
		return AuthData{}, err
	}

	sess, err := a.SetCredentialsOnResponse(w, r, *auth, co...)
	if err != nil {
		return AuthData{}, err
	}
	return AuthData{Authentication: auth, Session: sess, Target: state.Target}, nil
}
