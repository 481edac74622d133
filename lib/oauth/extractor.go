package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ccontavalli/webauth/lib/identity"
	"github.com/ccontavalli/webauth/lib/khttp/kcookie"
	"github.com/ccontavalli/webauth/lib/logger"
	"github.com/ccontavalli/webauth/lib/session"
	"github.com/ccontavalli/webauth/lib/token"
)

// Extractor is an object capable of extracting and verifying authentication information.
type Extractor struct {
	store         session.Store
	key           []byte
	loginEncoder  *token.TypeEncoder
	now           func() time.Time
	lifetime      time.Duration
	cookieOptions kcookie.Modifiers
	log           logger.Logger

	// String to prepend to the cookie name.
	// This is necessary when multiple instances of the oauth library are used within
	// the same application, or to ensure the uniqueness of the cookie name in a complex app.
	baseCookie string
}

type ExtractorModifier func(*Extractor)

// WithCookiePrefix sets the string prepended to the name of all cookies.
func WithCookiePrefix(prefix string) ExtractorModifier {
	return func(e *Extractor) {
		e.baseCookie = prefix
	}
}

// WithSessionLifetime sets how long sessions last after login.
func WithSessionLifetime(lifetime time.Duration) ExtractorModifier {
	return func(e *Extractor) {
		e.lifetime = lifetime
	}
}

// WithSessionCookieOptions applies the modifiers to the session cookie, eg kcookie.WithSecure(true).
func WithSessionCookieOptions(mods ...kcookie.Modifier) ExtractorModifier {
	return func(e *Extractor) {
		e.cookieOptions = append(e.cookieOptions, mods...)
	}
}

func WithLogger(log logger.Logger) ExtractorModifier {
	return func(e *Extractor) {
		e.log = log
	}
}

// WithClock overrides the time source of tokens, for tests.
func WithClock(now func() time.Time) ExtractorModifier {
	return func(e *Extractor) {
		e.now = now
	}
}

// NewExtractor creates an Extractor keeping sessions in store.
//
// key signs the session cookie, and must be at least 32 bytes long.
func NewExtractor(store session.Store, key []byte, mods ...ExtractorModifier) (*Extractor, error) {
	e := &Extractor{
		store:      store,
		key:        key,
		now:        time.Now,
		lifetime:   30 * time.Minute,
		log:        logger.Nil,
		baseCookie: "webauth",
	}
	for _, m := range mods {
		m(e)
	}

	encoder, err := e.newEncoder("webauth/session", e.lifetime)
	if err != nil {
		return nil, fmt.Errorf("invalid session key - %w", err)
	}
	e.loginEncoder = encoder
	return e, nil
}

func (e *Extractor) newEncoder(issuer string, lifetime time.Duration) (*token.TypeEncoder, error) {
	return token.NewTypeEncoder(e.key, token.WithIssuer(issuer), token.WithLifetime(lifetime), token.WithTimeSource(e.now))
}

// SessionCookieName returns the name of the cookie carrying the session id.
func (e *Extractor) SessionCookieName() string {
	return e.baseCookie + "Session"
}

// sessionID returns the id of the session referenced by the request, if any.
func (e *Extractor) sessionID(r *http.Request) (string, error) {
	cookie, err := r.Cookie(e.SessionCookieName())
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", ErrorNotAuthenticated
		}
		return "", err
	}

	var id string
	if _, err := e.loginEncoder.Decode(context.Background(), []byte(cookie.Value), &id); err != nil {
		return "", fmt.Errorf("session cookie decoding failed - %w", err)
	}
	return id, nil
}

// GetCredentialsFromRequest will parse the session cookie and load the session.
//
// If no cookie is supplied, or the session is gone, ErrorNotAuthenticated is returned.
func (e *Extractor) GetCredentialsFromRequest(r *http.Request) (*session.Session, error) {
	id, err := e.sessionID(r)
	if err != nil {
		return nil, err
	}

	sess, err := e.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrorNotAuthenticated
		}
		return nil, fmt.Errorf("could not load session - %w", err)
	}
	return sess, nil
}

// Resolve returns the authentication of the request, nil if it has no valid session.
func (e *Extractor) Resolve(r *http.Request) (*identity.Authentication, error) {
	sess, err := e.GetCredentialsFromRequest(r)
	if err != nil {
		if errors.Is(err, ErrorNotAuthenticated) {
			return nil, nil
		}
		return nil, err
	}
	return &sess.Authentication, nil
}

// SetCredentialsOnResponse creates a new session for auth, and sends its cookie to the client.
//
// Any session referenced by the request is deleted first, so every login gets a fresh id.
func (e *Extractor) SetCredentialsOnResponse(w http.ResponseWriter, r *http.Request, auth identity.Authentication, co ...kcookie.Modifier) (*session.Session, error) {
	if id, err := e.sessionID(r); err == nil {
		if err := e.store.Delete(r.Context(), id); err != nil {
			e.log.Warnf("could not delete previous session - %s", err)
		}
	}

	sess, err := e.store.Create(r.Context(), auth, e.lifetime)
	if err != nil {
		return nil, fmt.Errorf("could not create session - %w", err)
	}
	value, err := e.loginEncoder.Encode(sess.ID)
	if err != nil {
		return nil, fmt.Errorf("could not encode session cookie - %w", err)
	}

	http.SetCookie(w, e.SessionCookie(string(value), co...))
	return sess, nil
}

// SessionCookie creates an http.Cookie object carrying the signed session id.
func (e *Extractor) SessionCookie(value string, co ...kcookie.Modifier) *http.Cookie {
	cookie := &http.Cookie{
		Name:     e.SessionCookieName(),
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	e.cookieOptions.Apply(cookie)
	return kcookie.Modifiers(co).Apply(cookie)
}

// Logout deletes the session of the request, and expires its cookie.
//
// Logging out a request without a session is not an error.
func (e *Extractor) Logout(w http.ResponseWriter, r *http.Request) error {
	http.SetCookie(w, e.SessionCookie("", kcookie.WithExpired()))

	id, err := e.sessionID(r)
	if err != nil {
		return nil
	}
	if err := e.store.Delete(r.Context(), id); err != nil {
		return fmt.Errorf("could not delete session - %w", err)
	}
	return nil
}
