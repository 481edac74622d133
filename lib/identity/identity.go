// Package identity models who is behind a request.
//
// A request carries at most one Authentication. Its Principal is exactly one
// of three shapes, depending on how the user got there:
//
//   - ClaimsIdentity: logged in through an OAuth2 or OIDC provider, carrying
//     the attributes (claims) returned by the provider.
//   - CredentialsIdentity: logged in with a local username and password.
//   - AnonymousIdentity: not logged in at all.
//
// Consumers switch on the concrete type:
//
//	switch p := auth.Principal.(type) {
//	case *identity.ClaimsIdentity:
//	case *identity.CredentialsIdentity:
//	case *identity.AnonymousIdentity:
//	}
package identity

import (
	"slices"
)

const (
	// AnonymousUser is the text used for the principal of unauthenticated requests.
	AnonymousUser = "anonymousUser"

	AuthorityAnonymous = "ROLE_ANONYMOUS"
	AuthorityOAuth2    = "OAUTH2_USER"
	AuthorityOIDC      = "OIDC_USER"
)

// Principal is the identity behind a request.
//
// The interface is sealed: only the types in this package implement it.
type Principal interface {
	// Name returns the name by which the principal is known.
	Name() string

	kind() string
}

// Claims are the key-value attributes supplied by an identity provider.
type Claims map[string]interface{}

// ClaimsIdentity is a principal authenticated by a federated identity provider.
type ClaimsIdentity struct {
	// Provider is the id of the provider that authenticated the user, eg "github".
	Provider string
	// Subject is the provider unique id of the user.
	Subject string
	// NameAttribute is the claim used as the principal name, eg "login" for github.
	NameAttribute string
	// Claims is the raw mapping returned by the provider.
	Claims Claims
}

func (ci *ClaimsIdentity) Name() string {
	if value, ok := ci.Claims.String(ci.NameAttribute); ok {
		return value
	}
	return ci.Subject
}

func (ci *ClaimsIdentity) kind() string { return "claims" }

// Attribute returns the raw value of a claim, nil if absent.
func (ci *ClaimsIdentity) Attribute(name string) interface{} {
	return ci.Claims[name]
}

// CredentialsIdentity is a principal authenticated with a username and password.
type CredentialsIdentity struct {
	Username string
}

func (ci *CredentialsIdentity) Name() string { return ci.Username }
func (ci *CredentialsIdentity) kind() string { return "credentials" }

// AnonymousIdentity is the marker principal of unauthenticated requests.
type AnonymousIdentity struct {
	Text string
}

func (ai *AnonymousIdentity) Name() string { return ai.Text }
func (ai *AnonymousIdentity) kind() string { return "anonymous" }

// Authentication is the result of authenticating a request.
type Authentication struct {
	Principal     Principal
	Authorities   []string
	Authenticated bool
}

// Anonymous returns the Authentication of a request with no valid session.
func Anonymous() *Authentication {
	return &Authentication{
		Principal:   &AnonymousIdentity{Text: AnonymousUser},
		Authorities: []string{AuthorityAnonymous},
	}
}

// HasAuthority returns true if the authority was granted.
func (a *Authentication) HasAuthority(authority string) bool {
	return a != nil && slices.Contains(a.Authorities, authority)
}

// Name returns the principal name, or the empty string if there is none.
func (a *Authentication) Name() string {
	if a == nil || a.Principal == nil {
		return ""
	}
	return a.Principal.Name()
}

// String returns the value of a claim if it is a string.
func (c Claims) String(name string) (string, bool) {
	value, ok := c[name].(string)
	return value, ok
}

// Merge copies the claims in other that are not already set.
func (c Claims) Merge(other Claims) Claims {
	if c == nil {
		c = Claims{}
	}
	for key, value := range other {
		if _, found := c[key]; !found {
			c[key] = value
		}
	}
	return c
}
