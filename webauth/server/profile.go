package server

import (
	"fmt"

	"github.com/ccontavalli/webauth/lib/identity"
)

// Profile is what the home page shows about the user.
//
// Values the principal does not carry are nil.
type Profile struct {
	Name       *string
	Login      *string
	Email      *string
	GivenName  *string
	FamilyName *string

	IsAuthenticated bool
	Authorities     []string
	// Attributes are the raw claims of federated logins, nil otherwise.
	Attributes map[string]interface{}
	Principal  identity.Principal
}

// BuildProfile maps an authentication to a Profile.
func BuildProfile(auth *identity.Authentication) Profile {
	var profile Profile
	if auth == nil {
		return profile
	}

	switch principal := auth.Principal.(type) {
	case *identity.ClaimsIdentity:
		profile.Name = claim(principal.Claims, "name")
		profile.Email = claim(principal.Claims, "email")
		profile.Login = claim(principal.Claims, "login")
		profile.GivenName = claim(principal.Claims, "given_name")
		profile.FamilyName = claim(principal.Claims, "family_name")
		profile.Attributes = principal.Claims
	case *identity.CredentialsIdentity:
		profile.Name = stringp(principal.Username)
		profile.Login = stringp(principal.Username)
	case *identity.AnonymousIdentity:
		profile.Name = stringp(principal.Text)
		profile.Login = stringp(principal.Text)
	}

	profile.Principal = auth.Principal
	profile.IsAuthenticated = auth.Authenticated
	profile.Authorities = auth.Authorities
	return profile
}

func stringp(value string) *string {
	return &value
}

// claim returns a claim as a string, nil if absent or null.
func claim(claims identity.Claims, name string) *string {
	value, found := claims[name]
	if !found || value == nil {
		return nil
	}
	if text, ok := value.(string); ok {
		return &text
	}
	return stringp(fmt.Sprint(value))
}
