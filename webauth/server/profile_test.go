package server

import (
	"encoding/json"
	"testing"

	"github.com/ccontavalli/webauth/lib/identity"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestBuildProfileClaims(t *testing.T) {
	auth := &identity.Authentication{
		Principal: &identity.ClaimsIdentity{
			Provider:      "google",
			Subject:       "1234",
			NameAttribute: "sub",
			Claims:        identity.Claims{"name": "Alice", "email": "a@x.com", "given_name": nil, "age": json.Number("42")},
		},
		Authorities:   []string{identity.AuthorityOIDC},
		Authenticated: true,
	}

	profile := BuildProfile(auth)
	assert.Equal(t, "Alice", *profile.Name)
	assert.Equal(t, "a@x.com", *profile.Email)
	assert.Nil(t, profile.Login)
	assert.Nil(t, profile.GivenName)
	assert.Nil(t, profile.FamilyName)
	assert.True(t, profile.IsAuthenticated)
	assert.Equal(t, []string{identity.AuthorityOIDC}, profile.Authorities)
	assert.Equal(t, json.Number("42"), profile.Attributes["age"])
	assert.Same(t, auth.Principal, profile.Principal)
}

func TestBuildProfileNonStringClaims(t *testing.T) {
	auth := &identity.Authentication{
		Principal: &identity.ClaimsIdentity{Claims: identity.Claims{"login": 42.0, "name": true}},
	}
	profile := BuildProfile(auth)
	assert.Equal(t, "42", *profile.Login)
	assert.Equal(t, "true", *profile.Name)
}

func TestBuildProfileCredentials(t *testing.T) {
	profile := BuildProfile(&identity.Authentication{
		Principal:     &identity.CredentialsIdentity{Username: "bob"},
		Authorities:   []string{"ROLE_USER"},
		Authenticated: true,
	})
	assert.Equal(t, "bob", *profile.Name)
	assert.Equal(t, "bob", *profile.Login)
	assert.Nil(t, profile.Email)
	assert.Nil(t, profile.Attributes)
	assert.True(t, profile.IsAuthenticated)
	assert.Equal(t, []string{"ROLE_USER"}, profile.Authorities)

	// Name and Login do not alias.
	*profile.Name = "changed"
	assert.Equal(t, "bob", *profile.Login)
}

func TestBuildProfileAnonymous(t *testing.T) {
	name := identity.AnonymousUser
	expected := Profile{
		Name:        &name,
		Login:       &name,
		Authorities: []string{identity.AuthorityAnonymous},
		Principal:   &identity.AnonymousIdentity{Text: identity.AnonymousUser},
	}
	if diff := cmp.Diff(expected, BuildProfile(identity.Anonymous())); diff != "" {
		t.Errorf("anonymous profile mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildProfileNil(t *testing.T) {
	assert.Equal(t, Profile{}, BuildProfile(nil))
}
