// Package stest verifies that a session.Store implementation honors the contract.
package stest

import (
	"context"
	"testing"
	"time"

	"github.com/ccontavalli/webauth/lib/identity"
	"github.com/ccontavalli/webauth/lib/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStore runs the common checks against store.
//
// advance must move the clock used by the store forward.
func TestStore(t *testing.T, store session.Store, advance func(time.Duration)) {
	ctx := context.Background()

	auth := identity.Authentication{
		Principal:     &identity.ClaimsIdentity{Provider: "github", Subject: "1", NameAttribute: "login", Claims: identity.Claims{"login": "octocat", "name": nil}},
		Authorities:   []string{identity.AuthorityOAuth2},
		Authenticated: true,
	}

	created, err := store.Create(ctx, auth, time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	loaded, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, loaded.ID)
	assert.Equal(t, auth, loaded.Authentication)

	other, err := store.Create(ctx, identity.Authentication{Principal: &identity.CredentialsIdentity{Username: "bob"}, Authenticated: true}, time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, created.ID, other.ID, "each login must get a fresh session id")

	_, err = store.Get(ctx, "does-not-exist")
	assert.ErrorIs(t, err, session.ErrNotFound)

	require.NoError(t, store.Delete(ctx, created.ID))
	_, err = store.Get(ctx, created.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.NoError(t, store.Delete(ctx, created.ID), "deleting twice is not an error")

	loaded, err = store.Get(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", loaded.Authentication.Name())

	advance(2 * time.Hour)
	_, err = store.Get(ctx, other.ID)
	assert.ErrorIs(t, err, session.ErrNotFound, "expired sessions must not be returned")
}

// PurgeableStore is a session.Store that can drop expired sessions.
type PurgeableStore interface {
	session.Store
	session.Purger
}

// TestPurge checks that Purge removes expired sessions only.
//
// store must be empty.
func TestPurge(t *testing.T, store PurgeableStore, advance func(time.Duration)) {
	ctx := context.Background()
	auth := identity.Authentication{Principal: &identity.CredentialsIdentity{Username: "bob"}, Authenticated: true}

	short, err := store.Create(ctx, auth, time.Minute)
	require.NoError(t, err)
	long, err := store.Create(ctx, auth, time.Hour)
	require.NoError(t, err)
	forever, err := store.Create(ctx, auth, 0)
	require.NoError(t, err)

	advance(10 * time.Minute)
	removed, err := store.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	removed, err = store.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	_, err = store.Get(ctx, short.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
	for _, id := range []string{long.ID, forever.ID} {
		_, err = store.Get(ctx, id)
		assert.NoError(t, err)
	}
}

// Clock is a manually advanced time source.
type Clock struct {
	Now time.Time
}

func NewClock() *Clock {
	return &Clock{Now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *Clock) Time() time.Time {
	return c.Now
}

func (c *Clock) Advance(d time.Duration) {
	c.Now = c.Now.Add(d)
}
