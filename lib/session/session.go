// Package session keeps the server side state of logged in users.
//
// A Session maps a random id, stored in a browser cookie, to the
// Authentication of the user. Deleting the session invalidates the cookie,
// even if the client keeps sending it.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/ccontavalli/webauth/lib/identity"
	"github.com/ccontavalli/webauth/lib/logger"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a session does not exist, or has expired.
var ErrNotFound = errors.New("session not found")

type Session struct {
	ID             string                  `json:"id"`
	Authentication identity.Authentication `json:"authentication"`
	Created        time.Time               `json:"created"`
	Expires        time.Time               `json:"expires"`
}

// Expired returns true if the session is no longer valid at time now.
func (s *Session) Expired(now time.Time) bool {
	return !s.Expires.IsZero() && !now.Before(s.Expires)
}

// Store persists sessions.
type Store interface {
	// Create stores a new session for auth, valid for lifetime.
	Create(ctx context.Context, auth identity.Authentication, lifetime time.Duration) (*Session, error)
	// Get returns the session with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)
	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error
	// Close releases resources held by the store.
	Close() error
}

// New returns a new, not yet stored, session.
func New(auth identity.Authentication, now time.Time, lifetime time.Duration) *Session {
	s := &Session{
		ID:             uuid.NewString(),
		Authentication: auth,
		Created:        now,
	}
	if lifetime > 0 {
		s.Expires = now.Add(lifetime)
	}
	return s
}

// Purger is implemented by stores able to drop all their expired sessions.
type Purger interface {
	// Purge removes expired sessions, returning how many were removed.
	Purge(ctx context.Context) (int, error)
}

// PurgeEvery calls Purge on store every interval, until ctx is canceled.
//
// It returns immediately if the store is not a Purger or interval is not positive.
func PurgeEvery(ctx context.Context, store Store, interval time.Duration, log logger.Logger) {
	purger, ok := store.(Purger)
	if !ok || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		removed, err := purger.Purge(ctx)
		if err != nil {
			log.Warnf("purging expired sessions failed - %s", err)
			continue
		}
		if removed > 0 {
			log.Debugf("purged %d expired sessions", removed)
		}
	}
}
