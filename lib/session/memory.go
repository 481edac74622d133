package session

import (
	"context"
	"sync"
	"time"

	"github.com/ccontavalli/webauth/lib/identity"
)

// Memory is a Store keeping sessions in process memory.
//
// Sessions are lost on restart. Expired sessions are removed when looked up,
// or by Purge.
type Memory struct {
	lock     sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewMemory() *Memory {
	return NewMemoryWithClock(time.Now)
}

func NewMemoryWithClock(now func() time.Time) *Memory {
	return &Memory{sessions: map[string]*Session{}, now: now}
}

func (m *Memory) Create(ctx context.Context, auth identity.Authentication, lifetime time.Duration) (*Session, error) {
	s := New(auth, m.now(), lifetime)

	m.lock.Lock()
	defer m.lock.Unlock()
	m.sessions[s.ID] = s

	copied := *s
	return &copied, nil
}

func (m *Memory) Get(ctx context.Context, id string) (*Session, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	s, found := m.sessions[id]
	if !found {
		return nil, ErrNotFound
	}
	if s.Expired(m.now()) {
		delete(m.sessions, id)
		return nil, ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.sessions, id)
	return nil
}

// Purge removes all expired sessions, returning how many were removed.
func (m *Memory) Purge(ctx context.Context) (int, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	now := m.now()
	removed := 0
	for id, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of sessions held, including expired ones not purged yet.
func (m *Memory) Len() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return len(m.sessions)
}

func (m *Memory) Close() error {
	return nil
}
