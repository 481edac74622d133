package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/ccontavalli/webauth/lib/identity"
	"github.com/ccontavalli/webauth/lib/logger"
	"github.com/ccontavalli/webauth/lib/session"
	"github.com/ccontavalli/webauth/lib/session/stest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMemoryStore(t *testing.T) {
	clock := stest.NewClock()
	stest.TestStore(t, session.NewMemoryWithClock(clock.Time), clock.Advance)
}

func TestMemoryPurge(t *testing.T) {
	clock := stest.NewClock()
	stest.TestPurge(t, session.NewMemoryWithClock(clock.Time), clock.Advance)
}

func TestPurgeEvery(t *testing.T) {
	clock := stest.NewClock()
	store := session.NewMemoryWithClock(clock.Time)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := store.Create(ctx, *identity.Anonymous(), time.Minute)
	require.NoError(t, err)
	clock.Advance(time.Hour)
	require.Equal(t, 1, store.Len())

	done := make(chan struct{})
	go func() {
		session.PurgeEvery(ctx, store, time.Millisecond, logger.Nil)
		close(done)
	}()
	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	// Stores that cannot purge, or a disabled interval, return right away.
	session.PurgeEvery(context.Background(), store, 0, logger.Nil)
}
