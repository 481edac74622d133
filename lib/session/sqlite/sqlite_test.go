package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/ccontavalli/webauth/lib/session/stest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore(t *testing.T) {
	clock := stest.NewClock()
	store, err := New(WithPath(filepath.Join(t.TempDir(), "sessions.db")), WithTimeSource(clock.Time))
	require.NoError(t, err)
	defer store.Close()

	stest.TestStore(t, store, clock.Advance)
}

func TestSQLitePurge(t *testing.T) {
	clock := stest.NewClock()
	store, err := New(WithPath(filepath.Join(t.TempDir(), "sessions.db")), WithTimeSource(clock.Time))
	require.NoError(t, err)
	defer store.Close()

	stest.TestPurge(t, store, clock.Advance)
}

func TestSQLiteRequiresDSN(t *testing.T) {
	_, err := New()
	assert.ErrorContains(t, err, "dsn is required")
}
