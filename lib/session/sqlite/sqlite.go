// Session store backed by SQLite.
//
// Suitable when sessions must survive restarts and be inspected with
// standard tools. Expired rows are deleted when looked up, or by Purge.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ccontavalli/webauth/lib/identity"
	"github.com/ccontavalli/webauth/lib/session"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
  id TEXT NOT NULL PRIMARY KEY,
  data BLOB NOT NULL,
  expires INTEGER NOT NULL
);
`

type Store struct {
	db  *sql.DB
	now func() time.Time
}

type options struct {
	dsn string
	now func() time.Time
}

type Modifier func(*options)

// WithDSN specifies the SQLite data source name.
func WithDSN(dsn string) Modifier {
	return func(o *options) {
		o.dsn = dsn
	}
}

// WithPath specifies a filesystem path to the SQLite database.
func WithPath(path string) Modifier {
	return func(o *options) {
		o.dsn = path
	}
}

// WithTimeSource overrides the clock used to expire sessions.
func WithTimeSource(now func() time.Time) Modifier {
	return func(o *options) {
		o.now = now
	}
}

// New opens a SQLite database and ensures the schema is ready.
func New(mods ...Modifier) (*Store, error) {
	opts := options{now: time.Now}
	for _, m := range mods {
		m(&opts)
	}
	if opts.dsn == "" {
		return nil, fmt.Errorf("sqlite dsn is required")
	}

	db, err := sql.Open("sqlite", opts.dsn)
	if err != nil {
		return nil, err
	}
	// SQLite uses a single-writer model.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, now: opts.now}, nil
}

// Close releases the underlying database resources.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Create(ctx context.Context, auth identity.Authentication, lifetime time.Duration) (*session.Session, error) {
	created := session.New(auth, s.now(), lifetime)
	data, err := json.Marshal(created)
	if err != nil {
		return nil, err
	}
	var expires int64
	if !created.Expires.IsZero() {
		expires = created.Expires.UnixNano()
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO sessions (id, data, expires) VALUES (?, ?, ?)`, created.ID, data, expires)
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Store) Get(ctx context.Context, id string) (*session.Session, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM sessions WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var loaded session.Session
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("corrupted session %s - %w", id, err)
	}
	if loaded.Expired(s.now()) {
		if err := s.Delete(ctx, id); err != nil {
			return nil, err
		}
		return nil, session.ErrNotFound
	}
	return &loaded, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

// Purge deletes all expired sessions, returning how many were removed.
func (s *Store) Purge(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires != 0 AND expires <= ?`, s.now().UnixNano())
	if err != nil {
		return 0, err
	}
	removed, err := result.RowsAffected()
	return int(removed), err
}
