// Session store backed by bbolt.
//
// bbolt uses JSON encoding for values and is optimized for local, embedded
// use: a single process can open the database at a time.
package bbolt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ccontavalli/webauth/lib/identity"
	"github.com/ccontavalli/webauth/lib/session"
	bolt "go.etcd.io/bbolt"
)

const defaultBucket = "sessions"

type Store struct {
	db     *bolt.DB
	bucket []byte
	now    func() time.Time
}

type options struct {
	path    string
	bucket  string
	timeout time.Duration
	now     func() time.Time
}

type Modifier func(*options) error

// WithPath specifies the filesystem path for the bbolt database.
func WithPath(path string) Modifier {
	return func(o *options) error {
		o.path = path
		return nil
	}
}

// WithBucket stores sessions in a bucket other than "sessions".
func WithBucket(bucket string) Modifier {
	return func(o *options) error {
		if bucket == "" {
			return fmt.Errorf("bbolt bucket name cannot be empty")
		}
		o.bucket = bucket
		return nil
	}
}

// WithTimeout sets the bbolt file lock timeout.
func WithTimeout(timeout time.Duration) Modifier {
	return func(o *options) error {
		o.timeout = timeout
		return nil
	}
}

// WithTimeSource overrides the clock used to expire sessions.
func WithTimeSource(now func() time.Time) Modifier {
	return func(o *options) error {
		o.now = now
		return nil
	}
}

// New opens, or creates, a bbolt database.
func New(mods ...Modifier) (*Store, error) {
	opts := options{bucket: defaultBucket, now: time.Now}
	for _, m := range mods {
		if err := m(&opts); err != nil {
			return nil, err
		}
	}
	if opts.path == "" {
		return nil, fmt.Errorf("bbolt path is required")
	}
	if err := os.MkdirAll(filepath.Dir(opts.path), 0770); err != nil {
		return nil, err
	}
	boltOpts := &bolt.Options{}
	if opts.timeout != 0 {
		boltOpts.Timeout = opts.timeout
	}
	db, err := bolt.Open(opts.path, 0660, boltOpts)
	if err != nil {
		return nil, err
	}

	bucket := []byte(opts.bucket)
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, bucket: bucket, now: opts.now}, nil
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
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(created.ID), data)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Store) Get(ctx context.Context, id string) (*session.Session, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(s.bucket).Get([]byte(id))
		if value == nil {
			return session.ErrNotFound
		}
		data = append([]byte(nil), value...)
		return nil
	})
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
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(id))
	})
}

// Purge deletes all expired sessions, returning how many were removed.
func (s *Store) Purge(ctx context.Context) (int, error) {
	now := s.now()
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(s.bucket).Cursor()
		for key, value := cursor.First(); key != nil; {
			// Sessions that cannot be decoded are dropped as well.
			var loaded session.Session
			if err := json.Unmarshal(value, &loaded); err == nil && !loaded.Expired(now) {
				key, value = cursor.Next()
				continue
			}
			deleted := append([]byte(nil), key...)
			if err := cursor.Delete(); err != nil {
				return err
			}
			removed++
			key, value = cursor.Seek(deleted)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
