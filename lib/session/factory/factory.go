// Package factory creates a session.Store based on configuration flags.
//
// Example usage:
//
//	flags := factory.DefaultFlags().Register(flagSet, "")
//	...
//	store, err := factory.New(factory.FromFlags(flags))
package factory

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/ccontavalli/webauth/lib/kflags"
	"github.com/ccontavalli/webauth/lib/session"
	"github.com/ccontavalli/webauth/lib/session/bbolt"
	"github.com/ccontavalli/webauth/lib/session/sqlite"
	"github.com/kirsle/configdir"
)

// Flags holds the configuration options for creating a session store.
type Flags struct {
	// StoreType determines the backend to use. Supported values: "memory", "bbolt", "sqlite".
	StoreType string
	// Path is the database file for the "bbolt" and "sqlite" backends.
	// If empty, a file in the user configuration directory is used.
	Path string
	// Lifetime is how long a session is valid after login.
	Lifetime time.Duration
	// PurgeInterval is how often expired sessions are removed from the store.
	PurgeInterval time.Duration
}

// DefaultFlags returns a new Flags struct with sensible default values.
//
// By default, sessions are kept in memory for 30 minutes.
func DefaultFlags() *Flags {
	return &Flags{
		StoreType:     "memory",
		Lifetime:      30 * time.Minute,
		PurgeInterval: 10 * time.Minute,
	}
}

// Register registers the session store flags with the provided FlagSet.
func (f *Flags) Register(set kflags.FlagSet, prefix string) *Flags {
	set.StringVar(&f.StoreType, prefix+"session-store", f.StoreType, "Type of session store to use (memory, bbolt, sqlite)")
	set.StringVar(&f.Path, prefix+"session-store-path", f.Path, "Path of the database file for the bbolt and sqlite session stores - defaults to a file in the user config directory")
	set.DurationVar(&f.Lifetime, prefix+"session-lifetime", f.Lifetime, "How long a session lasts after login")
	set.DurationVar(&f.PurgeInterval, prefix+"session-purge-interval", f.PurgeInterval, "How often to delete expired sessions from the store - 0 to disable")
	return f
}

// Options holds the internal configuration for the factory.
type Options struct {
	Flags *Flags
	Now   func() time.Time
}

// Modifier is a function that modifies the factory Options.
type Modifier func(*Options)

// FromFlags returns a Modifier that sets the factory configuration from the provided Flags.
func FromFlags(flags *Flags) Modifier {
	return func(o *Options) {
		o.Flags = flags
	}
}

// WithTimeSource overrides the clock used by the created store.
func WithTimeSource(now func() time.Time) Modifier {
	return func(o *Options) {
		o.Now = now
	}
}

// New creates and returns a new session.Store based on the provided modifiers.
func New(mods ...Modifier) (session.Store, error) {
	opts := &Options{
		Flags: DefaultFlags(),
		Now:   time.Now,
	}
	for _, m := range mods {
		m(opts)
	}

	switch opts.Flags.StoreType {
	case "memory", "":
		return session.NewMemoryWithClock(opts.Now), nil

	case "bbolt":
		path, err := storePath(opts.Flags)
		if err != nil {
			return nil, err
		}
		store, err := bbolt.New(bbolt.WithPath(path), bbolt.WithTimeout(5*time.Second), bbolt.WithTimeSource(opts.Now))
		if err != nil {
			return nil, fmt.Errorf("failed to open bbolt session store - %w", err)
		}
		return store, nil

	case "sqlite":
		path, err := storePath(opts.Flags)
		if err != nil {
			return nil, err
		}
		store, err := sqlite.New(sqlite.WithPath(path), sqlite.WithTimeSource(opts.Now))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite session store - %w", err)
		}
		return store, nil

	default:
		return nil, kflags.NewUsageError(fmt.Errorf("unknown session store type: %s", opts.Flags.StoreType))
	}
}

// DefaultPath returns the database file used by a store type when no path is configured.
func DefaultPath(storeType string) string {
	return filepath.Join(configdir.LocalConfig("webauth"), "sessions."+storeType)
}

func storePath(flags *Flags) (string, error) {
	if flags.Path != "" {
		return flags.Path, nil
	}

	path := DefaultPath(flags.StoreType)
	if err := configdir.MakePath(filepath.Dir(path)); err != nil {
		return "", kflags.NewUsageErrorf("cannot create %s, use --session-store-path to pick another location - %w", filepath.Dir(path), err)
	}
	return path, nil
}
