package kflags

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Flag is a single flag as seen by an Augmenter.
type Flag interface {
	Name() string
	Set(value string) error
	Changed() bool
}

// Augmenter supplies default values for flags not set on the command line.
type Augmenter interface {
	Augment(flag Flag) (bool, error)
}

// EnvAugmenter reads flag values from environment variables.
//
// A flag named "google-client-secret" with prefix "WEBAUTH" is read from
// WEBAUTH_GOOGLE_CLIENT_SECRET.
type EnvAugmenter struct {
	Prefix string
	Lookup func(key string) (string, bool)
}

// NewEnvAugmenter returns an augmenter reading from the process environment.
//
// Files listed in dotenv are loaded first, without overriding variables that
// are already set. Missing files are ignored.
func NewEnvAugmenter(prefix string, dotenv ...string) (*EnvAugmenter, error) {
	for _, file := range dotenv {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return nil, err
		}
	}
	return &EnvAugmenter{Prefix: prefix, Lookup: os.LookupEnv}, nil
}

// VariableName returns the environment variable consulted for a flag.
func (ea *EnvAugmenter) VariableName(flag string) string {
	name := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(flag))
	if ea.Prefix == "" {
		return name
	}
	return strings.ToUpper(ea.Prefix) + "_" + name
}

func (ea *EnvAugmenter) Augment(flag Flag) (bool, error) {
	if flag.Changed() {
		return false, nil
	}
	value, found := ea.Lookup(ea.VariableName(flag.Name()))
	if !found {
		return false, nil
	}
	if err := flag.Set(value); err != nil {
		return false, NewUsageErrorf("invalid value for flag %s from environment %s - %w", flag.Name(), ea.VariableName(flag.Name()), err)
	}
	return true, nil
}
