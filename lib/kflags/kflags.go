// Package kflags decouples flag definitions from the flag library in use.
//
// Components expose a Flags struct with a Register(FlagSet, prefix) method,
// and an Options struct built from it via Modifiers. The binary decides which
// FlagSet implementation to use (see kcobra for cobra/pflag).
package kflags

import (
	"fmt"
	"time"
)

// FlagSet is the interface components use to register their flags.
type FlagSet interface {
	BoolVar(p *bool, name string, value bool, usage string)
	DurationVar(p *time.Duration, name string, value time.Duration, usage string)
	StringVar(p *string, name string, value string, usage string)
	StringArrayVar(p *[]string, name string, value []string, usage string)
	IntVar(p *int, name string, value int, usage string)
}

// UsageError is an error caused by an invalid flag or argument.
//
// Binaries print usage information when they encounter one.
type UsageError struct {
	err error
}

func (ue *UsageError) Error() string {
	return ue.err.Error()
}

func (ue *UsageError) Unwrap() error {
	return ue.err
}

// NewUsageError wraps err into a UsageError.
func NewUsageError(err error) error {
	if err == nil {
		return nil
	}
	return &UsageError{err: err}
}

// NewUsageErrorf is like fmt.Errorf, but returns a UsageError.
func NewUsageErrorf(format string, args ...interface{}) error {
	return &UsageError{err: fmt.Errorf(format, args...)}
}
