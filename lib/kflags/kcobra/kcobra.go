// Package kcobra binds kflags to cobra commands and pflag flag sets.
package kcobra

import (
	"errors"
	"fmt"
	"os"

	"github.com/ccontavalli/webauth/lib/kflags"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// FlagSet returns the kflags.FlagSet backed by the persistent flags of a command.
func FlagSet(command *cobra.Command) kflags.FlagSet {
	return command.PersistentFlags()
}

type flag struct {
	pf *pflag.Flag
}

func (f flag) Name() string {
	return f.pf.Name
}

func (f flag) Changed() bool {
	return f.pf.Changed
}

func (f flag) Set(value string) error {
	if err := f.pf.Value.Set(value); err != nil {
		return err
	}
	f.pf.Changed = true
	return nil
}

// Populate gives each augmenter, in order, a chance to set flags that were not
// set on the command line. The first augmenter setting a flag wins.
func Populate(set *pflag.FlagSet, augmenters ...kflags.Augmenter) error {
	var errs []error
	set.VisitAll(func(pf *pflag.Flag) {
		f := flag{pf}
		for _, augmenter := range augmenters {
			found, err := augmenter.Augment(f)
			if err != nil {
				errs = append(errs, err)
				return
			}
			if found {
				return
			}
		}
	})
	return errors.Join(errs...)
}

// Run executes the command, exiting with a non zero status on error.
//
// Usage errors also print the command usage.
func Run(root *cobra.Command) {
	command, err := root.ExecuteC()
	if err == nil {
		return
	}

	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	var usage *kflags.UsageError
	if errors.As(err, &usage) && command != nil {
		fmt.Fprintf(os.Stderr, "\n%s", command.UsageString())
	}
	os.Exit(1)
}
