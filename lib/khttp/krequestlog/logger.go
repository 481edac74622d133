// Package krequestlog logs one line for each http request served.
//
// The webauth binary registers its flags with the "request-" prefix, so
// --request-log-format=apache switches the whole server to apache lines.
package krequestlog

import (
	"strings"

	"github.com/ccontavalli/webauth/lib/kflags"
	"github.com/ccontavalli/webauth/lib/logger"
)

const (
	FormatText   = "text"
	FormatApache = "apache"
)

type Flags struct {
	LogStart  bool
	LogEnd    bool
	LogFormat string
	// Requests with a path starting with one of these are not logged.
	SkipPaths []string
}

func DefaultFlags() *Flags {
	return &Flags{
		LogEnd:    true,
		LogFormat: FormatText,
	}
}

func (f *Flags) Register(set kflags.FlagSet, prefix string) *Flags {
	set.BoolVar(&f.LogStart, prefix+"log-start", f.LogStart, "Log a line when a request is received")
	set.BoolVar(&f.LogEnd, prefix+"log-end", f.LogEnd, "Log a line with status and size once a request is served")
	set.StringVar(&f.LogFormat, prefix+"log-format", f.LogFormat, "Request log format ("+FormatText+", "+FormatApache+")")
	set.StringArrayVar(&f.SkipPaths, prefix+"log-skip", f.SkipPaths, "Path prefix of requests not to log, like /css/ - can be repeated")
	return f
}

type Options struct {
	Log       logger.Logger
	LogStart  bool
	LogEnd    bool
	LogFormat string
	SkipPaths []string
	Printer   logger.Printer
}

type Modifier func(*Options)

func WithLogger(log logger.Logger) Modifier {
	return func(o *Options) {
		o.Log = log
	}
}

// WithPrinter sends the request lines to printer instead of the Infof of the logger.
func WithPrinter(printer logger.Printer) Modifier {
	return func(o *Options) {
		o.Printer = printer
	}
}

func WithSkipPaths(prefix ...string) Modifier {
	return func(o *Options) {
		o.SkipPaths = append(o.SkipPaths, prefix...)
	}
}

func FromFlags(flags *Flags) Modifier {
	return func(o *Options) {
		o.LogStart = flags.LogStart
		o.LogEnd = flags.LogEnd
		o.LogFormat = flags.LogFormat
		o.SkipPaths = append(o.SkipPaths, flags.SkipPaths...)
	}
}

// NewOptions applies mods to the defaults.
//
// An unknown format falls back to text.
func NewOptions(mods ...Modifier) *Options {
	o := &Options{
		Log:       logger.Go,
		LogEnd:    true,
		LogFormat: FormatText,
	}
	for _, m := range mods {
		m(o)
	}
	if o.Printer == nil {
		o.Printer = o.Log.Infof
	}
	if o.LogFormat != FormatApache {
		o.LogFormat = FormatText
	}
	return o
}

func (o *Options) skip(path string) bool {
	for _, prefix := range o.SkipPaths {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
