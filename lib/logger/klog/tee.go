package klog

import (
	"io"

	"github.com/ccontavalli/webauth/lib/logger"
)

// Tee forwards log messages to both primary and secondary loggers.
//
// The binary uses it to keep human readable logs on stderr while also
// appending structured logs to a file.
type Tee struct {
	Primary   logger.Logger
	Secondary logger.Logger
}

// NewTee returns a Logger that forwards to both loggers.
//
// A nil secondary makes the Tee equivalent to the primary.
func NewTee(primary, secondary logger.Logger) logger.Logger {
	if secondary == nil {
		return primary
	}
	return &Tee{Primary: primary, Secondary: secondary}
}

func (t *Tee) Debugf(format string, args ...interface{}) {
	t.forward(func(log logger.Logger) { log.Debugf(format, args...) })
}

func (t *Tee) Infof(format string, args ...interface{}) {
	t.forward(func(log logger.Logger) { log.Infof(format, args...) })
}

func (t *Tee) Warnf(format string, args ...interface{}) {
	t.forward(func(log logger.Logger) { log.Warnf(format, args...) })
}

func (t *Tee) Errorf(format string, args ...interface{}) {
	t.forward(func(log logger.Logger) { log.Errorf(format, args...) })
}

// SetOutput only redirects the primary logger; the secondary keeps its sink.
func (t *Tee) SetOutput(writer io.Writer) {
	if t.Primary != nil {
		t.Primary.SetOutput(writer)
	}
}

// Sync flushes any logger that buffers output.
func (t *Tee) Sync() error {
	var first error
	t.forward(func(log logger.Logger) {
		if syncer, ok := log.(interface{ Sync() error }); ok {
			if err := syncer.Sync(); err != nil && first == nil {
				first = err
			}
		}
	})
	return first
}

func (t *Tee) forward(fn func(logger.Logger)) {
	if t.Primary != nil {
		fn(t.Primary)
	}
	if t.Secondary != nil && t.Secondary != t.Primary {
		fn(t.Secondary)
	}
}
