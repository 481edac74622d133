// Package logger defines the minimal logging interface used across webauth.
//
// Libraries accept a Logger rather than logging globally, so the binary can
// decide where output goes (standard log, zap, or nowhere in tests).
package logger

import (
	"io"
	"log"
)

type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	SetOutput(writer io.Writer)
}

// Printer is a function that can be used to print a message.
type Printer func(format string, args ...interface{})

// DefaultLogger wraps a standard library log.Logger, prefixing each level.
type DefaultLogger struct {
	Printer func(format string, v ...interface{})
	Setter  func(writer io.Writer)
}

func (dl DefaultLogger) Debugf(format string, args ...interface{}) {
	dl.Printer("D "+format, args...)
}
func (dl DefaultLogger) Infof(format string, args ...interface{}) {
	dl.Printer("I "+format, args...)
}
func (dl DefaultLogger) Warnf(format string, args ...interface{}) {
	dl.Printer("W "+format, args...)
}
func (dl DefaultLogger) Errorf(format string, args ...interface{}) {
	dl.Printer("E "+format, args...)
}
func (dl DefaultLogger) SetOutput(writer io.Writer) {
	if dl.Setter != nil {
		dl.Setter(writer)
	}
}

// NilLogger discards everything.
type NilLogger struct{}

func (nl NilLogger) Debugf(format string, args ...interface{}) {}
func (nl NilLogger) Infof(format string, args ...interface{})  {}
func (nl NilLogger) Warnf(format string, args ...interface{})  {}
func (nl NilLogger) Errorf(format string, args ...interface{}) {}
func (nl NilLogger) SetOutput(writer io.Writer)                {}

var Nil = &NilLogger{}
var Go = &DefaultLogger{Printer: log.Printf, Setter: log.SetOutput}
