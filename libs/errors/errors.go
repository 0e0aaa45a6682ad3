// Package errors provides error wrapping that retains the original cause
// while recording where the error passed through and any annotations added
// along the way.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

type aerr struct {
	err         error
	trace       []string
	annotations []string
}

func (e *aerr) Error() string {
	msg := e.err.Error()
	if len(e.annotations) != 0 {
		msg += " (" + strings.Join(e.annotations, ", ") + ")"
	}
	return msg
}

// New returns a new error with the provided message. It is a passthrough
// to the standard library to avoid a second import at call sites.
func New(msg string) error {
	return errors.New(msg)
}

// Errorf returns a new error with a formatted message and the caller's
// location recorded.
func Errorf(format string, args ...interface{}) error {
	return &aerr{
		err:   fmt.Errorf(format, args...),
		trace: []string{caller(2)},
	}
}

// Trace wraps an error recording the location of the caller. It returns nil
// when err is nil so it can wrap return values unconditionally.
func Trace(err error) error {
	if err == nil {
		return nil
	}
	e := wrap(err)
	e.trace = append(e.trace, caller(2))
	return e
}

// Cause returns the underlying error that has been wrapped by Trace or Annotate.
func Cause(err error) error {
	if e, ok := err.(*aerr); ok {
		return e.err
	}
	return err
}

// Annotate adds context to an error. It can be used to attach more information that is useful for debugging.
func Annotate(err error, msg string) error {
	if err == nil {
		return nil
	}
	e := wrap(err)
	e.annotations = append(e.annotations, msg)
	return e
}

// Annotatef adds context to an error. It can be used to attach more information that is useful for debugging.
func Annotatef(err error, f string, v ...interface{}) error {
	if err == nil {
		return nil
	}
	e := wrap(err)
	e.annotations = append(e.annotations, fmt.Sprintf(f, v...))
	return e
}

// Annotations returns all annotations attached to an error.
func Annotations(err error) []string {
	if e, ok := err.(*aerr); ok {
		return e.annotations
	}
	return nil
}

// Trace returns the locations recorded against an error, most recent last.
func TraceOf(err error) []string {
	if e, ok := err.(*aerr); ok {
		return e.trace
	}
	return nil
}

func wrap(err error) *aerr {
	if e, ok := err.(*aerr); ok {
		return e
	}
	return &aerr{err: err}
}

func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	depth := 0
	for i := len(file) - 1; i > 0; i-- {
		if file[i] == '/' {
			depth++
			if depth == 2 {
				file = file[i+1:]
				break
			}
		}
	}
	return fmt.Sprintf("%s:%d", file, line)
}
