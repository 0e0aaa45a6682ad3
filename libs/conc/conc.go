// Package conc includes helpers for concurrency patterns that avoid some of the most common pitfalls.
package conc

import (
	"context"

	"github.com/sprucehealth/payflow/libs/golog"
)

// Testing should be set to true when running tests for code that use this package.
// This makes all functionality synchronous and makes tests deterministic.
var Testing bool

// Go runs the provided function in a go routine if Testing is not set,
// and synchronously if it is. Panics are recovered and logged rather than
// taking down the process.
func Go(f func()) {
	if Testing {
		f()
		return
	}
	go func() {
		defer func() {
			if e := recover(); e != nil {
				golog.Criticalf("conc: panic in goroutine: %v", e)
			}
		}()
		f()
	}()
}

// GoCtx runs the provided function with the provided context in a go routine
// if Testing is not set, and synchronously if it is.
func GoCtx(ctx context.Context, f func(ctx context.Context)) {
	Go(func() { f(ctx) })
}
