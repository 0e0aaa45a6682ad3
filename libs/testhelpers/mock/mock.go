// Package mock provides expectation based test doubles. A mock embeds
// *Expector, registers the calls it expects with Expect, and replays the
// configured return values from its method implementations via Record.
package mock

import (
	"reflect"
	"runtime"
	"strings"
	"testing"
)

// Finisher is implemented by mocks that need to assert all their
// expectations were consumed at the end of a test.
type Finisher interface {
	Finish()
}

// FinishAll calls Finish on all the provided mocks.
func FinishAll(fs ...Finisher) {
	for _, f := range fs {
		f.Finish()
	}
}

// Expectation represents a single expected call and its canned returns.
type Expectation struct {
	fnName  string
	params  []interface{}
	returns []interface{}
}

// NewExpectation returns an expectation for a call of fn with the provided params.
func NewExpectation(fn interface{}, params ...interface{}) *Expectation {
	return &Expectation{
		fnName: funcName(fn),
		params: params,
	}
}

// WithReturns attaches the values the mocked call should return.
func (e *Expectation) WithReturns(returns ...interface{}) *Expectation {
	e.returns = returns
	return e
}

// Expector tracks the ordered list of expected calls for a mock.
type Expector struct {
	T            testing.TB
	expectations []*Expectation
	next         int
}

// Expect appends an expectation to the ordered list.
func (e *Expector) Expect(exp *Expectation) {
	e.expectations = append(e.expectations, exp)
}

// Record asserts that the calling method is the next expected call with the
// provided params and returns the canned return values. nil is returned when
// no expectations are registered, which lets call sites fall back to zero
// values without configuring every interaction.
func (e *Expector) Record(params ...interface{}) []interface{} {
	if len(e.expectations) == 0 {
		return nil
	}
	caller := callerName(2)
	if e.next >= len(e.expectations) {
		e.T.Fatalf("mock: unexpected call to %s with params %+v", caller, params)
		return nil
	}
	exp := e.expectations[e.next]
	e.next++
	if caller != exp.fnName {
		e.T.Fatalf("mock: expected call %d to be %s, got %s", e.next, exp.fnName, caller)
	}
	if len(exp.params) != len(params) || (len(params) != 0 && !reflect.DeepEqual(exp.params, params)) {
		e.T.Fatalf("mock: call %d (%s) params mismatch\nexp: %+v\ngot: %+v", e.next, exp.fnName, exp.params, params)
	}
	return exp.returns
}

// CallCount returns the number of expected calls consumed so far.
func (e *Expector) CallCount() int {
	return e.next
}

// Finish asserts that every registered expectation was consumed.
func (e *Expector) Finish() {
	if e.next != len(e.expectations) {
		e.T.Fatalf("mock: %d of %d expectations were not met: %+v",
			len(e.expectations)-e.next, len(e.expectations), e.expectations[e.next:])
	}
}

// SafeError converts a recorded return value into an error allowing nil.
func SafeError(v interface{}) error {
	if v == nil {
		return nil
	}
	return v.(error)
}

// funcName resolves the plain method name of a method value such as m.Foo.
func funcName(fn interface{}) string {
	name := runtime.FuncForPC(reflect.ValueOf(fn).Pointer()).Name()
	name = strings.TrimSuffix(name, "-fm")
	return baseOf(name)
}

// callerName returns the plain method name of the function at the given depth.
func callerName(skip int) string {
	pc, _, _, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	return baseOf(runtime.FuncForPC(pc).Name())
}

// baseOf trims a fully qualified function name (package path and receiver)
// down to the bare method name so method values and call sites compare equal.
func baseOf(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}
