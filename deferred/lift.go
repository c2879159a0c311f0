package deferred

import (
	"fmt"

	"github.com/joeycumines/go-reactor/failure"
)

// Generator is the pull-iterator protocol GeneratorDriver drives, standing
// in for yield-based coroutines: Go has no native analogue that composes
// with an event loop, so callers implement Next explicitly instead.
type Generator interface {
	// Next requests the next yielded value given the result of the previous
	// step (nil on the first call). ok is false once the generator is
	// exhausted (the StopIteration case); err carries any other value the
	// generator raised while producing its next value.
	Next(lastResult any) (value any, ok bool, err error)
}

// sliceGenerator yields a fixed sequence of values, ignoring lastResult.
type sliceGenerator struct {
	values []any
	idx    int
}

func (g *sliceGenerator) Next(any) (any, bool, error) {
	if g.idx >= len(g.values) {
		return nil, false, nil
	}
	v := g.values[g.idx]
	g.idx++
	return v, true, nil
}

// NewSliceGenerator builds a Generator that yields values in order and then
// stops, ignoring whatever result each step produces. It is a convenience
// for tests and simple fixed pipelines that don't need lastResult.
func NewSliceGenerator(values ...any) Generator {
	return &sliceGenerator{values: values}
}

// sentinel values yielded by a Generator to direct the driver rather than
// supply data.
type sentinel string

// String implements fmt.Stringer so sentinels print legibly in logs/errors.
func (s sentinel) String() string { return string(s) }

const (
	// NotDone asks the driver to yield control back to the event loop and
	// resume the generator on its next turn.
	NotDone sentinel = "NOT_DONE"
	// StopOnFailure is exposed for generator implementations to reference by
	// name; GeneratorDriver does not dispatch on it specially, the real
	// early-termination knob is MaxErrors.
	StopOnFailure sentinel = "STOP_ON_FAILURE"
	// ClearErrors discards the driver's accumulated Failure and continues
	// with a nil result.
	ClearErrors sentinel = "CLEAR_ERRORS"
)

// nothingType distinguishes "argument omitted" from "argument is nil".
type nothingType struct{}

// Nothing is the singleton marker for an omitted argument.
var Nothing = nothingType{}

// AsFailure converts an error-shaped value into *failure.Failure, leaving
// every other value (including nil and an already-*failure.Failure) as is.
func AsFailure(v any) any {
	switch t := v.(type) {
	case *failure.Failure:
		return t
	case error:
		return failure.New(t)
	default:
		return v
	}
}

// MaybeAsync lifts v into settled-value space: a Generator is wrapped in a
// GeneratorDriver and its Deferred is returned; a *Deferred collapses via
// ResultOrSelf; anything else is returned through AsFailure (an error
// becomes a *failure.Failure, other values are returned unchanged).
func MaybeAsync(v any) any {
	switch t := v.(type) {
	case Generator:
		return NewGeneratorDriver(t, 0, 0).Deferred()
	case *Deferred:
		return t.ResultOrSelf()
	default:
		return AsFailure(v)
	}
}

// SafeAsync invokes fn under a panic guard and always returns a *Deferred:
// pending if the (possibly panic-recovered) return value lifts to an
// unsettled Deferred, already settled otherwise.
func SafeAsync(fn func() (any, error)) *Deferred {
	d := New()

	result := func() (result any) {
		defer func() {
			if r := recover(); r != nil {
				result = failure.New(fmt.Errorf("panic: %v", r))
			}
		}()
		v, err := fn()
		if err != nil {
			return failure.New(err)
		}
		return v
	}()

	lifted := MaybeAsync(result)
	if inner, ok := lifted.(*Deferred); ok {
		inner.AddBoth(func(v any) (any, error) {
			_ = d.Callback(v)
			return v, nil
		})
		return d
	}
	_ = d.Callback(lifted)
	return d
}

// Async wraps fn so that calling the returned function always yields a
// *Deferred, regardless of whether fn's body completes synchronously,
// errors, or yields a Generator/Deferred.
func Async(fn func() (any, error)) func() *Deferred {
	return func() *Deferred {
		return SafeAsync(fn)
	}
}

// Make forces v into a *Deferred: if v is already one, it is returned as
// is, settled or not; otherwise a new Deferred is built and immediately
// settled with v. Unlike MaybeAsync (which only collapses an
// already-settled Deferred and otherwise passes values through untouched),
// Make always returns a *Deferred.
func Make(v any) *Deferred {
	if d, ok := v.(*Deferred); ok {
		return d
	}
	d := New()
	_ = d.Callback(v)
	return d
}
