package deferred

import (
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-reactor/failure"
	"github.com/joeycumines/go-reactor/loop"
)

// GeneratorDriver drives a Generator to completion, surfacing the outcome
// through a *Deferred. NotDone yields control to the event loop,
// ClearErrors drains the accumulated Failure, an unsettled Deferred
// yielded by the generator is awaited up to a wall-clock timeout, and any
// other error raised while stepping is accumulated rather than stopping
// the driver outright (subject to MaxErrors).
type GeneratorDriver struct {
	gen       Generator
	lp        loop.Loop
	maxErrors int
	timeout   time.Duration

	d    *Deferred
	errs *failure.Failure
}

// GeneratorOption configures a GeneratorDriver.
type GeneratorOption func(*GeneratorDriver)

// WithLoop overrides the loop a driver schedules its continuations on,
// instead of the process-wide CurrentLoop.
func WithLoop(l loop.Loop) GeneratorOption {
	return func(g *GeneratorDriver) { g.lp = l }
}

// WithMaxErrors sets the accumulated-error threshold at which the driver
// concludes early. Zero (the default) means unlimited: the driver
// accumulates every error and only concludes on StopIteration.
func WithMaxErrors(n int) GeneratorOption {
	return func(g *GeneratorDriver) { g.maxErrors = n }
}

// WithTimeout sets the wall-clock budget for a single awaited, unsettled
// inner Deferred. Zero (the default) means no timeout is enforced.
func WithTimeout(d time.Duration) GeneratorOption {
	return func(g *GeneratorDriver) { g.timeout = d }
}

// NewGeneratorDriver constructs a driver for gen and immediately begins
// stepping it (synchronously, until the first suspension point). maxErrors
// and timeout set the same fields WithMaxErrors/WithTimeout do, as
// positional shorthand for the common case; pass 0 for either and use the
// matching option instead to leave it at the default.
func NewGeneratorDriver(gen Generator, maxErrors int, timeout time.Duration, opts ...GeneratorOption) *GeneratorDriver {
	g := &GeneratorDriver{
		gen:       gen,
		lp:        CurrentLoop(),
		maxErrors: maxErrors,
		timeout:   timeout,
		d:         New(),
		errs:      &failure.Failure{},
	}
	for _, opt := range opts {
		opt(g)
	}
	g.consume(nil)
	return g
}

// Deferred returns the Deferred the driver will eventually settle.
func (g *GeneratorDriver) Deferred() *Deferred {
	return g.d
}

// shouldStop appends f's records to the accumulator and reports whether the
// configured error threshold has now been reached.
func (g *GeneratorDriver) shouldStop(f *failure.Failure) bool {
	g.errs.Append(f)
	return g.maxErrors > 0 && g.errs.Len() >= g.maxErrors
}

// consume implements the _consume step algorithm.
func (g *GeneratorDriver) consume(lastResult any) {
	if f, ok := lastResult.(*failure.Failure); ok && f != nil {
		if g.shouldStop(f) {
			g.conclude(nil)
			return
		}
	}

	value, ok, err := g.gen.Next(lastResult)
	if !ok {
		g.conclude(lastResult)
		return
	}
	if err != nil {
		g.consume(failure.New(err))
		return
	}
	g.checkAsync(value)
}

// checkAsync implements _check_async: dispatch on the generator's yielded
// value.
func (g *GeneratorDriver) checkAsync(value any) {
	lifted := MaybeAsync(value)

	if inner, ok := lifted.(*Deferred); ok {
		g.awaitInner(inner)
		return
	}

	if s, ok := lifted.(sentinel); ok {
		switch s {
		case NotDone:
			g.scheduleConsume(nil)
			return
		case ClearErrors:
			g.errs.Clear()
			g.consume(nil)
			return
		}
	}

	g.consume(lifted)
}

// awaitInner waits for inner to settle and re-enters checkAsync with its
// result, chaining a continuation onto inner rather than busy-polling for
// completion. The wall-clock timeout is enforced by a genuinely independent
// timer rather than a check re-run only when the loop happens to tick: if
// a loop is bound (WithLoop/SetCurrentLoop) and Timeout is set, a parallel
// CallLater races the continuation, whichever fires first wins and the
// loser is a no-op.
func (g *GeneratorDriver) awaitInner(inner *Deferred) {
	if g.timeout <= 0 || g.lp == nil {
		inner.AddBoth(func(v any) (any, error) {
			g.checkAsync(v)
			return v, nil
		})
		return
	}

	var settled atomic.Bool
	timer := g.lp.CallLater(g.timeout, func() {
		if settled.CompareAndSwap(false, true) {
			g.conclude(failure.New(&ErrTimeout{Timeout: g.timeout}))
		}
	})

	inner.AddBoth(func(v any) (any, error) {
		if !settled.CompareAndSwap(false, true) {
			return v, nil
		}
		timer.Cancel()
		g.checkAsync(v)
		return v, nil
	})
}

// scheduleConsume re-enters consume on the bound loop (or inline, if none is
// bound), implementing the NOT_DONE "yield to the loop" semantics.
func (g *GeneratorDriver) scheduleConsume(lastResult any) {
	if g.lp == nil {
		g.consume(lastResult)
		return
	}
	_ = g.lp.Submit(func() {
		g.consume(lastResult)
	})
}

// conclude settles the driver's Deferred: with the accumulated Failure if
// any errors were recorded, else with last.
func (g *GeneratorDriver) conclude(last any) {
	if g.errs.Len() > 0 {
		_ = g.d.Callback(g.errs)
		return
	}
	_ = g.d.Callback(last)
}

// ErrTimeout is raised when an inner Deferred awaited by a GeneratorDriver
// fails to settle within the configured timeout.
type ErrTimeout struct {
	Timeout time.Duration
}

func (e *ErrTimeout) Error() string {
	return "deferred: generator step exceeded timeout of " + e.Timeout.String()
}
