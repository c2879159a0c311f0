package deferred

import (
	"fmt"
	"sync"

	"github.com/joeycumines/go-reactor/failure"
)

// Handler is a callback or errback attached to a Deferred. It receives the
// current result and returns the value to propagate to the next handler in
// the chain, or an error, which is equivalent to the handler having raised.
type Handler func(result any) (any, error)

func passthrough(v any) (any, error) { return v, nil }

type pair struct {
	cb Handler
	eb Handler
}

// Deferred is a single-assignment async value with a chain of callback/
// errback pairs, with a draining loop shaped like a promise's
// addHandler/executeHandler pair, adapted to carry a *failure.Failure as
// the error channel instead of an arbitrary rejection reason passed
// through Then/Catch.
type Deferred struct {
	mu      sync.Mutex
	result  any
	called  bool
	running bool
	pauses  int
	queue   []pair
}

// New returns a pending Deferred.
func New() *Deferred {
	return &Deferred{}
}

// AddCallback appends a callback/errback pair and returns the receiver for
// chaining. A nil cb or eb is replaced with a pass-through. If the Deferred
// is already settled, not currently running its queue, and not paused on a
// nested Deferred, the pair is drained immediately.
func (d *Deferred) AddCallback(cb, eb Handler) *Deferred {
	if cb == nil {
		cb = passthrough
	}
	if eb == nil {
		eb = passthrough
	}
	d.mu.Lock()
	d.queue = append(d.queue, pair{cb: cb, eb: eb})
	d.mu.Unlock()
	d.drain()
	return d
}

// AddErrback appends eb as the errback slot, with a pass-through callback.
func (d *Deferred) AddErrback(eb Handler) *Deferred {
	return d.AddCallback(nil, eb)
}

// AddBoth appends cb as both the callback and errback slot.
func (d *Deferred) AddBoth(cb Handler) *Deferred {
	return d.AddCallback(cb, cb)
}

// Callback settles the Deferred with result and drains the queue. Settling
// twice returns ErrAlreadyCalled. Passing a *Deferred as result is rejected
// with ErrDeferredResult: a handler that wants to defer to another
// Deferred should return it, not settle with it directly.
func (d *Deferred) Callback(result any) error {
	if _, ok := result.(*Deferred); ok {
		return ErrDeferredResult
	}
	d.mu.Lock()
	if d.called {
		d.mu.Unlock()
		return ErrAlreadyCalled
	}
	d.called = true
	d.result = AsFailure(result)
	d.mu.Unlock()
	d.drain()
	return nil
}

// Called reports whether Callback has already settled this Deferred.
func (d *Deferred) Called() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.called
}

// Result returns the current result, whatever it is. It may be a
// *failure.Failure, a still-pending nil, or any settled value.
func (d *Deferred) Result() any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.result
}

// ResultOrSelf returns the settled result only if the Deferred is called,
// not currently draining, has no outstanding pause, and has an empty queue;
// otherwise it returns the Deferred itself. Callers should prefer this over
// Result so a still-in-flight chain is never mistaken for its eventual
// value.
func (d *Deferred) ResultOrSelf() any {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.called && !d.running && d.pauses == 0 && len(d.queue) == 0 {
		return d.result
	}
	return d
}

// continuation is attached via AddBoth to a nested Deferred this Deferred
// is paused on. It substitutes the nested result as this Deferred's own and
// resumes draining once every outstanding pause has cleared.
func (d *Deferred) continuation(v any) (any, error) {
	d.mu.Lock()
	d.result = v
	d.pauses--
	resume := d.pauses == 0
	d.mu.Unlock()
	if resume {
		d.drain()
	}
	return v, nil
}

// drain implements the callback-draining algorithm: pop the next pair,
// choose callback or errback based on whether the current result is a
// Failure, run it, and either continue with its return value or pause on a
// still-pending nested Deferred.
func (d *Deferred) drain() {
	for {
		d.mu.Lock()
		if !d.called || d.running || d.pauses > 0 || len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		p := d.queue[0]
		d.queue = d.queue[1:]
		current := d.result
		handler := p.cb
		if isFailure(current) {
			handler = p.eb
		}
		d.running = true
		d.mu.Unlock()

		next, herr := invoke(handler, current)

		d.mu.Lock()
		d.running = false
		if herr != nil {
			if f, ok := d.result.(*failure.Failure); ok && f != nil {
				f.Append(herr)
			} else {
				d.result = failure.New(herr)
			}
			d.mu.Unlock()
			continue
		}

		lifted := MaybeAsync(next)
		if inner, ok := lifted.(*Deferred); ok {
			d.pauses++
			d.mu.Unlock()
			inner.AddBoth(d.continuation)
			return
		}
		d.result = lifted
		d.mu.Unlock()
	}
}

// invoke calls handler, recovering from a panic and reporting it as an
// error so a misbehaving callback cannot take down the loop goroutine,
// mirroring the panic-to-rejection guard in
// ChainedPromise.executeHandler.
func invoke(handler Handler, v any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return handler(v)
}

func isFailure(v any) bool {
	f, ok := v.(*failure.Failure)
	return ok && f != nil
}
