package deferred

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/joeycumines/go-reactor/failure"
	"github.com/joeycumines/go-reactor/loop"
)

// stepGenerator drives a fixed sequence of steps for testing; each step
// receives the previous step's result and returns the next yielded value.
type stepGenerator struct {
	steps []func(last any) (any, bool, error)
	idx   int
}

func (g *stepGenerator) Next(last any) (any, bool, error) {
	if g.idx >= len(g.steps) {
		return nil, false, nil
	}
	fn := g.steps[g.idx]
	g.idx++
	return fn(last)
}

func value(v any) func(any) (any, bool, error) {
	return func(any) (any, bool, error) { return v, true, nil }
}

func raises(err error) func(any) (any, bool, error) {
	return func(any) (any, bool, error) { return nil, true, err }
}

func runLoop(t *testing.T) (*loop.Ref, func()) {
	t.Helper()
	l := loop.New()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = l.Run(ctx) }()
	return l, cancel
}

func TestGeneratorNotDoneThenValue(t *testing.T) {
	l, cancel := runLoop(t)
	defer cancel()

	gen := &stepGenerator{steps: []func(any) (any, bool, error){
		value(NotDone),
		value(7),
	}}
	drv := NewGeneratorDriver(gen, 0, 0, WithLoop(l))

	got := waitResult(t, drv.Deferred(), 2*time.Second)
	if got != 7 {
		t.Fatalf("want 7, got %v", got)
	}
}

func TestGeneratorMaxErrorsConcludes(t *testing.T) {
	gen := &stepGenerator{steps: []func(any) (any, bool, error){
		raises(errors.New("e1")),
		raises(errors.New("e2")),
		raises(errors.New("e3")),
	}}
	drv := NewGeneratorDriver(gen, 2, 0)

	f, ok := drv.Deferred().Result().(*failure.Failure)
	if !ok {
		t.Fatalf("want *failure.Failure, got %#v", drv.Deferred().Result())
	}
	if f.Len() != 2 {
		t.Fatalf("want 2 accumulated errors, got %d", f.Len())
	}
}

func TestGeneratorClearErrors(t *testing.T) {
	gen := &stepGenerator{steps: []func(any) (any, bool, error){
		raises(errors.New("ignored")),
		value(ClearErrors),
		value(99),
	}}
	drv := NewGeneratorDriver(gen, 0, 0)

	if got := drv.Deferred().Result(); got != 99 {
		t.Fatalf("want 99 after ClearErrors, got %#v", got)
	}
}

func TestGeneratorUnlimitedAccumulatesUntilStopIteration(t *testing.T) {
	gen := &stepGenerator{steps: []func(any) (any, bool, error){
		raises(errors.New("e1")),
		raises(errors.New("e2")),
	}}
	drv := NewGeneratorDriver(gen, 0, 0)

	f, ok := drv.Deferred().Result().(*failure.Failure)
	if !ok || f.Len() != 2 {
		t.Fatalf("want 2 accumulated errors, got %#v", drv.Deferred().Result())
	}
}

func TestSliceGeneratorYieldsThenStops(t *testing.T) {
	gen := NewSliceGenerator(1, 2, 3)
	drv := NewGeneratorDriver(gen, 0, 0)

	if got := drv.Deferred().Result(); got != 3 {
		t.Fatalf("want final result 3, got %#v", got)
	}
}

func TestGeneratorTimeout(t *testing.T) {
	l, cancel := runLoop(t)
	defer cancel()

	never := New()
	gen := &stepGenerator{steps: []func(any) (any, bool, error){
		value(never),
	}}
	drv := NewGeneratorDriver(gen, 0, 0, WithLoop(l), WithTimeout(20*time.Millisecond))

	got := waitResult(t, drv.Deferred(), 2*time.Second)
	if _, ok := got.(*failure.Failure); !ok {
		t.Fatalf("want a timeout Failure, got %#v", got)
	}
}

// waitResult blocks for d to settle, failing the test if timeout elapses
// first. Deferred has no native channel API (it is not meant to be awaited
// across goroutines outside tests), so this attaches a one-shot callback.
func waitResult(t *testing.T, d *Deferred, timeout time.Duration) any {
	t.Helper()
	ch := make(chan any, 1)
	d.AddBoth(func(v any) (any, error) {
		ch <- v
		return v, nil
	})
	select {
	case v := <-ch:
		return v
	case <-time.After(timeout):
		t.Fatal("timed out waiting for Deferred to settle")
		return nil
	}
}
