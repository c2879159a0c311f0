// Package loop defines the event-loop seam this module's core assumes but
// does not implement: callers provide a real reactor that can post
// callbacks, schedule delayed callbacks, and report its own goroutine
// identity.
//
// Ref is a minimal reference implementation (timer min-heap, a task queue
// drained each tick, a running-goroutine affinity check) with no
// production I/O poller, JS adapter, or promise registry attached: the
// core only needs Submit, CallLater and thread-affinity. Production users
// of this module are expected to supply their own Loop backed by a real
// reactor; Ref exists to make the core runnable in tests and examples.
package loop

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Timer is a handle returned by Loop.CallLater.
type Timer interface {
	// Cancel prevents the timer's callback from firing, if it has not
	// already fired. Returns false if it was already fired or canceled.
	Cancel() bool
}

// Loop is the external collaborator the core depends on: a place to post
// callbacks (thread-safe), a way to schedule a delayed callback, and a way
// to ask "am I running on the loop's own goroutine".
type Loop interface {
	// Submit posts fn to run on the loop goroutine. Safe to call from any
	// goroutine.
	Submit(fn func()) error
	// CallLater schedules fn to run after d elapses, on the loop goroutine.
	CallLater(d time.Duration, fn func()) Timer
	// IsLoopThread reports whether the calling goroutine is the loop's own.
	IsLoopThread() bool
}

// ErrClosed is returned by Submit once the loop has been closed.
var ErrClosed = errors.New("loop: closed")

type task struct {
	when time.Time
	fn   func()
	idx  int
	live atomic.Bool
}

func (t *task) Cancel() bool {
	return t.live.CompareAndSwap(true, false)
}

// timerHeap is a min-heap of pending tasks ordered by their fire time,
// implementing container/heap.Interface over a slice of {when, task}.
type timerHeap []*task

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].when.Before(h[j].when) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].idx, h[j].idx = i, j }
func (h *timerHeap) Push(x any)         { t := x.(*task); t.idx = len(*h); *h = append(*h, t) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// Ref is the reference Loop implementation described in the package doc.
type Ref struct {
	submitCh chan func()
	timers   timerHeap
	timersMu sync.Mutex
	wake     chan struct{}

	goroutineID atomic.Uint64
	closed      atomic.Bool
	closeOnce   sync.Once
	done        chan struct{}
}

// New constructs a Ref loop. Call Run to start draining it.
func New() *Ref {
	return &Ref{
		submitCh: make(chan func(), 256),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Submit implements Loop.
func (l *Ref) Submit(fn func()) error {
	if l.closed.Load() {
		return ErrClosed
	}
	select {
	case l.submitCh <- fn:
		return nil
	case <-l.done:
		return ErrClosed
	}
}

// CallLater implements Loop. The callback always fires on the loop
// goroutine, even if CallLater itself is called from elsewhere.
func (l *Ref) CallLater(d time.Duration, fn func()) Timer {
	t := &task{when: time.Now().Add(d), fn: fn}
	t.live.Store(true)

	l.timersMu.Lock()
	heap.Push(&l.timers, t)
	l.timersMu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return t
}

// IsLoopThread implements Loop.
func (l *Ref) IsLoopThread() bool {
	return l.goroutineID.Load() != 0 && l.goroutineID.Load() == currentGoroutineID()
}

// Run drains the loop until ctx is canceled or Close is called. It must be
// called from the goroutine that is to become "the loop thread": it
// records that goroutine's identity for IsLoopThread.
func (l *Ref) Run(ctx context.Context) error {
	l.goroutineID.Store(currentGoroutineID())
	defer l.goroutineID.Store(0)

	for {
		d, fire := l.nextTimer()
		if fire != nil {
			fire.fn()
			continue
		}

		var timerC <-chan time.Time
		if d >= 0 {
			tm := time.NewTimer(d)
			defer tm.Stop()
			timerC = tm.C
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case fn := <-l.submitCh:
			fn()
		case <-timerC:
		case <-l.wake:
		}
	}
}

// nextTimer pops and returns the earliest due timer if one is ready, else
// the duration until the next one fires (-1 if none are scheduled).
func (l *Ref) nextTimer() (time.Duration, *task) {
	l.timersMu.Lock()
	defer l.timersMu.Unlock()

	for len(l.timers) > 0 {
		next := l.timers[0]
		if !next.live.Load() {
			heap.Pop(&l.timers)
			continue
		}
		d := time.Until(next.when)
		if d <= 0 {
			heap.Pop(&l.timers)
			return 0, next
		}
		return d, nil
	}
	return -1, nil
}

// Close stops Run and rejects further Submit calls.
func (l *Ref) Close() error {
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		close(l.done)
	})
	return nil
}
