package deferred

import (
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-reactor/loop"
)

// currentLoop is the process-wide loop GeneratorDriver binds to when no
// explicit loop is given, analogous to asyncio.get_event_loop(). A single
// process runs one cooperative loop, so a package-level binding set once at
// startup is sufficient; GeneratorDriver also accepts an explicit loop via
// WithLoop for tests that run several in isolation.
var (
	currentLoopMu sync.RWMutex
	currentLoop   loop.Loop
)

// SetCurrentLoop registers l as the loop GeneratorDriver instances created
// without an explicit WithLoop option will schedule their continuations on.
func SetCurrentLoop(l loop.Loop) {
	currentLoopMu.Lock()
	currentLoop = l
	currentLoopMu.Unlock()
}

// CurrentLoop returns the loop last registered via SetCurrentLoop, or nil.
func CurrentLoop() loop.Loop {
	currentLoopMu.RLock()
	defer currentLoopMu.RUnlock()
	return currentLoop
}

// debugAffinity gates AssertLoopThread. Off by default; tests and debug
// builds turn it on with SetDebugAffinity(true).
var debugAffinity atomic.Bool

// SetDebugAffinity enables or disables AssertLoopThread's panic behavior.
func SetDebugAffinity(on bool) {
	debugAffinity.Store(on)
}

// AssertLoopThread panics if debug affinity checking is enabled and the
// calling goroutine is not l's own loop goroutine. A Deferred is not
// thread-safe; cross-thread resumption must go through l.Submit instead of
// mutating a Deferred directly.
func AssertLoopThread(l loop.Loop) {
	if !debugAffinity.Load() || l == nil {
		return
	}
	if !l.IsLoopThread() {
		panic("deferred: mutation attempted off the loop thread")
	}
}
