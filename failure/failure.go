// Package failure accumulates one or more errors captured during a Deferred
// callback chain, and carries them as a value rather than an immediate
// exception, with CRITICAL-once logging realized through internal/obslog.
package failure

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/joeycumines/go-reactor/internal/obslog"
)

// captureTrace formats the calling goroutine's stack, skipping skip frames
// above the caller of captureTrace itself. Captures runtime.Callers once
// at creation time rather than holding a live *runtime.Frames around.
func captureTrace(skip int) []string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pcs[:n])
	var out []string
	for {
		frame, more := frames.Next()
		if frame.Function != "" {
			out = append(out, fmt.Sprintf("%s (%s:%d)", frame.Function, frame.File, frame.Line))
		}
		if !more {
			break
		}
	}
	return out
}

// Record is one captured error. Trace holds the stack captured via
// runtime.Callers when the record was appended, already formatted as one
// line per frame, which is also the portable form Serialize carries.
type Record struct {
	Kind  string
	Value error
	Trace []string
}

// Failure is an ordered, append-only accumulation of Records. The zero value
// is usable (an empty Failure).
type Failure struct {
	records []Record
	logged  bool
}

// New builds a Failure from zero or one seed value. v may be nil, an error,
// a Record, or another *Failure (whose records are all copied in).
func New(v any) *Failure {
	f := &Failure{}
	f.Append(v)
	return f
}

// Append extends the Failure with v, following the same union as New.
// Returns the receiver for chaining.
func (f *Failure) Append(v any) *Failure {
	switch t := v.(type) {
	case nil:
		// nothing to append
	case *Failure:
		if t != nil {
			f.records = append(f.records, t.records...)
		}
	case Record:
		f.records = append(f.records, t)
	case error:
		f.records = append(f.records, Record{Kind: fmt.Sprintf("%T", t), Value: t, Trace: captureTrace(1)})
	default:
		f.records = append(f.records, Record{Kind: fmt.Sprintf("%T", t), Value: fmt.Errorf("%v", t), Trace: captureTrace(1)})
	}
	return f
}

// Clear drops all accumulated records. Used by GeneratorDriver when it
// observes the CLEAR_ERRORS sentinel.
func (f *Failure) Clear() {
	f.records = nil
	f.logged = false
}

// Len returns the number of accumulated records.
func (f *Failure) Len() int {
	if f == nil {
		return 0
	}
	return len(f.records)
}

// At returns the record at index i, for iteration.
func (f *Failure) At(i int) Record {
	return f.records[i]
}

// Trace returns the most recently appended record, or a zero-value Record
// if none have been appended yet.
func (f *Failure) Trace() Record {
	if f == nil || len(f.records) == 0 {
		return Record{}
	}
	return f.records[len(f.records)-1]
}

// Is reports whether any accumulated record's Value matches target, via
// errors.Is.
func (f *Failure) Is(target error) bool {
	if f == nil {
		return false
	}
	for _, r := range f.records {
		if errors.Is(r.Value, target) {
			return true
		}
	}
	return false
}

// Error implements the error interface so a *Failure can itself be passed
// wherever an error is expected (e.g. a plain `error` return).
func (f *Failure) Error() string {
	if f == nil || len(f.records) == 0 {
		return "failure: no errors recorded"
	}
	if len(f.records) == 1 {
		return f.records[0].Value.Error()
	}
	return fmt.Sprintf("failure: %d errors recorded, most recent: %v", len(f.records), f.records[len(f.records)-1].Value)
}

// Log dispatches the accumulated records at CRITICAL severity exactly once.
// Subsequent calls are no-ops: the logged flag lives directly on the
// Failure, which is simple and correct since a *Failure, unlike a bare
// error value, is never shared without its accumulated history.
func (f *Failure) Log(logger obslog.Logger) {
	if f == nil || f.logged {
		return
	}
	f.logged = true
	if logger == nil {
		logger = obslog.Default()
	}
	for i, r := range f.records {
		logger.Crit("deferred callback failure",
			obslog.Int("index", i),
			obslog.Str("kind", r.Kind),
			obslog.Err(r.Value),
		)
	}
}

// Logged reports whether Log has already run for this Failure.
func (f *Failure) Logged() bool {
	return f != nil && f.logged
}

// RaiseAll logs the Failure, removes its last record, and returns an error
// for the caller to propagate: the removed record's own error when it was
// the only record, otherwise an *ErrDeferredFailure carrying the number of
// records held before the removal (Count 0, with nothing removed, when the
// Failure is empty).
//
// first does not change the outcome: the record removed is always the
// last one, and when more than one record has accumulated no single
// record's error is returned, only the count.
func (f *Failure) RaiseAll(first bool) error {
	f.Log(nil)
	if len(f.records) == 0 {
		return &ErrDeferredFailure{Count: 0}
	}
	pos := len(f.records) - 1
	if first {
		pos = 0
	}
	_ = pos // not read; the record removed is always the tail, see doc comment above
	n := len(f.records)
	popped := f.records[n-1]
	f.records = f.records[:n-1]
	if n == 1 {
		return popped.Value
	}
	return &ErrDeferredFailure{Count: n}
}

// Serialize converts the Failure into a portable form: a new *Failure with
// a copy of each record (whose Trace is already pre-formatted strings) and
// the same logged flag. Use this before transmitting a Failure outside the
// current process.
func (f *Failure) Serialize() *Failure {
	out := &Failure{logged: f.Logged()}
	for _, r := range f.records {
		out.records = append(out.records, Record{
			Kind:  r.Kind,
			Value: r.Value,
			Trace: r.Trace,
		})
	}
	return out
}
