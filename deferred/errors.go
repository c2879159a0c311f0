package deferred

import "errors"

// ErrAlreadyCalled is returned by Callback when the Deferred has already
// been settled once.
var ErrAlreadyCalled = errors.New("deferred: already called")

// ErrDeferredResult is returned by Callback when given a *Deferred as the
// settlement value: a callback that wants to defer to another Deferred
// should return it from a handler instead, where the draining loop will
// pause on it.
var ErrDeferredResult = errors.New("deferred: callback received a Deferred instance")

// ErrProgrammingError covers misuse that isn't a settlement race: appending
// to a keyed MultiDeferred, setting a key on a sequence one, adding to or
// locking one that is already locked.
type ErrProgrammingError struct {
	Msg string
}

func (e *ErrProgrammingError) Error() string { return "deferred: " + e.Msg }
