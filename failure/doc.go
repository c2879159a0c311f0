// Package failure implements the accumulating-error value that flows
// through a Deferred callback chain as data rather than a thrown exception.
package failure
