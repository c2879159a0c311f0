// Package deferred implements a single-assignment, chainable async value in
// the Twisted/pulsar style, realized with the callback/errback queue
// eventloop.ChainedPromise drains but with explicit pause/unpause for
// nested Deferreds and Failures (see
// [github.com/joeycumines/go-reactor/failure]) carried as data instead of
// panics.
package deferred
