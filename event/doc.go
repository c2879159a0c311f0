// Package event implements a one-shot/repeatable event mixin: one-shot
// events fire at most once and are backed by a *deferred.Deferred so
// binding after the fact replays immediately, repeatable events fire any
// number of times through an ordered listener list.
package event
