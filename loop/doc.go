// Package loop provides the event-loop interface consumed by the rest of
// this module, and Ref, a minimal implementation sufficient for tests and
// examples. See the package comment on Loop and Ref for the scope boundary.
package loop
