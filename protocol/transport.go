package protocol

// Transport is the wire-transport collaborator a Connection drives: it
// must call ConnectionMade exactly once, then zero or more DataReceived,
// then exactly one of ConnectionLost. This module only consumes Close; the
// driving calls (ConnectionMade/DataReceived/ConnectionLost) are the
// Connection's own exported methods, invoked by whatever owns the real
// socket/reactor.
type Transport interface {
	// Close closes the transport. async requests a non-blocking close when
	// the underlying implementation supports one.
	Close(async bool) error
}
