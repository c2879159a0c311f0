package protocol

import "errors"

// ErrProtocolError is raised when a ProtocolConsumer's DataReceived returns
// non-empty leftover bytes while it is still the connection's current
// consumer. Any consumer that hands back leftover data must have already
// detached.
var ErrProtocolError = errors.New("protocol: consumer returned leftover bytes while still current")

// ErrTooManyConnections is raised by Producer.NewConnection once the
// configured MaxConnections cap has been reached.
var ErrTooManyConnections = errors.New("protocol: too many connections")

// ErrWrongConsumer is raised when Connection.Finished is called with a
// consumer that is not the connection's current one.
var ErrWrongConsumer = errors.New("protocol: finished called with a consumer that is not current")
