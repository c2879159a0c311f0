package protocol

import (
	"github.com/joeycumines/go-reactor/deferred"
	"github.com/joeycumines/go-reactor/event"
)

var consumerSpec = event.Spec{
	OneShot:    []string{"finish"},
	Repeatable: []string{"data_received"},
}

// ProtocolConsumer is the application extension point: it receives bytes
// via DataReceived and produces a response, writing back
// through whatever the embedding application protocol holds a reference
// to. Concrete consumer types embed BaseConsumer (by value, not pointer,
// see ResetConnection) and implement DataReceived; StartRequest,
// ConnectionMade and ConnectionLost have BaseConsumer defaults and are
// overridden only when needed.
//
// setConnection and dataReceived are unexported so only types embedding
// BaseConsumer can satisfy this interface. The promoted methods from the
// embedded BaseConsumer provide them, which is how a consumer defined
// outside this package still implements the sealed half of the contract.
type ProtocolConsumer interface {
	DataReceived(data []byte) ([]byte, error)
	StartRequest() error
	ConnectionMade(transport Transport)
	ConnectionLost(err error)

	// Connection returns the consumer's current Connection, or nil if
	// detached.
	Connection() *Connection
	// Events returns the consumer's own Handler (one-shot "finish",
	// repeatable "data_received").
	Events() *event.Handler
	// Finished signals completion to the owning Connection, which fires
	// post_request and the consumer's finish event before detaching it.
	// Pass deferred.Nothing for result to dispatch the consumer itself.
	Finished(result any) error

	setConnection(c *Connection)
	dataReceived(data []byte) ([]byte, error)
}

// BaseConsumer implements ProtocolConsumer's bookkeeping and overridable
// default behaviors. Embed it BY VALUE in an application consumer struct:
// ResetConnection's shallow-copy semantics depend on the embedded
// *event.Handler pointer (and so the "finish" Deferred other code is
// already waiting on) surviving a plain struct copy of the consumer.
type BaseConsumer struct {
	*event.Handler

	self              ProtocolConsumer
	conn              *Connection
	request           any
	dataReceivedCount int
	requestProcessed  int
	reconnectRetries  int
}

// NewBaseConsumer constructs a BaseConsumer not yet attached to any
// Connection. self must be the concrete consumer embedding this
// BaseConsumer: it is what Events().FireEvent dispatches when event data
// is omitted, and what Connection.SetConsumer/Finished operate on.
func NewBaseConsumer(self ProtocolConsumer, request any) *BaseConsumer {
	c := &BaseConsumer{self: self, request: request, requestProcessed: 1}
	c.Handler = event.New(consumerSpec, self)
	return c
}

// StartRequest is the default no-op override point for client consumers
// that kick off a request against a remote server.
func (c *BaseConsumer) StartRequest() error { return nil }

// ConnectionMade is the default no-op override point.
func (c *BaseConsumer) ConnectionMade(Transport) {}

// ConnectionLost is the default override: signal Finished(err) to the
// owning Connection.
func (c *BaseConsumer) ConnectionLost(err error) {
	_ = c.self.Finished(err)
}

// Connection returns the consumer's current Connection, or nil if
// detached.
func (c *BaseConsumer) Connection() *Connection { return c.conn }

// Events returns the consumer's own event.Handler.
func (c *BaseConsumer) Events() *event.Handler { return c.Handler }

// Request returns the request object this consumer was last reset with
// (nil for server-side consumers, which rarely set one).
func (c *BaseConsumer) Request() any { return c.request }

// DataReceivedCount returns how many times dataReceived has run.
func (c *BaseConsumer) DataReceivedCount() int { return c.dataReceivedCount }

// RequestProcessed returns how many requests this consumer has been armed
// for: 1 at construction, plus one per NewRequest call.
func (c *BaseConsumer) RequestProcessed() int { return c.requestProcessed }

// NewRequest resets the consumer for a new request object, bumping
// RequestProcessed. Used by client consumers resubmitting a request after
// ResetConnection.
func (c *BaseConsumer) NewRequest(request any) {
	c.requestProcessed++
	c.request = request
}

// Finished signals completion to the owning Connection. A detached
// consumer (Connection already nil) is a no-op.
func (c *BaseConsumer) Finished(result any) error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Finished(c.self, result)
}

// ResetConnection detaches this consumer from its Connection and installs
// a shallow copy in its place, then immediately finishes that copy. Used
// by client consumers resubmitting a request: because the copy shares this
// BaseConsumer's *event.Handler pointer, anything already waiting on the
// finish event still observes the copy's Finished call. The concrete
// consumer type must implement `Clone() ProtocolConsumer` (a plain struct
// copy, `cp := *c; return &cp`) for this to do anything; consumers that
// don't are left untouched.
func (c *BaseConsumer) ResetConnection() {
	if c.conn == nil {
		return
	}
	cloner, ok := c.self.(interface{ Clone() ProtocolConsumer })
	if !ok {
		return
	}
	clone := cloner.Clone()
	conn := c.conn
	c.conn = nil
	conn.setCurrentConsumerUnchecked(clone)
	_ = conn.Finished(clone, deferred.Nothing)
}

func (c *BaseConsumer) setConnection(conn *Connection) { c.conn = conn }

// dataReceived wraps the concrete DataReceived override with the counter
// and retry-count reset that happen before every delegated call.
func (c *BaseConsumer) dataReceived(data []byte) ([]byte, error) {
	c.dataReceivedCount++
	c.reconnectRetries = 0
	return c.self.DataReceived(data)
}
