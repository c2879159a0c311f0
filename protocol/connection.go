package protocol

import (
	"sync"
	"time"

	"github.com/joeycumines/go-reactor/deferred"
	"github.com/joeycumines/go-reactor/event"
	"github.com/joeycumines/go-reactor/internal/obslog"
	"github.com/joeycumines/go-reactor/loop"
)

// ConsumerFactory builds a ProtocolConsumer for conn and attaches it via
// conn.SetConsumer.
type ConsumerFactory func(conn *Connection) ProtocolConsumer

var connectionSpec = event.Spec{
	OneShot:    []string{"connection_made", "connection_lost"},
	Repeatable: []string{"data_received", "pre_request", "post_request"},
}

// Connection binds a Transport to a current ProtocolConsumer, routing
// received bytes to it and firing lifecycle events. State progresses
// unbound -> bound -> made -> lost as SetConsumer, ConnectionMade, and
// ConnectionLost are called; Connection owns its current consumer and
// idle-timer handle exclusively, and only holds a non-owning reference to
// its Producer.
type Connection struct {
	*event.Handler

	address   string
	session   int
	timeout   time.Duration
	factory   ConsumerFactory
	producer  *Producer
	lp        loop.Loop
	log       obslog.Logger

	mu        sync.Mutex
	transport Transport
	consumer  ProtocolConsumer
	processed int
	idleTimer loop.Timer
}

// Option configures a Connection at construction.
type Option func(*Connection)

// WithLogger overrides the logger used for idle-timeout notices, instead
// of obslog.Default().
func WithLogger(l obslog.Logger) Option {
	return func(c *Connection) { c.log = l }
}

// NewConnection constructs a Connection bound to address and session,
// with the given idle timeout, consumer factory, owning producer and
// loop. It has no transport until ConnectionMade is called.
func NewConnection(address string, session int, timeout time.Duration, factory ConsumerFactory, producer *Producer, lp loop.Loop, opts ...Option) *Connection {
	c := &Connection{
		address:  address,
		session:  session,
		timeout:  timeout,
		factory:  factory,
		producer: producer,
		lp:       lp,
	}
	c.Handler = event.New(connectionSpec, c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Address returns the connection's remote address.
func (c *Connection) Address() string { return c.address }

// Session returns the connection's session id, monotone per Producer.
func (c *Connection) Session() int { return c.session }

// Timeout returns the configured idle timeout.
func (c *Connection) Timeout() time.Duration { return c.timeout }

// Processed returns the number of consumers this connection has hosted.
func (c *Connection) Processed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processed
}

// Producer returns the connection's owning Producer.
func (c *Connection) Producer() *Producer { return c.producer }

// CurrentConsumer returns the consumer currently handling incoming data,
// or nil.
func (c *Connection) CurrentConsumer() ProtocolConsumer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.consumer
}

// Upgrade atomically replaces the consumer factory mid-stream, for
// protocol upgrades such as WebSocket.
func (c *Connection) Upgrade(factory ConsumerFactory) {
	c.mu.Lock()
	c.factory = factory
	c.mu.Unlock()
}

// SetConsumer installs consumer as the connection's current consumer. It
// is a programming error to call this while a consumer is already
// current.
func (c *Connection) SetConsumer(consumer ProtocolConsumer) {
	c.mu.Lock()
	if c.consumer != nil {
		c.mu.Unlock()
		panic("protocol: connection already has a current consumer")
	}
	c.consumer = consumer
	c.processed++
	c.mu.Unlock()
	consumer.setConnection(c)
	c.FireEvent("pre_request", consumer)
}

// setCurrentConsumerUnchecked installs consumer without the
// already-current assertion, processed counter bump, or pre_request event.
// Used only by BaseConsumer.ResetConnection to install a shallow-copied
// consumer that is about to be immediately finished.
func (c *Connection) setCurrentConsumerUnchecked(consumer ProtocolConsumer) {
	c.mu.Lock()
	c.consumer = consumer
	c.mu.Unlock()
}

// ConnectionMade stores transport, fires the connection_made one-shot
// event, and arms the idle timer.
func (c *Connection) ConnectionMade(transport Transport) {
	c.mu.Lock()
	c.transport = transport
	c.mu.Unlock()
	c.FireEvent("connection_made", deferred.Nothing)
	c.armIdleTimeout()
}

// DataReceived cancels the idle timer, routes data to the current
// consumer (creating one via the factory if none is current), and
// re-arms the idle timer once data is exhausted. A consumer that returns
// non-empty leftover bytes while still current is a protocol error: any
// consumer that hands back leftover data must have already detached.
func (c *Connection) DataReceived(data []byte) error {
	c.cancelIdleTimeout()

	for len(data) > 0 {
		consumer := c.CurrentConsumer()
		if consumer == nil {
			consumer = c.factory(c)
		}
		leftover, err := consumer.dataReceived(data)
		if err != nil {
			return err
		}
		data = leftover
		if len(data) > 0 && c.CurrentConsumer() == consumer {
			return ErrProtocolError
		}
	}

	c.armIdleTimeout()
	return nil
}

// ConnectionLost cancels the idle timer, fires the connection_lost
// one-shot event with err, and delegates connection_lost to the current
// consumer if one exists.
func (c *Connection) ConnectionLost(err error) {
	c.cancelIdleTimeout()
	c.FireEvent("connection_lost", err)

	consumer := c.CurrentConsumer()
	if consumer != nil {
		consumer.ConnectionLost(err)
	}
}

// Finished validates that consumer is the current one, fires
// post_request and the consumer's own finish event (in that order, so
// both observe the consumer as still attached), then detaches it.
func (c *Connection) Finished(consumer ProtocolConsumer, result any) error {
	current := c.CurrentConsumer()
	if current != consumer {
		return ErrWrongConsumer
	}

	c.FireEvent("post_request", consumer)
	consumer.Events().FireEvent("finish", result)

	c.mu.Lock()
	c.consumer = nil
	c.mu.Unlock()
	consumer.setConnection(nil)
	return nil
}

// closeTransport closes the connection's transport, if one is attached.
func (c *Connection) closeTransport(async bool) error {
	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()
	if t == nil {
		return nil
	}
	return t.Close(async)
}

func (c *Connection) armIdleTimeout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timeout <= 0 || c.idleTimer != nil || c.lp == nil {
		return
	}
	c.idleTimer = c.lp.CallLater(c.timeout, c.onIdleTimeout)
}

func (c *Connection) cancelIdleTimeout() {
	c.mu.Lock()
	t := c.idleTimer
	c.idleTimer = nil
	c.mu.Unlock()
	if t != nil {
		t.Cancel()
	}
}

func (c *Connection) onIdleTimeout() {
	c.mu.Lock()
	c.idleTimer = nil
	transport := c.transport
	c.mu.Unlock()

	c.logger().Warn("connection idle for timeout, closing",
		obslog.Str("address", c.address),
		obslog.Int("session", c.session),
	)
	if transport != nil {
		_ = transport.Close(true)
	}
}

func (c *Connection) logger() obslog.Logger {
	if c.log != nil {
		return c.log
	}
	return obslog.Default()
}
