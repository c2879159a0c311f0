package protocol

import (
	"sync"
	"time"

	"github.com/joeycumines/go-reactor/event"
	"github.com/joeycumines/go-reactor/internal/obslog"
	"github.com/joeycumines/go-reactor/loop"
)

// ConnectionFactory builds the Connection a Producer hands back from
// NewConnection. The default wraps NewConnection directly; override it
// (e.g. via WithConnectionFactory) to substitute a Connection subtype.
type ConnectionFactory func(address string, session int, timeout time.Duration, factory ConsumerFactory, producer *Producer) *Connection

var producerSpec = event.Spec{
	Repeatable: []string{"data_received", "pre_request", "post_request"},
}

// Producer is a Connection factory and registry that enforces a
// connection cap and propagates its repeatable event bindings onto
// every Connection it creates.
type Producer struct {
	*event.Handler

	connFactory ConnectionFactory
	timeout     time.Duration
	maxConn     int
	lp          loop.Loop
	log         obslog.Logger

	mu          sync.Mutex
	received    int
	connections map[*Connection]struct{}
}

// ProducerOption configures a Producer at construction.
type ProducerOption func(*Producer)

// WithMaxConnections caps the total number of connections NewConnection
// creates over the Producer's lifetime (Received), not the number currently
// open; 0 (the default) means unlimited.
func WithMaxConnections(n int) ProducerOption {
	return func(p *Producer) { p.maxConn = n }
}

// WithIdleTimeout sets the default idle timeout handed to every
// Connection this Producer creates.
func WithIdleTimeout(d time.Duration) ProducerOption {
	return func(p *Producer) { p.timeout = d }
}

// WithConnectionFactory overrides how NewConnection builds its
// Connection, instead of the default NewConnection-backed factory.
func WithConnectionFactory(f ConnectionFactory) ProducerOption {
	return func(p *Producer) { p.connFactory = f }
}

// WithProducerLoop sets the loop.Loop every Connection this Producer
// creates is bound to, for idle-timer scheduling.
func WithProducerLoop(l loop.Loop) ProducerOption {
	return func(p *Producer) { p.lp = l }
}

// WithProducerLogger overrides the logger Connections created by this
// Producer use, instead of obslog.Default().
func WithProducerLogger(l obslog.Logger) ProducerOption {
	return func(p *Producer) { p.log = l }
}

// NewProducer constructs a Producer with no connections yet created.
func NewProducer(opts ...ProducerOption) *Producer {
	p := &Producer{connections: make(map[*Connection]struct{})}
	p.Handler = event.New(producerSpec, p)
	p.connFactory = func(address string, session int, timeout time.Duration, factory ConsumerFactory, producer *Producer) *Connection {
		var connOpts []Option
		if producer.log != nil {
			connOpts = append(connOpts, WithLogger(producer.log))
		}
		return NewConnection(address, session, timeout, factory, producer, producer.lp, connOpts...)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Received returns the total number of connections this Producer has
// ever created, monotonically nondecreasing.
func (p *Producer) Received() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.received
}

// ConcurrentConnections returns the number of connections currently
// tracked as made-but-not-lost.
func (p *Producer) ConcurrentConnections() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.connections)
}

// MaxConnections returns the configured cap on connections created
// (0 = unlimited).
func (p *Producer) MaxConnections() int { return p.maxConn }

// Timeout returns the default idle timeout handed to new Connections.
func (p *Producer) Timeout() time.Duration { return p.timeout }

// NewConnection creates a Connection for address, not yet connected. If
// producer is nil, this Producer is used as the connection's owning
// producer. The caller is expected to supply another Producer only when
// building a connection pool that defers accounting elsewhere (e.g. a
// client pool vs. the pool's owning client).
func (p *Producer) NewConnection(address string, factory ConsumerFactory, producer *Producer) (*Connection, error) {
	p.mu.Lock()
	if p.maxConn > 0 && p.received >= p.maxConn {
		p.mu.Unlock()
		return nil, ErrTooManyConnections
	}
	p.received++
	session := p.received
	p.mu.Unlock()

	if producer == nil {
		producer = p
	}
	conn := p.connFactory(address, session, p.timeout, factory, producer)
	conn.BindEvent("connection_made", func(any) { p.addConnection(conn) })
	conn.CopyManyTimesEvents(p.Handler)
	conn.BindEvent("connection_lost", func(any) { p.removeConnection(conn) })
	return conn, nil
}

// CloseConnections closes conn's transport if non-nil, else every
// connection this Producer currently tracks.
func (p *Producer) CloseConnections(conn *Connection, async bool) error {
	if conn != nil {
		return conn.closeTransport(async)
	}
	p.mu.Lock()
	conns := make([]*Connection, 0, len(p.connections))
	for c := range p.connections {
		conns = append(conns, c)
	}
	p.mu.Unlock()

	for _, c := range conns {
		if err := c.closeTransport(async); err != nil {
			return err
		}
	}
	return nil
}

func (p *Producer) addConnection(c *Connection) {
	p.mu.Lock()
	p.connections[c] = struct{}{}
	p.mu.Unlock()
}

func (p *Producer) removeConnection(c *Connection) {
	p.mu.Lock()
	delete(p.connections, c)
	p.mu.Unlock()
}
