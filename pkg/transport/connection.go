package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/eiscp-protocol/eiscp-go/pkg/log"
	"github.com/eiscp-protocol/eiscp-go/pkg/wire"
)

// Connection states.
type ConnectionState int

const (
	// StateDisconnected indicates no connection.
	StateDisconnected ConnectionState = iota

	// StateConnecting indicates connection in progress.
	StateConnecting

	// StateConnected indicates an active connection.
	StateConnected

	// StateClosing indicates close in progress.
	StateClosing
)

// String returns the connection state name.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateClosing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}

// Connection errors.
var (
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
	ErrConnectionClosed = errors.New("connection closed")
)

// DefaultPort is the control port receivers listen on.
const DefaultPort = 60128

// ConnectionConfig configures a receiver connection.
type ConnectionConfig struct {
	// Port is the TCP control port (default: 60128).
	Port int

	// ConnectTimeout bounds the dial (default: 10s).
	ConnectTimeout time.Duration

	// WriteTimeout is the timeout for write operations (0 = no timeout).
	WriteTimeout time.Duration

	// CloseTimeout bounds waiting for the read loop to exit (default: 5s).
	CloseTimeout time.Duration

	// Liveness configures silent-line probing.
	Liveness LivenessConfig

	// Logger receives wire and transport events.
	Logger log.Logger
}

// DefaultConnectionConfig returns the default connection configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		Port:           DefaultPort,
		ConnectTimeout: 10 * time.Second,
		CloseTimeout:   5 * time.Second,
		Liveness:       DefaultLivenessConfig(),
	}
}

// ConnectionHandler handles connection events.
type ConnectionHandler interface {
	// OnMessage is called for every decoded inbound message, solicited
	// or not, on the read loop goroutine.
	OnMessage(msg *wire.Message)

	// OnStateChange is called when the connection state changes.
	OnStateChange(oldState, newState ConnectionState)

	// OnError is called when an error occurs. Malformed-message errors
	// are informational; the read loop keeps running after them.
	OnError(err error)
}

// Connection is one TCP session to a receiver.
type Connection struct {
	config  ConnectionConfig
	handler ConnectionHandler

	// id tags this session's log events.
	id string

	conn   net.Conn
	reader *wire.FrameReader
	writer *wire.FrameWriter

	liveness *Liveness

	state     atomic.Int32
	closeOnce sync.Once
	closeDone chan struct{}

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewConnection creates a new connection (not yet connected).
func NewConnection(config ConnectionConfig, handler ConnectionHandler) *Connection {
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 10 * time.Second
	}
	if config.CloseTimeout == 0 {
		config.CloseTimeout = 5 * time.Second
	}
	if config.Logger == nil {
		config.Logger = log.NoopLogger{}
	}

	c := &Connection{
		config:    config,
		handler:   handler,
		id:        uuid.NewString(),
		closeDone: make(chan struct{}),
	}
	c.state.Store(int32(StateDisconnected))

	return c
}

// ID returns the session identifier used in log events.
func (c *Connection) ID() string {
	return c.id
}

// State returns the current connection state.
func (c *Connection) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// Connect dials the receiver at hostname and starts the read loop.
// A Connection is single-use: after Close it cannot be reconnected,
// make a new one instead.
func (c *Connection) Connect(ctx context.Context, host string) error {
	if !c.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		return ErrAlreadyConnected
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.notifyStateChange(StateDisconnected, StateConnecting)

	address := net.JoinHostPort(host, strconv.Itoa(c.config.Port))
	dialer := &net.Dialer{Timeout: c.config.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		c.state.Store(int32(StateDisconnected))
		c.notifyStateChange(StateConnecting, StateDisconnected)
		return fmt.Errorf("dial %s failed: %w", address, err)
	}

	if !c.attach(conn) {
		return ErrConnectionClosed
	}
	return nil
}

// Attach adopts an already-open stream, used by tests to drive a
// connection over an in-memory pipe.
func (c *Connection) Attach(ctx context.Context, conn net.Conn) error {
	if !c.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		return ErrAlreadyConnected
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.notifyStateChange(StateDisconnected, StateConnecting)
	if !c.attach(conn) {
		return ErrConnectionClosed
	}
	return nil
}

// attach wires the stream up and moves Connecting to Connected. It
// reports false when Close won the race in between; the fresh stream
// is closed and the read loop never starts.
func (c *Connection) attach(conn net.Conn) bool {
	remote := ""
	if addr := conn.RemoteAddr(); addr != nil {
		remote = addr.String()
	}

	reader := wire.NewFrameReader(conn)
	reader.SetLogger(c.config.Logger, c.id)
	writer := wire.NewFrameWriter(conn)
	writer.SetLogger(c.config.Logger, c.id)

	c.mu.Lock()
	c.conn = conn
	c.reader = reader
	c.writer = writer
	c.mu.Unlock()

	if !c.state.CompareAndSwap(int32(StateConnecting), int32(StateConnected)) {
		c.mu.Lock()
		c.conn = nil
		c.reader = nil
		c.writer = nil
		c.mu.Unlock()
		conn.Close()
		// The read loop never ran, so Close is still waiting on it.
		close(c.closeDone)
		return false
	}

	c.startLiveness()
	go c.readLoop()

	c.notifyStateChange(StateConnecting, StateConnected)

	c.config.Logger.Log(log.Event{
		Timestamp:    time.Now().UTC(),
		ConnectionID: c.id,
		Direction:    log.DirectionOut,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		RemoteAddr:   remote,
		StateChange: &log.StateChangeEvent{
			OldState: StateConnecting.String(),
			NewState: StateConnected.String(),
		},
	})
	return true
}

// Send writes one message to the device. Writes are serialized; the wire
// protocol has no multiplexing and interleaved partial writes corrupt
// the stream.
func (c *Connection) Send(msg *wire.Message) error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}

	c.mu.RLock()
	writer := c.writer
	conn := c.conn
	c.mu.RUnlock()

	if writer == nil {
		return ErrNotConnected
	}

	if c.config.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
		defer conn.SetWriteDeadline(time.Time{})
	}

	return writer.WriteMessage(msg)
}

// Close tears the connection down. Idempotent; the read loop has exited
// by the time Close returns (bounded by CloseTimeout).
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		currentState := c.State()
		if currentState == StateDisconnected {
			close(c.closeDone)
			return
		}

		c.state.Store(int32(StateClosing))
		c.notifyStateChange(currentState, StateClosing)

		if c.liveness != nil {
			c.liveness.Stop()
		}
		if c.cancel != nil {
			c.cancel()
		}

		// Closing the socket unblocks the read loop.
		c.mu.Lock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.mu.Unlock()

		select {
		case <-c.closeDone:
		case <-time.After(c.config.CloseTimeout):
		}

		c.mu.Lock()
		c.conn = nil
		c.reader = nil
		c.writer = nil
		c.mu.Unlock()

		c.state.Store(int32(StateDisconnected))
		c.notifyStateChange(StateClosing, StateDisconnected)
	})

	return nil
}

// LocalAddr returns the local network address.
func (c *Connection) LocalAddr() net.Addr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn != nil {
		return c.conn.LocalAddr()
	}
	return nil
}

// RemoteAddr returns the remote network address.
func (c *Connection) RemoteAddr() net.Addr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn != nil {
		return c.conn.RemoteAddr()
	}
	return nil
}

// startLiveness begins silent-line probing.
func (c *Connection) startLiveness() {
	c.liveness = NewLiveness(
		c.config.Liveness,
		func() error {
			return c.Send(wire.NewMessage("PWR", "QSTN"))
		},
		func() {
			c.handler.OnError(fmt.Errorf("liveness probe timeout"))
			go c.Close()
		},
	)
	c.liveness.Start(c.ctx)
}

// readLoop decodes inbound packets until the stream dies.
func (c *Connection) readLoop() {
	defer close(c.closeDone)

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.mu.RLock()
		reader := c.reader
		c.mu.RUnlock()

		if reader == nil {
			return
		}

		msg, err := reader.ReadMessage()
		if err != nil {
			// Garbage in the stream is survivable; the reader resyncs
			// on the next packet boundary.
			if errors.Is(err, wire.ErrMalformedMessage) || errors.Is(err, wire.ErrBadHeader) {
				c.handler.OnError(err)
				continue
			}
			if c.State() == StateClosing || c.ctx.Err() != nil {
				return
			}
			c.handler.OnError(fmt.Errorf("read error: %w", err))
			go c.Close()
			return
		}

		if c.liveness != nil {
			c.liveness.MessageReceived()
		}
		c.handler.OnMessage(msg)
	}
}

// notifyStateChange notifies the handler of state changes.
func (c *Connection) notifyStateChange(oldState, newState ConnectionState) {
	if c.handler != nil {
		c.handler.OnStateChange(oldState, newState)
	}
}
