package connection

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Manager errors.
var (
	ErrManagerClosed    = errors.New("connection manager closed")
	ErrAlreadyConnected = errors.New("already connected")
	ErrRetriesExhausted = errors.New("reconnect attempts exhausted")
)

// State represents the managed connection state.
type State uint8

const (
	// StateDisconnected indicates no active connection.
	StateDisconnected State = iota

	// StateConnecting indicates a connection attempt is in progress.
	StateConnecting

	// StateConnected indicates an active connection.
	StateConnected

	// StateReconnecting indicates automatic reconnection is in progress.
	StateReconnecting

	// StateClosed indicates the connection manager has been closed.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ConnectFunc establishes one fresh session. Implementations must build
// a new transport connection per call; sessions are never reused.
type ConnectFunc func(ctx context.Context) error

// ManagerConfig configures a connection manager.
type ManagerConfig struct {
	// Backoff tunes the delay between reconnect attempts.
	Backoff BackoffConfig

	// MaxAttempts bounds one reconnection episode (0 = unlimited).
	MaxAttempts int

	// AttemptTimeout bounds a single connect attempt (default: 30s).
	AttemptTimeout time.Duration
}

// Manager manages connection lifecycle with automatic reconnection.
type Manager struct {
	mu sync.RWMutex

	state State

	// stateWake is closed and replaced on every state transition. A
	// Connect that finds a dial already in flight parks on it instead
	// of dialing a second session.
	stateWake chan struct{}

	backoff   *Backoff
	connectFn ConnectFunc

	maxAttempts    int
	attemptTimeout time.Duration
	autoReconnect  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	reconnectCh chan struct{}

	// Callbacks
	onStateChange  func(oldState, newState State)
	onConnected    func()
	onDisconnected func()
	onReconnecting func(attempt int, delay time.Duration)
	onGiveUp       func(err error)
}

// NewManager creates a new connection manager.
func NewManager(connectFn ConnectFunc) *Manager {
	return NewManagerWithConfig(connectFn, ManagerConfig{})
}

// NewManagerWithConfig creates a connection manager with custom settings.
func NewManagerWithConfig(connectFn ConnectFunc, cfg ManagerConfig) *Manager {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		state:          StateDisconnected,
		stateWake:      make(chan struct{}),
		backoff:        NewBackoffWithConfig(cfg.Backoff),
		connectFn:      connectFn,
		maxAttempts:    cfg.MaxAttempts,
		attemptTimeout: cfg.AttemptTimeout,
		autoReconnect:  true,
		ctx:            ctx,
		cancel:         cancel,
		reconnectCh:    make(chan struct{}, 1),
	}
}

// setStateLocked records a transition and wakes Connect callers parked
// on an in-flight dial. Callers hold m.mu.
func (m *Manager) setStateLocked(s State) {
	m.state = s
	close(m.stateWake)
	m.stateWake = make(chan struct{})
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsConnected returns true if currently connected.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// SetAutoReconnect enables or disables automatic reconnection.
func (m *Manager) SetAutoReconnect(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoReconnect = enabled
}

// Connect performs a caller-driven connection attempt. No retry happens
// here; failures are returned to the caller. When a dial is already in
// flight, Connect joins it instead of opening a second session: each
// session carries its own read loop, and there must only ever be one.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	joined := false
	for m.state == StateConnecting || m.state == StateReconnecting {
		wake := m.stateWake
		m.mu.Unlock()
		joined = true
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wake:
		}
		m.mu.Lock()
	}
	switch m.state {
	case StateConnected:
		m.mu.Unlock()
		if joined {
			// The dial this call waited on succeeded.
			return nil
		}
		return ErrAlreadyConnected
	case StateClosed:
		m.mu.Unlock()
		return ErrManagerClosed
	}
	oldState := m.state
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	m.notifyStateChange(oldState, StateConnecting)

	if err := m.connectFn(ctx); err != nil {
		m.mu.Lock()
		m.setStateLocked(StateDisconnected)
		m.mu.Unlock()
		m.notifyStateChange(StateConnecting, StateDisconnected)
		return err
	}

	m.mu.Lock()
	m.setStateLocked(StateConnected)
	m.backoff.Reset()
	m.mu.Unlock()

	m.notifyStateChange(StateConnecting, StateConnected)
	if m.onConnected != nil {
		m.onConnected()
	}
	return nil
}

// ConnectionLost reports that the active session died. If auto-reconnect
// is enabled a background reconnection episode starts.
func (m *Manager) ConnectionLost() {
	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return
	}

	oldState := m.state
	autoReconnect := m.autoReconnect
	if autoReconnect {
		m.setStateLocked(StateReconnecting)
	} else {
		m.setStateLocked(StateDisconnected)
	}
	newState := m.state
	m.mu.Unlock()

	m.notifyStateChange(oldState, newState)
	if m.onDisconnected != nil {
		m.onDisconnected()
	}

	if autoReconnect {
		m.triggerReconnect()
	}
}

// StartReconnectLoop starts the background reconnection loop.
// Must be called once before automatic reconnection will work.
func (m *Manager) StartReconnectLoop() {
	m.wg.Add(1)
	go m.reconnectLoop()
}

// Close shuts down the connection manager.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	oldState := m.state
	m.setStateLocked(StateClosed)
	m.mu.Unlock()

	m.notifyStateChange(oldState, StateClosed)

	m.cancel()
	m.wg.Wait()
}

// triggerReconnect signals that reconnection should be attempted.
func (m *Manager) triggerReconnect() {
	select {
	case m.reconnectCh <- struct{}{}:
	default:
		// Already pending
	}
}

// reconnectLoop runs in a goroutine and handles reconnection episodes.
func (m *Manager) reconnectLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.reconnectCh:
			m.attemptReconnect()
		}
	}
}

// attemptReconnect performs one reconnection episode with backoff. A
// caller-driven dial in flight (StateConnecting) ends the episode; two
// sessions must never be dialed at once.
func (m *Manager) attemptReconnect() {
	for {
		switch m.State() {
		case StateClosed, StateConnected, StateConnecting:
			return
		}

		if m.maxAttempts > 0 && m.backoff.Attempts() >= m.maxAttempts {
			m.giveUp()
			return
		}

		delay := m.backoff.Next()
		attempt := m.backoff.Attempts()

		if m.onReconnecting != nil {
			m.onReconnecting(attempt, delay)
		}

		select {
		case <-m.ctx.Done():
			return
		case <-time.After(delay):
		}

		switch m.State() {
		case StateClosed, StateConnected, StateConnecting:
			return
		}

		ctx, cancel := context.WithTimeout(m.ctx, m.attemptTimeout)
		err := m.connectFn(ctx)
		cancel()

		if err == nil {
			m.mu.Lock()
			oldState := m.state
			m.setStateLocked(StateConnected)
			m.backoff.Reset()
			m.mu.Unlock()

			m.notifyStateChange(oldState, StateConnected)
			if m.onConnected != nil {
				m.onConnected()
			}
			return
		}
		// Failed, loop with the next backoff delay.
	}
}

// giveUp ends a reconnection episode that ran out of attempts.
func (m *Manager) giveUp() {
	m.mu.Lock()
	oldState := m.state
	m.setStateLocked(StateDisconnected)
	m.backoff.Reset()
	m.mu.Unlock()

	m.notifyStateChange(oldState, StateDisconnected)
	if m.onGiveUp != nil {
		m.onGiveUp(ErrRetriesExhausted)
	}
}

// notifyStateChange invokes the state-change callback when set.
func (m *Manager) notifyStateChange(oldState, newState State) {
	if m.onStateChange != nil {
		m.onStateChange(oldState, newState)
	}
}

// OnStateChange sets a callback for state changes.
func (m *Manager) OnStateChange(fn func(oldState, newState State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

// OnConnected sets a callback for successful connection.
func (m *Manager) OnConnected(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnected = fn
}

// OnDisconnected sets a callback for disconnection.
func (m *Manager) OnDisconnected(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnected = fn
}

// OnReconnecting sets a callback for reconnection attempts.
func (m *Manager) OnReconnecting(fn func(attempt int, delay time.Duration)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReconnecting = fn
}

// OnGiveUp sets a callback for exhausted reconnection episodes.
func (m *Manager) OnGiveUp(fn func(err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onGiveUp = fn
}

// BackoffAttempts returns the attempt count of the current episode.
func (m *Manager) BackoffAttempts() int {
	return m.backoff.Attempts()
}
