package connection

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Connection lifecycle errors.
var (
	ErrManagerClosed    = errors.New("connection manager closed")
	ErrAlreadyConnected = errors.New("already connected")
)

// reconnectAttemptTimeout bounds a single reconnection attempt.
const reconnectAttemptTimeout = 30 * time.Second

// State represents the managed connection state.
type State uint8

const (
	// StateDisconnected indicates no active connection and no attempt
	// in progress.
	StateDisconnected State = iota

	// StateConnecting indicates a caller-initiated attempt is in
	// progress.
	StateConnecting

	// StateConnected indicates an active connection.
	StateConnected

	// StateReconnecting indicates automatic reconnection is in
	// progress.
	StateReconnecting

	// StateClosed indicates the manager has been shut down.
	StateClosed
)

// String returns the state name.
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

// ConnectFunc performs one connection attempt: dial, handshake, and
// whatever session setup the caller needs. A nil return marks the
// attempt successful and resets the backoff.
type ConnectFunc func(ctx context.Context) error

// Manager drives a single logical connection through connect, loss and
// reconnect. The caller reports connection loss via ConnectionLost;
// the manager schedules new attempts on the backoff schedule.
type Manager struct {
	mu    sync.RWMutex
	state State

	connectFn     ConnectFunc
	backoff       *Backoff
	autoReconnect bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	wake   chan struct{}

	onStateChange  func(oldState, newState State)
	onConnected    func()
	onDisconnected func()
	onReconnecting func(attempt int, delay time.Duration)
}

// NewManager creates a manager around the given connect function.
// Automatic reconnection is enabled by default; call
// StartReconnectLoop to activate it.
func NewManager(connectFn ConnectFunc) *Manager {
	return NewManagerWithBackoff(connectFn, NewBackoff())
}

// NewManagerWithBackoff creates a manager with a custom backoff
// schedule.
func NewManagerWithBackoff(connectFn ConnectFunc, backoff *Backoff) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		state:         StateDisconnected,
		connectFn:     connectFn,
		backoff:       backoff,
		autoReconnect: true,
		ctx:           ctx,
		cancel:        cancel,
		wake:          make(chan struct{}, 1),
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsConnected reports whether a connection is currently active.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// SetAutoReconnect enables or disables automatic reconnection.
func (m *Manager) SetAutoReconnect(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoReconnect = enabled
}

// BackoffAttempts returns the number of reconnection attempts since
// the last successful connection.
func (m *Manager) BackoffAttempts() int {
	return m.backoff.Attempts()
}

// Connect performs a caller-initiated connection attempt.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateConnected:
		m.mu.Unlock()
		return ErrAlreadyConnected
	case StateClosed:
		m.mu.Unlock()
		return ErrManagerClosed
	}
	old := m.state
	m.state = StateConnecting
	m.mu.Unlock()
	m.notifyStateChange(old, StateConnecting)

	if err := m.connectFn(ctx); err != nil {
		m.transition(StateConnecting, StateDisconnected)
		return err
	}

	m.backoff.Reset()
	m.transition(StateConnecting, StateConnected)
	if m.onConnected != nil {
		m.onConnected()
	}
	return nil
}

// ConnectionLost reports that the active connection failed or was
// closed by the peer. With auto-reconnect enabled the manager begins
// reconnecting; otherwise it goes back to DISCONNECTED.
func (m *Manager) ConnectionLost() {
	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	auto := m.autoReconnect
	next := StateDisconnected
	if auto {
		next = StateReconnecting
	}
	m.state = next
	m.mu.Unlock()

	m.notifyStateChange(StateConnected, next)
	if m.onDisconnected != nil {
		m.onDisconnected()
	}
	if auto {
		m.wakeLoop()
	}
}

// Disconnect is ConnectionLost for a deliberate local close: it obeys
// the same auto-reconnect policy.
func (m *Manager) Disconnect() {
	m.ConnectionLost()
}

// StartReconnectLoop starts the background reconnection goroutine.
// Must be called once before automatic reconnection takes effect.
func (m *Manager) StartReconnectLoop() {
	m.wg.Add(1)
	go m.reconnectLoop()
}

// Close shuts the manager down and stops any reconnection in
// progress. Idempotent.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	old := m.state
	m.state = StateClosed
	m.mu.Unlock()

	m.notifyStateChange(old, StateClosed)
	m.cancel()
	m.wg.Wait()
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

// OnDisconnected sets a callback for connection loss.
func (m *Manager) OnDisconnected(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnected = fn
}

// OnReconnecting sets a callback invoked before each reconnection
// delay.
func (m *Manager) OnReconnecting(fn func(attempt int, delay time.Duration)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReconnecting = fn
}

func (m *Manager) wakeLoop() {
	select {
	case m.wake <- struct{}{}:
	default:
		// A reconnect round is already pending.
	}
}

func (m *Manager) reconnectLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.wake:
			m.reconnect()
		}
	}
}

// reconnect retries until connected, closed, or the context ends.
func (m *Manager) reconnect() {
	for {
		switch m.State() {
		case StateClosed, StateConnected:
			return
		}

		delay := m.backoff.Next()
		if m.onReconnecting != nil {
			m.onReconnecting(m.backoff.Attempts(), delay)
		}

		select {
		case <-m.ctx.Done():
			return
		case <-time.After(delay):
		}

		switch m.State() {
		case StateClosed, StateConnected:
			return
		}

		ctx, cancel := context.WithTimeout(m.ctx, reconnectAttemptTimeout)
		err := m.connectFn(ctx)
		cancel()
		if err != nil {
			continue
		}

		m.mu.Lock()
		old := m.state
		m.state = StateConnected
		m.mu.Unlock()
		m.backoff.Reset()

		m.notifyStateChange(old, StateConnected)
		if m.onConnected != nil {
			m.onConnected()
		}
		return
	}
}

func (m *Manager) transition(oldState, newState State) {
	m.mu.Lock()
	m.state = newState
	m.mu.Unlock()
	m.notifyStateChange(oldState, newState)
}

func (m *Manager) notifyStateChange(oldState, newState State) {
	if m.onStateChange != nil {
		m.onStateChange(oldState, newState)
	}
}
