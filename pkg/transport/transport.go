package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/slink-protocol/slink-go/pkg/cert"
	"github.com/slink-protocol/slink-go/pkg/log"
)

// Transport states.
type State int32

const (
	// StateUninitialized indicates Init has not been called.
	StateUninitialized State = iota

	// StateHandshaking indicates Init is in progress.
	StateHandshaking

	// StateConnected indicates an established session.
	StateConnected

	// StateClosed indicates the transport has been closed.
	StateClosed
)

// String returns the transport state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateHandshaking:
		return "HANDSHAKING"
	case StateConnected:
		return "CONNECTED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Config configures a Transport.
type Config struct {
	// Credential is the local identity. Required.
	Credential *cert.Credential

	// Host is the peer host (client role) or bind host (server role,
	// may be empty for all interfaces).
	Host string

	// Port is the peer/listen port (default: 443).
	Port int

	// TLS holds peer verification settings. The Credential field is
	// populated from Credential automatically.
	TLS *TLSConfig

	// MaxMessageSize is the maximum message size (default: 64KB).
	MaxMessageSize uint32

	// PollInterval bounds how long Receive blocks waiting for data
	// (default: 50ms).
	PollInterval time.Duration

	// Logger for protocol logging (optional).
	Logger log.Logger
}

// Transport is a single-connection secure framed transport. One
// Transport is driven by one logical flow of control; it owns exactly
// one Session and one underlying connection.
type Transport struct {
	mu    sync.Mutex
	state atomic.Int32

	cfg    Config
	connID string
	role   Role

	listener net.Listener
	session  *Session
	framer   *Framer

	readMu sync.Mutex
}

// NewTransport creates a transport in the UNINITIALIZED state.
func NewTransport(cfg Config) (*Transport, error) {
	if cfg.Credential == nil {
		return nil, fmt.Errorf("credential is required")
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.MaxMessageSize == 0 {
		cfg.MaxMessageSize = DefaultMaxMessageSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.TLS == nil {
		cfg.TLS = &TLSConfig{}
	}
	cfg.TLS.Credential = cfg.Credential

	t := &Transport{
		cfg:    cfg,
		connID: uuid.New().String(),
	}
	t.state.Store(int32(StateUninitialized))
	return t, nil
}

// State returns the current transport state.
func (t *Transport) State() State {
	return State(t.state.Load())
}

// ConnID returns the unique connection identifier.
func (t *Transport) ConnID() string {
	return t.connID
}

// SetHost sets the peer host. Only valid before Init.
func (t *Transport) SetHost(host string) error {
	if t.State() != StateUninitialized {
		return ErrAlreadyInitialized
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cfg.Host = host
	return nil
}

// SetPort sets the peer/listen port. Only valid before Init.
func (t *Transport) SetPort(port int) error {
	if t.State() != StateUninitialized {
		return ErrAlreadyInitialized
	}
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port: %d", port)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cfg.Port = port
	return nil
}

// Init establishes the connection for the given role and drives the
// TLS handshake to completion. It blocks until the transport is
// CONNECTED or failed; on failure every partially acquired resource is
// released and the transport is left CLOSED.
func (t *Transport) Init(ctx context.Context, role Role) error {
	if !role.IsValid() {
		return fmt.Errorf("%w: %d", ErrInvalidRole, role)
	}
	if !t.state.CompareAndSwap(int32(StateUninitialized), int32(StateHandshaking)) {
		if t.State() == StateClosed {
			return ErrClosed
		}
		return ErrAlreadyInitialized
	}
	t.logStateChange(StateUninitialized, StateHandshaking, "")
	t.role = role

	tlsConf, err := newRoleTLSConfig(role, t.cfg.TLS)
	if err != nil {
		return t.failInit("tls config", err)
	}

	var raw net.Conn
	switch role {
	case RoleClient:
		raw, err = t.dial(ctx)
	case RoleServer:
		raw, err = t.acceptOne(ctx)
	}
	if err != nil {
		return t.failInit("connect", err)
	}

	session, err := handshake(ctx, raw, role, tlsConf, t.cfg.PollInterval)
	if err != nil {
		return t.failInit("handshake", err)
	}

	t.mu.Lock()
	t.session = session
	t.framer = NewFramerWithMaxSize(session, t.cfg.MaxMessageSize)
	if t.cfg.Logger != nil {
		t.framer.SetLogger(t.cfg.Logger, t.connID)
	}
	t.mu.Unlock()

	// Close may race the end of the handshake; CONNECTED is only valid
	// from HANDSHAKING, never from CLOSED.
	if !t.state.CompareAndSwap(int32(StateHandshaking), int32(StateConnected)) {
		t.mu.Lock()
		t.session = nil
		t.framer = nil
		t.mu.Unlock()
		session.Shutdown()
		return ErrClosed
	}

	t.logHandshake(session)
	t.logStateChange(StateHandshaking, StateConnected, "")
	return nil
}

// dial performs the outbound raw-stream connect.
func (t *Transport) dial(ctx context.Context) (net.Conn, error) {
	address := net.JoinHostPort(t.cfg.Host, strconv.Itoa(t.cfg.Port))
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s failed: %w", address, err)
	}
	return conn, nil
}

// acceptOne binds the listen port and accepts exactly one inbound
// connection, then stops listening.
func (t *Transport) acceptOne(ctx context.Context) (net.Conn, error) {
	address := net.JoinHostPort(t.cfg.Host, strconv.Itoa(t.cfg.Port))
	lc := &net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s failed: %w", address, err)
	}

	t.mu.Lock()
	t.listener = listener
	t.mu.Unlock()

	// Closing the listener is the only way to unblock Accept, for
	// cancellation and deadline expiry alike.
	stop := context.AfterFunc(ctx, func() { listener.Close() })

	conn, err := listener.Accept()
	stop()

	t.mu.Lock()
	t.listener = nil
	t.mu.Unlock()
	listener.Close()

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("accept failed: %w", ctxErr)
		}
		return nil, fmt.Errorf("accept failed: %w", err)
	}
	return conn, nil
}

// failInit tears down a partially initialized transport.
func (t *Transport) failInit(context string, err error) error {
	t.logError(context, err)

	t.mu.Lock()
	session := t.session
	listener := t.listener
	t.session = nil
	t.framer = nil
	t.listener = nil
	t.mu.Unlock()

	if session != nil {
		session.Shutdown()
	}
	if listener != nil {
		listener.Close()
	}

	t.state.Store(int32(StateClosed))
	t.logStateChange(StateHandshaking, StateClosed, err.Error())
	return fmt.Errorf("init failed: %w", err)
}

// Send sends one message and returns the number of bytes written to
// the stream, including framing. Valid only in the CONNECTED state.
func (t *Transport) Send(data []byte) (int, error) {
	framer, err := t.connectedFramer()
	if err != nil {
		return 0, err
	}

	n, err := framer.WriteFrame(data)
	if err != nil {
		t.logError("send", err)
		return n, err
	}
	return n, nil
}

// Receive reads one message. It blocks at most one poll interval:
//   - message, nil: a complete message arrived
//   - ErrNoData: nothing available yet; call again later
//   - ErrConnectionClosed: the peer shut down cleanly
//   - any other error is terminal for the connection
func (t *Transport) Receive() ([]byte, error) {
	framer, err := t.connectedFramer()
	if err != nil {
		return nil, err
	}

	t.readMu.Lock()
	defer t.readMu.Unlock()

	t.mu.Lock()
	session := t.session
	t.mu.Unlock()
	if session == nil {
		return nil, ErrNotConnected
	}
	session.armPollDeadline()

	data, err := framer.ReadFrame()
	if err != nil {
		switch {
		case err == ErrNoData:
			// Expected under polling; not logged.
		case err == ErrConnectionClosed:
			t.closeWithReason("peer closed")
		default:
			t.logError("receive", err)
		}
		return nil, err
	}
	return data, nil
}

// connectedFramer returns the framer if the transport is CONNECTED.
func (t *Transport) connectedFramer() (*Framer, error) {
	switch t.State() {
	case StateConnected:
	case StateClosed:
		return nil, ErrClosed
	default:
		return nil, ErrNotConnected
	}

	t.mu.Lock()
	framer := t.framer
	t.mu.Unlock()
	if framer == nil {
		return nil, ErrNotConnected
	}
	return framer, nil
}

// Close shuts down the session (if any) and releases the underlying
// connection. Reachable from any state and idempotent.
func (t *Transport) Close() error {
	return t.closeWithReason("")
}

func (t *Transport) closeWithReason(reason string) error {
	old := State(t.state.Swap(int32(StateClosed)))
	if old == StateClosed {
		return nil
	}

	t.mu.Lock()
	session := t.session
	listener := t.listener
	t.session = nil
	t.framer = nil
	t.listener = nil
	t.mu.Unlock()

	var err error
	if session != nil {
		err = session.Shutdown()
	}
	if listener != nil {
		listener.Close()
	}

	t.logStateChange(old, StateClosed, reason)
	return err
}

// Session returns the active session, or nil before a successful Init
// or after Close.
func (t *Transport) Session() *Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session
}

// logStateChange emits a state-change protocol event.
func (t *Transport) logStateChange(oldState, newState State, reason string) {
	if t.cfg.Logger == nil {
		return
	}
	event := log.Event{
		Timestamp:    time.Now(),
		ConnectionID: t.connID,
		Layer:        log.LayerSession,
		Category:     log.CategoryState,
		LocalRole:    t.logRole(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: oldState.String(),
			NewState: newState.String(),
			Reason:   reason,
		},
	}
	t.cfg.Logger.Log(event)
}

// logHandshake emits the handshake result: negotiated cipher and peer
// certificate identity.
func (t *Transport) logHandshake(session *Session) {
	if t.cfg.Logger == nil {
		return
	}
	handshake := &log.HandshakeEvent{
		CipherSuite: session.CipherSuite(),
		Protocol:    session.State().NegotiatedProtocol,
	}
	if peer, ok := session.PeerIdentity(); ok {
		handshake.PeerSubject = peer.Subject
		handshake.PeerIssuer = peer.Issuer
		handshake.PeerFingerprint = peer.Fingerprint
	}
	t.cfg.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: t.connID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryHandshake,
		LocalRole:    t.logRole(),
		RemoteAddr:   session.RemoteAddr().String(),
		Handshake:    handshake,
	})
}

// logError emits an error protocol event.
func (t *Transport) logError(context string, err error) {
	if t.cfg.Logger == nil {
		return
	}
	t.cfg.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: t.connID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryError,
		LocalRole:    t.logRole(),
		Error: &log.ErrorEventData{
			Layer:   log.LayerTransport,
			Message: err.Error(),
			Context: context,
		},
	})
}

// logRole maps the transport role to the log package's role type.
func (t *Transport) logRole() log.Role {
	if t.role == RoleServer {
		return log.RoleServer
	}
	return log.RoleClient
}
