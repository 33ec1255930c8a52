package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/slink-protocol/slink-go/pkg/log"
	"github.com/slink-protocol/slink-go/pkg/wire"
)

// ServerConfig configures a SLINK server.
type ServerConfig struct {
	// TLS contains the credential and peer verification settings.
	TLS *TLSConfig

	// Address to listen on (e.g., ":443" or "127.0.0.1:443").
	Address string

	// MaxMessageSize is the maximum message size (default: 64KB).
	MaxMessageSize uint32

	// Logger for protocol logging (optional).
	Logger log.Logger

	// OnConnect is called when a new connection is established.
	OnConnect func(conn *ServerConn)

	// OnDisconnect is called when a connection is closed.
	OnDisconnect func(conn *ServerConn)

	// OnMessage is called with the payload of each data message.
	OnMessage func(conn *ServerConn, payload []byte)

	// OnError is called when an error occurs. conn may be nil for
	// errors before a connection is established.
	OnError func(conn *ServerConn, err error)
}

// Server is a SLINK TLS server accepting any number of concurrent
// client connections. Unlike Transport, which owns a single polled
// connection, the server runs one blocking read loop per connection.
type Server struct {
	config  ServerConfig
	tlsConf *tls.Config

	listener net.Listener

	conns   map[*ServerConn]struct{}
	connsMu sync.RWMutex

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a new SLINK server.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Address == "" {
		config.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}

	tlsConf, err := newRoleTLSConfig(RoleServer, config.TLS)
	if err != nil {
		return nil, fmt.Errorf("failed to create TLS config: %w", err)
	}

	return &Server{
		config:  config,
		tlsConf: tlsConf,
		conns:   make(map[*ServerConn]struct{}),
	}, nil
}

// Start starts the server and begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return fmt.Errorf("server already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener
	s.running.Store(true)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop stops the server and closes all connections.
func (s *Server) Stop() error {
	if !s.running.Load() {
		return nil
	}

	s.running.Store(false)
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}

	s.connsMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()

	s.wg.Wait()
	return nil
}

// Addr returns the server's listen address.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// ConnectionCount returns the number of active connections.
func (s *Server) ConnectionCount() int {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	return len(s.conns)
}

// acceptLoop accepts incoming connections.
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.running.Load() && s.config.OnError != nil {
				s.config.OnError(nil, fmt.Errorf("accept error: %w", err))
			}
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection drives one connection from handshake to disconnect.
func (s *Server) handleConnection(raw net.Conn) {
	defer s.wg.Done()

	session, err := handshake(s.ctx, raw, RoleServer, s.tlsConf, DefaultPollInterval)
	if err != nil {
		if s.config.OnError != nil {
			s.config.OnError(nil, fmt.Errorf("TLS handshake failed: %w", err))
		}
		return
	}

	connID := uuid.New().String()
	framer := NewFramerWithMaxSize(session, s.config.MaxMessageSize)
	if s.config.Logger != nil {
		framer.SetLogger(s.config.Logger, connID)
	}

	sconn := &ServerConn{
		session:    session,
		framer:     framer,
		server:     s,
		closeCh:    make(chan struct{}),
		remoteAddr: raw.RemoteAddr(),
		connID:     connID,
	}

	sconn.logHandshake()
	sconn.logState("", "CONNECTED", "")

	s.connsMu.Lock()
	s.conns[sconn] = struct{}{}
	s.connsMu.Unlock()

	if s.config.OnConnect != nil {
		s.config.OnConnect(sconn)
	}

	sconn.readLoop()

	s.connsMu.Lock()
	delete(s.conns, sconn)
	s.connsMu.Unlock()

	sconn.logState("CONNECTED", "DISCONNECTED", "")

	if s.config.OnDisconnect != nil {
		s.config.OnDisconnect(sconn)
	}
}

// ServerConn represents a client connection to the server.
type ServerConn struct {
	session    *Session
	framer     *Framer
	server     *Server
	closeCh    chan struct{}
	closeOnce  sync.Once
	remoteAddr net.Addr
	connID     string
}

// RemoteAddr returns the remote address of the client.
func (c *ServerConn) RemoteAddr() net.Addr {
	return c.remoteAddr
}

// ConnID returns the unique connection identifier.
func (c *ServerConn) ConnID() string {
	return c.connID
}

// TLSState returns the TLS connection state.
func (c *ServerConn) TLSState() tls.ConnectionState {
	return c.session.State()
}

// PeerIdentity returns the client certificate details, or false if the
// client presented no certificate.
func (c *ServerConn) PeerIdentity() (PeerIdentity, bool) {
	return c.session.PeerIdentity()
}

// Send sends a data message to the client.
func (c *ServerConn) Send(payload []byte) error {
	data, err := wire.EncodeData(payload)
	if err != nil {
		return err
	}
	return c.sendFrame(data)
}

// sendFrame writes an already-encoded envelope.
func (c *ServerConn) sendFrame(data []byte) error {
	select {
	case <-c.closeCh:
		return ErrConnectionClosed
	default:
	}
	_, err := c.framer.WriteFrame(data)
	return err
}

// Close closes the connection.
func (c *ServerConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.session.Shutdown()
	})
	return err
}

// readLoop reads envelopes from the connection until it closes.
func (c *ServerConn) readLoop() {
	for {
		select {
		case <-c.closeCh:
			return
		case <-c.server.ctx.Done():
			return
		default:
		}

		data, err := c.framer.ReadFrame()
		if err != nil {
			if c.server.config.OnError != nil && c.server.running.Load() {
				select {
				case <-c.closeCh:
					// Already closing; not an error worth reporting.
				default:
					if err != ErrConnectionClosed {
						c.server.config.OnError(c, err)
					}
				}
			}
			return
		}

		// Data and control envelopes share the same outer CBOR shape
		// (integer key 1 is the kind), so the kind is peeked before
		// committing to a full decode.
		kind, peekErr := wire.PeekKind(data)
		if peekErr == nil && kind == wire.KindControl {
			if ctrl, err := wire.DecodeControlMessage(data); err == nil {
				c.handleControlMessage(ctrl)
				continue
			}
		}

		payload, err := wire.DecodeData(data)
		if err != nil {
			if c.server.config.OnError != nil {
				c.server.config.OnError(c, err)
			}
			continue
		}

		if c.server.config.OnMessage != nil {
			c.server.config.OnMessage(c, payload)
		}
	}
}

// handleControlMessage processes a control message from the client.
func (c *ServerConn) handleControlMessage(msg *wire.ControlMessage) {
	c.logControl(msg.Type, log.DirectionIn, msg.Sequence)

	switch msg.Type {
	case wire.ControlPing:
		if pong, err := EncodePong(msg.Sequence); err == nil {
			c.sendFrame(pong)
			c.logControl(wire.ControlPong, log.DirectionOut, msg.Sequence)
		}

	case wire.ControlPong:
		// Keep-alive is client-initiated; server-side pongs carry no
		// state.

	case wire.ControlClose:
		if ack, err := EncodeClose(); err == nil {
			c.sendFrame(ack)
			c.logControl(wire.ControlClose, log.DirectionOut, 0)
		}
		c.Close()
	}
}

func (c *ServerConn) logHandshake() {
	if c.server.config.Logger == nil {
		return
	}
	handshake := &log.HandshakeEvent{
		CipherSuite: c.session.CipherSuite(),
		Protocol:    c.session.State().NegotiatedProtocol,
	}
	if peer, ok := c.session.PeerIdentity(); ok {
		handshake.PeerSubject = peer.Subject
		handshake.PeerIssuer = peer.Issuer
		handshake.PeerFingerprint = peer.Fingerprint
	}
	c.server.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryHandshake,
		LocalRole:    log.RoleServer,
		RemoteAddr:   c.remoteAddr.String(),
		Handshake:    handshake,
	})
}

func (c *ServerConn) logState(oldState, newState, reason string) {
	if c.server.config.Logger == nil {
		return
	}
	c.server.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Layer:        log.LayerSession,
		Category:     log.CategoryState,
		LocalRole:    log.RoleServer,
		RemoteAddr:   c.remoteAddr.String(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

func (c *ServerConn) logControl(msgType wire.ControlMessageType, direction log.Direction, seq uint32) {
	logControlEvent(c.server.config.Logger, c.connID, log.RoleServer, c.remoteAddr, msgType, direction, seq)
}

// logControlEvent emits a control message event; shared by both
// connection ends.
func logControlEvent(logger log.Logger, connID string, role log.Role, remoteAddr net.Addr, msgType wire.ControlMessageType, direction log.Direction, seq uint32) {
	if logger == nil {
		return
	}

	var ctrlType log.ControlMsgType
	switch msgType {
	case wire.ControlPing:
		ctrlType = log.ControlMsgPing
	case wire.ControlPong:
		ctrlType = log.ControlMsgPong
	case wire.ControlClose:
		ctrlType = log.ControlMsgClose
	default:
		return
	}

	event := log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    direction,
		Layer:        log.LayerWire,
		Category:     log.CategoryControl,
		LocalRole:    role,
		ControlMsg: &log.ControlMsgEvent{
			Type:     ctrlType,
			Sequence: seq,
		},
	}
	if remoteAddr != nil {
		event.RemoteAddr = remoteAddr.String()
	}
	logger.Log(event)
}

// Control message encoding helpers.

// EncodePing encodes a ping control message.
func EncodePing(seq uint32) ([]byte, error) {
	return wire.EncodeControlMessage(&wire.ControlMessage{
		Type:     wire.ControlPing,
		Sequence: seq,
	})
}

// EncodePong encodes a pong control message.
func EncodePong(seq uint32) ([]byte, error) {
	return wire.EncodeControlMessage(&wire.ControlMessage{
		Type:     wire.ControlPong,
		Sequence: seq,
	})
}

// EncodeClose encodes a close control message.
func EncodeClose() ([]byte, error) {
	return wire.EncodeControlMessage(&wire.ControlMessage{
		Type: wire.ControlClose,
	})
}
