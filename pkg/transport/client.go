package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/slink-protocol/slink-go/pkg/log"
	"github.com/slink-protocol/slink-go/pkg/wire"
)

// DefaultConnectTimeout bounds Connect when the caller's context
// carries no deadline.
const DefaultConnectTimeout = 30 * time.Second

// ClientConfig configures a SLINK client.
type ClientConfig struct {
	// TLS contains the credential and peer verification settings.
	TLS *TLSConfig

	// MaxMessageSize is the maximum message size (default: 64KB).
	MaxMessageSize uint32

	// ConnectTimeout is the connection timeout (default: 30s).
	ConnectTimeout time.Duration

	// KeepAlive configuration. Used when EnableKeepAlive is set.
	KeepAlive KeepAliveConfig

	// EnableKeepAlive starts a ping/pong liveness monitor on each
	// connection.
	EnableKeepAlive bool

	// Logger for protocol logging (optional).
	Logger log.Logger
}

// Client is a SLINK TLS client. One Client can open any number of
// connections; each Connect returns an independent ClientConn.
type Client struct {
	config  ClientConfig
	tlsConf *tls.Config
}

// NewClient creates a new SLINK client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}

	tlsConf, err := newRoleTLSConfig(RoleClient, config.TLS)
	if err != nil {
		return nil, fmt.Errorf("failed to create TLS config: %w", err)
	}

	return &Client{
		config:  config,
		tlsConf: tlsConf,
	}, nil
}

// Connect establishes a connection to the specified address
// (host:port).
func (c *Client) Connect(ctx context.Context, address string) (*ClientConn, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
	}

	dialer := &net.Dialer{}
	raw, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	session, err := handshake(ctx, raw, RoleClient, c.tlsConf, DefaultPollInterval)
	if err != nil {
		return nil, fmt.Errorf("TLS handshake failed: %w", err)
	}

	connID := uuid.New().String()
	framer := NewFramerWithMaxSize(session, c.config.MaxMessageSize)
	if c.config.Logger != nil {
		framer.SetLogger(c.config.Logger, connID)
	}

	conn := &ClientConn{
		session: session,
		framer:  framer,
		client:  c,
		connID:  connID,
		closeCh: make(chan struct{}),
	}
	conn.logHandshake()

	if c.config.EnableKeepAlive {
		conn.keepAlive = NewKeepAlive(c.config.KeepAlive, conn.SendPing, func() {
			conn.Close()
		})
		conn.keepAlive.Start(context.Background())
	}

	return conn, nil
}

// ClientConn represents a connection from client to server.
type ClientConn struct {
	session   *Session
	framer    *Framer
	client    *Client
	connID    string
	keepAlive *KeepAlive

	closeCh   chan struct{}
	closeOnce sync.Once
	readMu    sync.Mutex
}

// ConnID returns the unique connection identifier.
func (c *ClientConn) ConnID() string {
	return c.connID
}

// TLSState returns the TLS connection state.
func (c *ClientConn) TLSState() tls.ConnectionState {
	return c.session.State()
}

// PeerIdentity returns the server certificate details.
func (c *ClientConn) PeerIdentity() (PeerIdentity, bool) {
	return c.session.PeerIdentity()
}

// LocalAddr returns the local network address.
func (c *ClientConn) LocalAddr() net.Addr {
	return c.session.LocalAddr()
}

// RemoteAddr returns the remote network address.
func (c *ClientConn) RemoteAddr() net.Addr {
	return c.session.RemoteAddr()
}

// KeepAliveStats returns keep-alive statistics, or false when
// keep-alive is disabled.
func (c *ClientConn) KeepAliveStats() (KeepAliveStats, bool) {
	if c.keepAlive == nil {
		return KeepAliveStats{}, false
	}
	return c.keepAlive.Stats(), true
}

// Send sends a data message to the server.
func (c *ClientConn) Send(payload []byte) error {
	data, err := wire.EncodeData(payload)
	if err != nil {
		return err
	}
	return c.sendFrame(data)
}

// sendFrame writes an already-encoded envelope.
func (c *ClientConn) sendFrame(data []byte) error {
	select {
	case <-c.closeCh:
		return ErrConnectionClosed
	default:
	}
	_, err := c.framer.WriteFrame(data)
	return err
}

// Receive reads the next data message, handling control messages
// internally: pings are answered, pongs feed the keep-alive monitor,
// and a close from the server is acknowledged before the connection
// shuts down with ErrConnectionClosed.
//
// A timeout of zero blocks until a message arrives or the connection
// fails.
func (c *ClientConn) Receive(timeout time.Duration) ([]byte, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	select {
	case <-c.closeCh:
		return nil, ErrConnectionClosed
	default:
	}

	if timeout > 0 {
		c.session.conn.SetReadDeadline(time.Now().Add(timeout))
		defer c.session.clearDeadline()
	}

	for {
		data, err := c.framer.ReadFrame()
		if err != nil {
			return nil, err
		}

		kind, peekErr := wire.PeekKind(data)
		if peekErr == nil && kind == wire.KindControl {
			if ctrl, decErr := wire.DecodeControlMessage(data); decErr == nil {
				if closed := c.handleControlMessage(ctrl); closed {
					return nil, ErrConnectionClosed
				}
				continue
			}
		}

		return wire.DecodeData(data)
	}
}

// handleControlMessage processes a control message from the server.
// It reports true when the message closed the connection.
func (c *ClientConn) handleControlMessage(msg *wire.ControlMessage) bool {
	c.logControl(msg.Type, log.DirectionIn, msg.Sequence)

	switch msg.Type {
	case wire.ControlPing:
		if pong, err := EncodePong(msg.Sequence); err == nil {
			c.sendFrame(pong)
			c.logControl(wire.ControlPong, log.DirectionOut, msg.Sequence)
		}

	case wire.ControlPong:
		if c.keepAlive != nil {
			c.keepAlive.PongReceived(msg.Sequence)
		}

	case wire.ControlClose:
		if ack, err := EncodeClose(); err == nil {
			c.sendFrame(ack)
			c.logControl(wire.ControlClose, log.DirectionOut, 0)
		}
		c.Close()
		return true
	}
	return false
}

// Close closes the connection. Idempotent.
func (c *ClientConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.keepAlive != nil {
			c.keepAlive.Stop()
		}
		close(c.closeCh)
		err = c.session.Shutdown()
	})
	return err
}

// SendPing sends a ping control message.
func (c *ClientConn) SendPing(seq uint32) error {
	msg, err := EncodePing(seq)
	if err != nil {
		return err
	}
	if err := c.sendFrame(msg); err != nil {
		return err
	}
	c.logControl(wire.ControlPing, log.DirectionOut, seq)
	return nil
}

// SendClose announces an orderly close to the server.
func (c *ClientConn) SendClose() error {
	msg, err := EncodeClose()
	if err != nil {
		return err
	}
	if err := c.sendFrame(msg); err != nil {
		return err
	}
	c.logControl(wire.ControlClose, log.DirectionOut, 0)
	return nil
}

func (c *ClientConn) logHandshake() {
	if c.client.config.Logger == nil {
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
	c.client.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryHandshake,
		LocalRole:    log.RoleClient,
		RemoteAddr:   c.session.RemoteAddr().String(),
		Handshake:    handshake,
	})
}

func (c *ClientConn) logControl(msgType wire.ControlMessageType, direction log.Direction, seq uint32) {
	logControlEvent(c.client.config.Logger, c.connID, log.RoleClient, c.session.RemoteAddr(), msgType, direction, seq)
}
