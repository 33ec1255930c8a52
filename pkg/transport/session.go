package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"sync"
	"time"

	"github.com/slink-protocol/slink-go/pkg/cert"
)

// DefaultPollInterval is the read deadline armed before each
// non-blocking receive. A deadline expiry maps to ErrNoData.
const DefaultPollInterval = 50 * time.Millisecond

// Session owns one TLS connection's cryptographic state. It is created
// during Transport.Init, usable for encrypted I/O only between a
// successful handshake and Shutdown, and exclusively owned by one
// Transport (or one Server/Client connection).
type Session struct {
	conn         *tls.Conn
	pollInterval time.Duration

	shutdownOnce sync.Once
	shutdownErr  error
}

// newSession wraps an already-handshaken TLS connection.
func newSession(conn *tls.Conn, pollInterval time.Duration) *Session {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Session{
		conn:         conn,
		pollInterval: pollInterval,
	}
}

// handshake attaches the raw connection to a fresh TLS session for the
// given role and drives the handshake to completion. On success the
// returned session is verified (TLS 1.3, expected ALPN) and ready for
// encrypted I/O; on failure the raw connection is closed.
func handshake(ctx context.Context, raw net.Conn, role Role, tlsConf *tls.Config, pollInterval time.Duration) (*Session, error) {
	var conn *tls.Conn
	switch role {
	case RoleClient:
		conn = tls.Client(raw, tlsConf)
	case RoleServer:
		conn = tls.Server(raw, tlsConf)
	default:
		raw.Close()
		return nil, ErrInvalidRole
	}

	if err := conn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, err
	}
	if err := VerifyConnection(conn.ConnectionState()); err != nil {
		conn.Close()
		return nil, err
	}
	return newSession(conn, pollInterval), nil
}

// Read reads encrypted data from the session. Deadline handling is the
// caller's responsibility (see armPollDeadline).
func (s *Session) Read(p []byte) (int, error) {
	return s.conn.Read(p)
}

// Write writes encrypted data to the session.
func (s *Session) Write(p []byte) (int, error) {
	return s.conn.Write(p)
}

// armPollDeadline sets the read deadline one poll interval ahead,
// making the next read non-blocking in the polled sense.
func (s *Session) armPollDeadline() {
	s.conn.SetReadDeadline(time.Now().Add(s.pollInterval))
}

// clearDeadline removes any pending read deadline.
func (s *Session) clearDeadline() {
	s.conn.SetReadDeadline(time.Time{})
}

// State returns the TLS connection state.
func (s *Session) State() tls.ConnectionState {
	return s.conn.ConnectionState()
}

// LocalAddr returns the local network address.
func (s *Session) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// RemoteAddr returns the remote network address.
func (s *Session) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// PeerIdentity describes the peer certificate presented during the
// handshake.
type PeerIdentity struct {
	Subject     string
	Issuer      string
	Fingerprint string
}

// PeerIdentity returns the peer certificate details, or false if the
// peer presented no certificate.
func (s *Session) PeerIdentity() (PeerIdentity, bool) {
	certs := s.conn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return PeerIdentity{}, false
	}
	return peerIdentity(certs[0]), true
}

func peerIdentity(leaf *x509.Certificate) PeerIdentity {
	return PeerIdentity{
		Subject:     leaf.Subject.String(),
		Issuer:      leaf.Issuer.String(),
		Fingerprint: cert.Fingerprint(leaf.Raw),
	}
}

// CipherSuite returns the negotiated cipher suite name.
func (s *Session) CipherSuite() string {
	return tls.CipherSuiteName(s.conn.ConnectionState().CipherSuite)
}

// Shutdown notifies the peer that the session is closing (TLS
// close_notify) and releases the connection. It is idempotent and safe
// to call on a session whose connection already failed; the first
// error, if any, is retained.
func (s *Session) Shutdown() error {
	s.shutdownOnce.Do(func() {
		if s.conn == nil {
			return
		}
		// Best-effort close_notify; the peer may already be gone.
		s.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = s.conn.CloseWrite()
		s.shutdownErr = s.conn.Close()
	})
	return s.shutdownErr
}
