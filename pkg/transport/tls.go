package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"

	"github.com/slink-protocol/slink-go/pkg/cert"
)

// TLS constants for the SLINK protocol.
const (
	// ALPNProtocol is the ALPN identifier negotiated on every connection.
	ALPNProtocol = "slink/1"

	// DefaultPort is the default SLINK port.
	DefaultPort = 443
)

// TLSConfig holds the security configuration for SLINK connections.
type TLSConfig struct {
	// Credential is the local certificate/key identity. Required.
	Credential *cert.Credential

	// RootCAs is the pool used by clients to verify the server
	// certificate.
	RootCAs *x509.CertPool

	// ClientCAs is the pool used by servers to verify client
	// certificates.
	ClientCAs *x509.CertPool

	// ServerName is the expected server name for client connections.
	ServerName string

	// PinnedPeerFingerprint, when set, replaces chain verification
	// with an exact SHA-256 fingerprint match of the peer's leaf
	// certificate. Used by embedded-credential deployments where both
	// ends carry the same self-signed identity.
	PinnedPeerFingerprint string

	// InsecureSkipVerify disables peer certificate verification.
	// Only for testing - never use in production!
	InsecureSkipVerify bool

	// VerifyPeerCertificate is an optional callback for custom
	// certificate verification.
	VerifyPeerCertificate func(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error
}

// newRoleTLSConfig builds the crypto/tls configuration for the given
// role. Binding the credential re-verifies the certificate/key match
// here as well; config construction must not trust that load-time
// validation alone suffices.
func newRoleTLSConfig(role Role, cfg *TLSConfig) (*tls.Config, error) {
	if cfg == nil || cfg.Credential == nil {
		return nil, fmt.Errorf("credential is required")
	}
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRole, role)
	}
	if err := cfg.Credential.Verify(); err != nil {
		return nil, fmt.Errorf("credential rejected at bind: %w", err)
	}

	verifyPeer := cfg.VerifyPeerCertificate
	insecure := cfg.InsecureSkipVerify
	if cfg.PinnedPeerFingerprint != "" {
		verifyPeer = VerifyPeerPinned(cfg.PinnedPeerFingerprint)
		// Pinning replaces chain and hostname verification.
		insecure = true
	}

	tlsConf := &tls.Config{
		// TLS 1.3 only - no fallback
		MinVersion: tls.VersionTLS13,
		MaxVersion: tls.VersionTLS13,

		Certificates: []tls.Certificate{cfg.Credential.TLSCertificate()},

		// ALPN protocol
		NextProtos: []string{ALPNProtocol},

		// Curve preferences for key exchange
		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},

		// Session tickets disabled (no resumption)
		SessionTicketsDisabled: true,

		VerifyPeerCertificate: verifyPeer,
	}

	switch role {
	case RoleClient:
		tlsConf.RootCAs = cfg.RootCAs
		tlsConf.ServerName = cfg.ServerName
		tlsConf.InsecureSkipVerify = insecure
	case RoleServer:
		tlsConf.ClientAuth = tls.RequireAndVerifyClientCert
		tlsConf.ClientCAs = cfg.ClientCAs
		if insecure {
			// Still request the cert so pinning callbacks can see it.
			tlsConf.ClientAuth = tls.RequireAnyClientCert
		}
		if cfg.InsecureSkipVerify && cfg.PinnedPeerFingerprint == "" {
			tlsConf.ClientAuth = tls.RequestClientCert
		}
	}

	return tlsConf, nil
}

// VerifyPeerPinned returns a verification callback that accepts only a
// peer whose leaf certificate matches the given SHA-256 fingerprint.
func VerifyPeerPinned(fingerprint string) func(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return fmt.Errorf("no peer certificate presented")
		}
		got := cert.Fingerprint(rawCerts[0])
		if got != fingerprint {
			return fmt.Errorf("peer certificate fingerprint mismatch: %s", got)
		}
		return nil
	}
}

// VerifyTLS13 checks that a TLS connection is using TLS 1.3.
func VerifyTLS13(state tls.ConnectionState) error {
	if state.Version != tls.VersionTLS13 {
		return fmt.Errorf("TLS version %x is not TLS 1.3 (0x0304)", state.Version)
	}
	return nil
}

// VerifyALPN checks that the negotiated ALPN protocol is correct.
func VerifyALPN(state tls.ConnectionState) error {
	if state.NegotiatedProtocol != ALPNProtocol {
		return fmt.Errorf("ALPN protocol %q is not %q", state.NegotiatedProtocol, ALPNProtocol)
	}
	return nil
}

// VerifyConnection performs standard SLINK connection verification.
func VerifyConnection(state tls.ConnectionState) error {
	if err := VerifyTLS13(state); err != nil {
		return err
	}
	if err := VerifyALPN(state); err != nil {
		return err
	}
	return nil
}
