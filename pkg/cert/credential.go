package cert

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
)

// Credential load errors.
var (
	ErrInvalidCert        = errors.New("invalid certificate")
	ErrCredentialMismatch = errors.New("private key does not match certificate")
)

// Credential is a loaded certificate / private key identity.
// It is immutable after Load and safe for concurrent read-only use
// by any number of transports.
type Credential struct {
	certPEM []byte
	keyPEM  []byte

	leaf    *x509.Certificate
	tlsCert tls.Certificate
}

// Load parses a certificate and private key from in-memory PEM buffers
// and verifies that the pair cryptographically match. It returns
// ErrCredentialMismatch if the public key in the certificate does not
// correspond to the private key.
func Load(certPEM, keyPEM []byte) (*Credential, error) {
	leaf, err := DecodeCertPEM(certPEM)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCert, err)
	}

	key, err := DecodeKeyPEM(keyPEM)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	if err := matchKeyPair(leaf, key); err != nil {
		return nil, err
	}

	// tls.X509KeyPair re-parses and re-checks the pair inside crypto/tls,
	// so the TLS layer never trusts our check alone.
	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCert, err)
	}
	tlsCert.Leaf = leaf

	return &Credential{
		certPEM: append([]byte(nil), certPEM...),
		keyPEM:  append([]byte(nil), keyPEM...),
		leaf:    leaf,
		tlsCert: tlsCert,
	}, nil
}

// LoadFiles loads a credential from PEM files on disk. This is the
// secondary entry point; embedded deployments use Load with in-memory
// buffers instead.
func LoadFiles(certPath, keyPath string) (*Credential, error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate file: %w", err)
	}
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	return Load(certPEM, keyPEM)
}

// matchKeyPair verifies that the private key corresponds to the public
// key in the certificate.
func matchKeyPair(leaf *x509.Certificate, key crypto.Signer) error {
	switch pub := leaf.PublicKey.(type) {
	case *ecdsa.PublicKey:
		priv, ok := key.(*ecdsa.PrivateKey)
		if !ok || !pub.Equal(priv.Public()) {
			return ErrCredentialMismatch
		}
	case *rsa.PublicKey:
		priv, ok := key.(*rsa.PrivateKey)
		if !ok || !pub.Equal(priv.Public()) {
			return ErrCredentialMismatch
		}
	case ed25519.PublicKey:
		priv, ok := key.(ed25519.PrivateKey)
		if !ok || !pub.Equal(priv.Public()) {
			return ErrCredentialMismatch
		}
	default:
		return fmt.Errorf("%w: unsupported public key type %T", ErrInvalidCert, leaf.PublicKey)
	}
	return nil
}

// Verify re-checks the certificate / key consistency. The TLS layer
// calls this when binding the credential into a config so that context
// construction does not rely on Load-time validation alone.
func (c *Credential) Verify() error {
	signer, ok := c.tlsCert.PrivateKey.(crypto.Signer)
	if !ok {
		return ErrInvalidKey
	}
	return matchKeyPair(c.leaf, signer)
}

// TLSCertificate returns the credential as a tls.Certificate.
func (c *Credential) TLSCertificate() tls.Certificate {
	return c.tlsCert
}

// Leaf returns the parsed leaf certificate.
func (c *Credential) Leaf() *x509.Certificate {
	return c.leaf
}

// CertPEM returns a copy of the certificate PEM bytes.
func (c *Credential) CertPEM() []byte {
	return append([]byte(nil), c.certPEM...)
}

// Subject returns the certificate subject in RFC 2253 form.
func (c *Credential) Subject() string {
	return c.leaf.Subject.String()
}

// Issuer returns the certificate issuer in RFC 2253 form.
func (c *Credential) Issuer() string {
	return c.leaf.Issuer.String()
}

// Fingerprint returns the hex-encoded SHA-256 fingerprint of the
// DER-encoded certificate.
func (c *Credential) Fingerprint() string {
	sum := sha256.Sum256(c.leaf.Raw)
	return hex.EncodeToString(sum[:])
}

// Fingerprint returns the hex-encoded SHA-256 fingerprint of a raw
// DER-encoded certificate.
func Fingerprint(der []byte) string {
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:])
}
