// Package devcreds embeds a self-signed development credential so the
// command-line tools work out of the box without provisioning. It must
// never be used outside local development: the private key is public
// by definition.
package devcreds

import (
	_ "embed"

	"github.com/slink-protocol/slink-go/pkg/cert"
)

//go:embed cert.pem
var certPEM []byte

//go:embed key.pem
var keyPEM []byte

// Credential returns the embedded development identity (EC P-256,
// CN=slink.dev).
func Credential() (*cert.Credential, error) {
	return cert.Load(certPEM, keyPEM)
}

// CertPEM returns the embedded certificate PEM.
func CertPEM() []byte {
	return append([]byte(nil), certPEM...)
}

// KeyPEM returns the embedded private key PEM.
func KeyPEM() []byte {
	return append([]byte(nil), keyPEM...)
}
