package discovery

import (
	"errors"
	"time"
)

// mDNS service constants.
const (
	// ServiceType is the DNS-SD service type for SLINK endpoints.
	ServiceType = "_slink._tcp"

	// Domain is the mDNS domain.
	Domain = "local"
)

// TXT record keys.
const (
	// TXTKeyVersion is the protocol version ("v").
	TXTKeyVersion = "v"

	// TXTKeyFingerprint is the hex SHA-256 of the server certificate
	// ("fp").
	TXTKeyFingerprint = "fp"

	// TXTKeyName is an optional human-readable endpoint name ("dn").
	TXTKeyName = "dn"
)

// ProtocolVersion is the version advertised in the TXT record.
const ProtocolVersion = 1

// Timing constants.
const (
	// BrowseTimeout is the default timeout for mDNS browsing.
	BrowseTimeout = 10 * time.Second

	// DefaultTTL is the DNS record TTL used when advertising.
	DefaultTTL = 120 * time.Second
)

// Limits.
const (
	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63

	// FingerprintLength is the length of a hex SHA-256 fingerprint.
	FingerprintLength = 64
)

// Discovery errors.
var (
	ErrMissingRequired  = errors.New("missing required field")
	ErrInvalidTXTRecord = errors.New("invalid TXT record format")
	ErrNotFound         = errors.New("service not found")
	ErrNotAdvertising   = errors.New("not advertising")
)

// ServiceInfo describes a local endpoint to advertise.
type ServiceInfo struct {
	// InstanceName is the mDNS instance name. Truncated to
	// MaxInstanceNameLen if longer.
	InstanceName string

	// Port is the TLS listen port.
	Port uint16

	// Fingerprint is the hex SHA-256 of the server certificate.
	Fingerprint string

	// Name is an optional human-readable endpoint name.
	Name string
}

// Validate checks the ServiceInfo before advertising.
func (s *ServiceInfo) Validate() error {
	if s.InstanceName == "" {
		return ErrMissingRequired
	}
	if s.Port == 0 {
		return ErrMissingRequired
	}
	if len(s.Fingerprint) != FingerprintLength || !isHexString(s.Fingerprint) {
		return ErrInvalidTXTRecord
	}
	return nil
}

// Endpoint is a SLINK service found via mDNS.
type Endpoint struct {
	// InstanceName is the mDNS instance name.
	InstanceName string

	// Host is the advertised hostname (e.g. "gw-01.local.").
	Host string

	// Port is the service port.
	Port uint16

	// Addresses contains resolved IP addresses.
	Addresses []string

	// Version is the advertised protocol version (from TXT "v").
	Version int

	// Fingerprint is the server certificate fingerprint (from TXT
	// "fp").
	Fingerprint string

	// Name is the optional endpoint name (from TXT "dn").
	Name string
}

func isHexString(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
