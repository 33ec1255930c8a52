package transport

// Role selects the handshake side of a transport: the initiating
// (client) or listening (server) peer.
type Role uint8

const (
	// RoleClient initiates the TCP connection and the TLS handshake.
	RoleClient Role = 1

	// RoleServer listens, accepts one connection and answers the
	// handshake.
	RoleServer Role = 2
)

// IsValid returns true for a known role.
func (r Role) IsValid() bool {
	return r == RoleClient || r == RoleServer
}

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleClient:
		return "CLIENT"
	case RoleServer:
		return "SERVER"
	default:
		return "UNKNOWN"
	}
}
