// Package discovery advertises and finds SLINK endpoints on the local
// network via mDNS/DNS-SD.
//
// Servers register a _slink._tcp service whose TXT records carry the
// protocol version and the SHA-256 fingerprint of the server
// certificate, so clients can pin the peer before the first handshake.
// Clients browse for those services and can look a specific endpoint up
// by fingerprint.
package discovery
