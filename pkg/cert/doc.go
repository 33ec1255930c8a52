// Package cert implements the SLINK credential store: loading an X.509
// certificate and matching private key from in-memory buffers, verifying
// that the pair forms a usable TLS identity, and exposing the identity
// details needed for handshake logging.
//
// Credentials are immutable once loaded and safe to share read-only
// across any number of transports. The primary load path takes byte
// buffers embedded in the binary at build time; a file-based loader
// exists as a secondary entry point with the same validation contract.
package cert
