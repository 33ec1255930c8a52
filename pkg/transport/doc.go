// Package transport implements the SLINK secure framed transport: a
// mutually-authenticated TLS 1.3 channel carrying length-prefixed
// message frames between one initiating peer (client) and one
// listening peer (server).
//
// The core type is Transport, a single-connection state machine
// (UNINITIALIZED -> HANDSHAKING -> CONNECTED -> CLOSED) that owns one
// TLS session and exposes Send/Receive of whole messages. After the
// handshake, receives are non-blocking: Receive returns ErrNoData when
// nothing is available within the poll interval, so callers integrate
// it into their own polling loop or scheduler.
//
// Framing is a 4-byte big-endian length header followed by the body.
// The declared body length is adversarial input and is validated
// against the configured maximum before any buffer is allocated.
//
// Server and Client build multi-connection conveniences on top of the
// same session, framing and control-message primitives.
package transport
