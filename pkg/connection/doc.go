// Package connection manages the client-side connection lifecycle for
// SLINK: state tracking, exponential backoff and automatic
// reconnection. The transport itself stays single-shot (one Transport
// per connection attempt); this package decides WHEN to attempt and
// wraps each attempt in a ConnectFunc supplied by the caller.
//
// Reconnection uses exponential backoff starting at 1s and capped at
// 60s, with up to 25% random jitter added to each delay so a fleet of
// clients does not reconnect in lockstep. The backoff resets to the
// initial delay only after a successful TLS handshake; an
// application-layer rejection after the handshake does not reset it.
package connection
