// Package log provides structured protocol logging for SLINK.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at multiple layers (transport, wire, session).
// It is separate from operational logging (slog) - protocol capture provides
// a complete machine-readable event trace for debugging and analysis.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/slink/server.plog")
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    log.NewFileLogger("/var/log/slink/server.plog"),
//	)
//
// Logging is fire-and-forget: implementations must never panic, and
// encoding errors are swallowed so logging can never take a connection
// down.
//
// # Event Types
//
// Events are captured at multiple layers:
//   - Transport: Raw frame bytes (FrameEvent), handshake results (HandshakeEvent)
//   - Wire: Control messages (ControlMsgEvent)
//   - Session: State changes (StateChangeEvent)
//
// Errors have a dedicated event type usable at any layer.
//
// # File Format
//
// Log files use CBOR encoding with .plog extension. The slink-log CLI
// tool provides viewing, filtering, and export capabilities.
package log
