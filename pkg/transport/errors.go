package transport

import "errors"

// Transport errors. Receive callers discriminate with errors.Is: only
// ErrNoData is retryable; ErrConnectionClosed means the peer shut down
// cleanly; everything else is terminal for the connection.
var (
	// ErrInvalidRole indicates an unknown transport role.
	ErrInvalidRole = errors.New("invalid transport role")

	// ErrNotConnected indicates the transport is not in the CONNECTED state.
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyInitialized indicates Init was called twice.
	ErrAlreadyInitialized = errors.New("transport already initialized")

	// ErrClosed indicates the transport has been closed.
	ErrClosed = errors.New("transport closed")

	// ErrConnectionClosed indicates the peer performed an orderly shutdown.
	ErrConnectionClosed = errors.New("connection closed by peer")

	// ErrNoData indicates no data was available within the poll
	// interval. Transient; retry later.
	ErrNoData = errors.New("no data available")

	// ErrMessageTooLarge indicates a message or declared body length
	// exceeds the maximum accepted size. On the read path this is a
	// protocol violation and terminal for the connection.
	ErrMessageTooLarge = errors.New("message too large")

	// ErrMessageEmpty indicates an empty message.
	ErrMessageEmpty = errors.New("message is empty")

	// ErrFrameTruncated indicates the stream ended inside a frame.
	ErrFrameTruncated = errors.New("frame truncated")
)
