package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/slink-protocol/slink-go/pkg/log"
)

// Framing constants.
const (
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4

	// DefaultMaxMessageSize is the default maximum message size (64 KB).
	DefaultMaxMessageSize = 65536

	// MinMessageSize is the minimum valid message size.
	MinMessageSize = 1

	// MaxLogFrameDataSize is the maximum frame data size to include in logs (4 KB).
	// Larger frames are truncated in log events to avoid excessive memory usage.
	MaxLogFrameDataSize = 4096
)

// isTimeout reports whether err is a deadline expiry, the polled
// "no data yet" condition.
func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// FrameWriter writes length-prefixed frames to an underlying writer.
type FrameWriter struct {
	w              io.Writer
	maxMessageSize uint32
	mu             sync.Mutex

	// Logging support (optional)
	logger log.Logger
	connID string
}

// NewFrameWriter creates a new frame writer.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return NewFrameWriterWithMaxSize(w, DefaultMaxMessageSize)
}

// NewFrameWriterWithMaxSize creates a frame writer with a custom max size.
func NewFrameWriterWithMaxSize(w io.Writer, maxSize uint32) *FrameWriter {
	return &FrameWriter{
		w:              w,
		maxMessageSize: maxSize,
	}
}

// SetLogger configures logging for this writer.
// Pass nil to disable logging.
func (fw *FrameWriter) SetLogger(logger log.Logger, connID string) {
	fw.logger = logger
	fw.connID = connID
}

// WriteFrame writes a length-prefixed frame and returns the number of
// bytes written, including the length prefix. Partial writes are
// accumulated and retried until the whole frame is sent; only a hard
// write error terminates the loop early.
// Thread-safe: can be called from multiple goroutines.
func (fw *FrameWriter) WriteFrame(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, ErrMessageEmpty
	}
	if uint32(len(data)) > fw.maxMessageSize {
		return 0, fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(data), fw.maxMessageSize)
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	frame := make([]byte, LengthPrefixSize+len(data))
	binary.BigEndian.PutUint32(frame[:LengthPrefixSize], uint32(len(data)))
	copy(frame[LengthPrefixSize:], data)

	sent := 0
	for sent < len(frame) {
		n, err := fw.w.Write(frame[sent:])
		sent += n
		if err != nil {
			return sent, fmt.Errorf("failed to write frame: %w", err)
		}
	}

	// Log the frame if logger is configured
	if fw.logger != nil {
		fw.logger.Log(fw.makeFrameEvent(data, log.DirectionOut))
	}

	return sent, nil
}

// makeFrameEvent creates a log event for a frame.
func (fw *FrameWriter) makeFrameEvent(data []byte, direction log.Direction) log.Event {
	return makeFrameEvent(fw.connID, data, direction)
}

func makeFrameEvent(connID string, data []byte, direction log.Direction) log.Event {
	frameSize := LengthPrefixSize + len(data)
	frameData := data
	truncated := false

	if len(data) > MaxLogFrameDataSize {
		frameData = data[:MaxLogFrameDataSize]
		truncated = true
	}

	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    direction,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Frame: &log.FrameEvent{
			Size:      frameSize,
			Data:      frameData,
			Truncated: truncated,
		},
	}
}

// FrameReader reads length-prefixed frames from an underlying reader.
//
// Reads are resumable: when the underlying reader is armed with a poll
// deadline, a deadline expiry surfaces as ErrNoData and the partially
// read header or body is retained, so a later ReadFrame call picks up
// exactly where the stream left off without over- or under-reading.
type FrameReader struct {
	r              io.Reader
	maxMessageSize uint32

	// In-progress frame state
	header     [LengthPrefixSize]byte
	headerFill int
	body       []byte
	bodyFill   int

	// Logging support (optional)
	logger log.Logger
	connID string
}

// NewFrameReader creates a new frame reader.
func NewFrameReader(r io.Reader) *FrameReader {
	return NewFrameReaderWithMaxSize(r, DefaultMaxMessageSize)
}

// NewFrameReaderWithMaxSize creates a frame reader with a custom max size.
func NewFrameReaderWithMaxSize(r io.Reader, maxSize uint32) *FrameReader {
	return &FrameReader{
		r:              r,
		maxMessageSize: maxSize,
	}
}

// SetLogger configures logging for this reader.
// Pass nil to disable logging.
func (fr *FrameReader) SetLogger(logger log.Logger, connID string) {
	fr.logger = logger
	fr.connID = connID
}

// SetMaxMessageSize updates the maximum message size.
func (fr *FrameReader) SetMaxMessageSize(size uint32) {
	fr.maxMessageSize = size
}

// ReadFrame reads one length-prefixed frame and returns its payload
// (without the length prefix).
//
// Outcomes:
//   - payload, nil: a complete frame was read
//   - ErrConnectionClosed: the peer closed cleanly at a frame boundary
//   - ErrNoData: nothing (or only part of a frame) available yet; retry
//   - ErrMessageTooLarge: the header declared a body larger than the
//     maximum; no body bytes were read
//   - ErrFrameTruncated: the stream ended inside a frame
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	// Header phase: exactly one logical read of header-length bytes.
	for fr.headerFill < LengthPrefixSize {
		n, err := fr.r.Read(fr.header[fr.headerFill:])
		fr.headerFill += n
		if err != nil {
			if isTimeout(err) {
				return nil, ErrNoData
			}
			if err == io.EOF {
				if fr.headerFill == 0 {
					return nil, ErrConnectionClosed
				}
				return nil, ErrFrameTruncated
			}
			return nil, fmt.Errorf("failed to read length prefix: %w", err)
		}
	}

	// Validate the declared length before any allocation. The value
	// comes from the peer and must never drive an unbounded resize.
	if fr.body == nil {
		length := binary.BigEndian.Uint32(fr.header[:])
		if length == 0 {
			fr.reset()
			return nil, ErrMessageEmpty
		}
		if length > fr.maxMessageSize {
			return nil, fmt.Errorf("%w: declared %d > %d", ErrMessageTooLarge, length, fr.maxMessageSize)
		}
		fr.body = make([]byte, length)
		fr.bodyFill = 0
	}

	// Body phase: read exactly the declared number of bytes.
	for fr.bodyFill < len(fr.body) {
		n, err := fr.r.Read(fr.body[fr.bodyFill:])
		fr.bodyFill += n
		if err != nil {
			if isTimeout(err) {
				return nil, ErrNoData
			}
			if err == io.EOF {
				return nil, ErrFrameTruncated
			}
			return nil, fmt.Errorf("failed to read payload: %w", err)
		}
	}

	payload := fr.body
	fr.reset()

	// Log the frame if logger is configured
	if fr.logger != nil {
		fr.logger.Log(makeFrameEvent(fr.connID, payload, log.DirectionIn))
	}

	return payload, nil
}

// reset clears the in-progress frame state.
func (fr *FrameReader) reset() {
	fr.headerFill = 0
	fr.body = nil
	fr.bodyFill = 0
}

// Framer combines frame reading and writing.
type Framer struct {
	*FrameReader
	*FrameWriter
}

// NewFramer creates a new framer for bidirectional communication.
func NewFramer(rw io.ReadWriter) *Framer {
	return NewFramerWithMaxSize(rw, DefaultMaxMessageSize)
}

// NewFramerWithMaxSize creates a framer with a custom max message size.
func NewFramerWithMaxSize(rw io.ReadWriter, maxSize uint32) *Framer {
	return &Framer{
		FrameReader: NewFrameReaderWithMaxSize(rw, maxSize),
		FrameWriter: NewFrameWriterWithMaxSize(rw, maxSize),
	}
}

// SetLogger configures logging for both reader and writer.
// Pass nil to disable logging.
func (f *Framer) SetLogger(logger log.Logger, connID string) {
	f.FrameReader.SetLogger(logger, connID)
	f.FrameWriter.SetLogger(logger, connID)
}

// FrameSize returns the total frame size including the length prefix.
func FrameSize(payloadSize int) int {
	return LengthPrefixSize + payloadSize
}
