package log

import (
	"bufio"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FileExtension is the conventional extension for protocol log files.
const FileExtension = ".plog"

// fileLoggerBufSize is the write buffer size. Events are a few hundred
// bytes, so this batches dozens of them per write syscall.
const fileLoggerBufSize = 16 * 1024

// FileLogger appends CBOR-encoded events to a protocol log file.
// Writes are buffered; Sync or Close makes them durable. Safe for
// concurrent use.
type FileLogger struct {
	mu      sync.Mutex
	file    *os.File
	buf     *bufio.Writer
	encoder *cbor.Encoder
	path    string
	closed  bool
}

// NewFileLogger opens path for appending, creating it with mode 0644
// when missing. A path without an extension gets FileExtension
// appended so log files are recognizable by the slink-log tooling.
func NewFileLogger(path string) (*FileLogger, error) {
	if filepath.Ext(path) == "" {
		path += FileExtension
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriterSize(f, fileLoggerBufSize)
	return &FileLogger{
		file:    f,
		buf:     buf,
		encoder: NewEncoder(buf),
		path:    path,
	}, nil
}

// Path returns the file actually written, including any defaulted
// extension.
func (l *FileLogger) Path() string {
	return l.path
}

// Log appends one event. Encoding errors are swallowed; logging never
// disrupts the protocol flow.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	_ = l.encoder.Encode(event)
}

// Sync flushes buffered events to the operating system and the disk.
func (l *FileLogger) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	if err := l.buf.Flush(); err != nil {
		return err
	}
	return l.file.Sync()
}

// Close flushes and closes the file. Idempotent; Log calls after Close
// are dropped.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	flushErr := l.buf.Flush()
	closeErr := l.file.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

var _ Logger = (*FileLogger)(nil)
