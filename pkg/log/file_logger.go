package log

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// Ext is the conventional extension for event capture files.
const Ext = ".elog"

// FileLogger appends events to a capture file as a CBOR stream. Safe
// for concurrent use.
type FileLogger struct {
	mu      sync.Mutex
	file    *os.File
	encoder *cbor.Encoder
	path    string
}

// NewFileLogger opens path for appending, creating it with mode 0644 if
// needed. A path without an extension gets Ext appended.
func NewFileLogger(path string) (*FileLogger, error) {
	if filepath.Ext(path) == "" {
		path += Ext
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &FileLogger{
		file:    f,
		encoder: NewEncoder(f),
		path:    path,
	}, nil
}

// Path returns the file the logger writes to, including any extension
// that was defaulted.
func (l *FileLogger) Path() string {
	return l.path
}

// Log appends one event. Encoding errors are dropped; a broken capture
// file must not take the session down with it.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.encoder == nil {
		return
	}
	_ = l.encoder.Encode(event)
}

// Close flushes and closes the capture file. Idempotent; Log becomes a
// no-op afterwards.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.encoder == nil {
		return nil
	}
	l.encoder = nil
	return l.file.Close()
}

var _ Logger = (*FileLogger)(nil)
