package wire

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/eiscp-protocol/eiscp-go/pkg/log"
)

// Framing constants.
const (
	// HeaderSize is the fixed size of the eISCP packet header in bytes.
	HeaderSize = 16

	// Version is the eISCP protocol version byte.
	Version = 0x01

	// DefaultMaxMessageSize is the default maximum data size (64 KB).
	// NRI self-description documents run to several kilobytes; nothing
	// legitimate approaches this limit.
	DefaultMaxMessageSize = 65536

	// MaxLogFrameDataSize is the maximum frame data size to include in logs (4 KB).
	// Larger frames are truncated in log events to avoid excessive memory usage.
	MaxLogFrameDataSize = 4096
)

// magic is the eISCP packet signature.
var magic = [4]byte{'I', 'S', 'C', 'P'}

// Framing errors.
var (
	// ErrMessageTooLarge indicates the data portion exceeds the maximum size.
	ErrMessageTooLarge = errors.New("message too large")

	// ErrMessageEmpty indicates an empty message.
	ErrMessageEmpty = errors.New("message is empty")

	// ErrBadHeader indicates a header that could not be parsed.
	// FrameReader recovers from this by resynchronizing on the next magic.
	ErrBadHeader = errors.New("bad packet header")
)

// EncodeFrame encodes a message into a complete eISCP packet.
// The data portion is terminated with CR LF as receivers expect.
func EncodeFrame(msg *Message) []byte {
	data := msg.Raw() + "\r\n"

	buf := make([]byte, HeaderSize+len(data))
	copy(buf[0:4], magic[:])
	binary.BigEndian.PutUint32(buf[4:8], HeaderSize)
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(data)))
	buf[12] = Version
	copy(buf[HeaderSize:], data)

	return buf
}

// DecodeFrame decodes a complete eISCP packet held in a single buffer,
// as received in a UDP discovery datagram.
func DecodeFrame(buf []byte) (*Message, error) {
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("%w: packet shorter than header", ErrBadHeader)
	}
	if [4]byte(buf[0:4]) != magic {
		return nil, fmt.Errorf("%w: missing ISCP magic", ErrBadHeader)
	}

	headerSize := binary.BigEndian.Uint32(buf[4:8])
	dataSize := binary.BigEndian.Uint32(buf[8:12])
	if headerSize < HeaderSize || int(headerSize) > len(buf) {
		return nil, fmt.Errorf("%w: header size %d", ErrBadHeader, headerSize)
	}
	if int(headerSize)+int(dataSize) > len(buf) {
		return nil, fmt.Errorf("%w: data size %d exceeds packet", ErrBadHeader, dataSize)
	}

	return ParseMessage(buf[headerSize : headerSize+dataSize])
}

// FrameWriter writes eISCP packets to an underlying writer.
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
	return &FrameWriter{
		w:              w,
		maxMessageSize: DefaultMaxMessageSize,
	}
}

// SetLogger configures logging for this writer.
// Pass nil to disable logging.
func (fw *FrameWriter) SetLogger(logger log.Logger, connID string) {
	fw.logger = logger
	fw.connID = connID
}

// WriteMessage encodes and writes a single message.
// Thread-safe: can be called from multiple goroutines.
func (fw *FrameWriter) WriteMessage(msg *Message) error {
	if msg == nil || msg.Command == "" {
		return ErrMessageEmpty
	}
	if uint32(len(msg.Parameter)) > fw.maxMessageSize {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(msg.Parameter), fw.maxMessageSize)
	}

	frame := EncodeFrame(msg)

	fw.mu.Lock()
	defer fw.mu.Unlock()

	if _, err := fw.w.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}

	fw.logFrame(frame)
	return nil
}

// logFrame emits a transport-layer log event for an outbound frame.
func (fw *FrameWriter) logFrame(frame []byte) {
	if fw.logger == nil {
		return
	}

	data := frame
	truncated := false
	if len(data) > MaxLogFrameDataSize {
		data = data[:MaxLogFrameDataSize]
		truncated = true
	}

	fw.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: fw.connID,
		Direction:    log.DirectionOut,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Frame: &log.FrameEvent{
			Size:      len(frame),
			Data:      data,
			Truncated: truncated,
		},
	})
}

// FrameReader reads eISCP packets from an underlying reader.
// A corrupt header does not poison the stream: the reader scans forward to
// the next "ISCP" magic and reports the skipped bytes as ErrBadHeader, which
// callers should log and ignore.
type FrameReader struct {
	r              *bufio.Reader
	maxMessageSize uint32

	// Logging support (optional)
	logger log.Logger
	connID string
}

// NewFrameReader creates a new frame reader.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{
		r:              bufio.NewReader(r),
		maxMessageSize: DefaultMaxMessageSize,
	}
}

// SetLogger configures logging for this reader.
// Pass nil to disable logging.
func (fr *FrameReader) SetLogger(logger log.Logger, connID string) {
	fr.logger = logger
	fr.connID = connID
}

// ReadMessage reads and decodes the next message from the stream.
//
// It returns ErrBadHeader or ErrMalformedMessage (wrapped) for recoverable
// decode failures; the stream position has already been advanced past the
// bad bytes, so the caller can simply call ReadMessage again. I/O errors
// are returned as-is and are fatal to the stream.
func (fr *FrameReader) ReadMessage() (*Message, error) {
	if err := fr.syncToMagic(); err != nil {
		return nil, err
	}

	var header [HeaderSize]byte
	if _, err := io.ReadFull(fr.r, header[:]); err != nil {
		return nil, err
	}

	headerSize := binary.BigEndian.Uint32(header[4:8])
	dataSize := binary.BigEndian.Uint32(header[8:12])

	if headerSize < HeaderSize {
		return nil, fmt.Errorf("%w: header size %d", ErrBadHeader, headerSize)
	}
	if dataSize == 0 {
		return nil, fmt.Errorf("%w: zero data size", ErrBadHeader)
	}
	if dataSize > fr.maxMessageSize {
		return nil, fmt.Errorf("%w: data size %d", ErrBadHeader, dataSize)
	}

	// Skip any header extension beyond the fixed 16 bytes.
	if headerSize > HeaderSize {
		if _, err := fr.r.Discard(int(headerSize) - HeaderSize); err != nil {
			return nil, err
		}
	}

	data := make([]byte, dataSize)
	if _, err := io.ReadFull(fr.r, data); err != nil {
		return nil, err
	}

	fr.logFrame(int(headerSize)+int(dataSize), data)

	return ParseMessage(data)
}

// syncToMagic consumes bytes until the next frame starts with the ISCP magic.
// The magic itself is left unconsumed.
func (fr *FrameReader) syncToMagic() error {
	skipped := 0
	for {
		peeked, err := fr.r.Peek(len(magic))
		if err != nil {
			return err
		}
		if [4]byte(peeked) == magic {
			if skipped > 0 {
				fr.logError(fmt.Sprintf("skipped %d bytes resynchronizing", skipped))
			}
			return nil
		}
		if _, err := fr.r.Discard(1); err != nil {
			return err
		}
		skipped++
	}
}

// logFrame emits a transport-layer log event for an inbound frame.
func (fr *FrameReader) logFrame(size int, data []byte) {
	if fr.logger == nil {
		return
	}

	truncated := false
	if len(data) > MaxLogFrameDataSize {
		data = data[:MaxLogFrameDataSize]
		truncated = true
	}

	fr.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: fr.connID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Frame: &log.FrameEvent{
			Size:      size,
			Data:      data,
			Truncated: truncated,
		},
	})
}

// logError emits a transport-layer error event.
func (fr *FrameReader) logError(msg string) {
	if fr.logger == nil {
		return
	}
	fr.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: fr.connID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerTransport,
		Category:     log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerTransport,
			Message: msg,
		},
	})
}
