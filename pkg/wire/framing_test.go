package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

func TestEncodeFrame(t *testing.T) {
	frame := EncodeFrame(NewMessage("PWR", "QSTN"))

	if string(frame[0:4]) != "ISCP" {
		t.Errorf("magic = %q, want ISCP", frame[0:4])
	}
	if got := binary.BigEndian.Uint32(frame[4:8]); got != HeaderSize {
		t.Errorf("header size = %d, want %d", got, HeaderSize)
	}
	data := "!1PWRQSTN\r\n"
	if got := binary.BigEndian.Uint32(frame[8:12]); got != uint32(len(data)) {
		t.Errorf("data size = %d, want %d", got, len(data))
	}
	if frame[12] != Version {
		t.Errorf("version = %#x, want %#x", frame[12], Version)
	}
	if string(frame[HeaderSize:]) != data {
		t.Errorf("data = %q, want %q", frame[HeaderSize:], data)
	}
}

func TestFrameRoundtrip(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFrameWriter(&buf)

	messages := []*Message{
		NewMessage("PWR", "01"),
		NewMessage("MVL", "1E"),
		NewMessage("NRI", "QSTN"),
	}
	for _, m := range messages {
		if err := fw.WriteMessage(m); err != nil {
			t.Fatalf("WriteMessage(%v) failed: %v", m, err)
		}
	}

	fr := NewFrameReader(&buf)
	for _, want := range messages {
		got, err := fr.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage failed: %v", err)
		}
		if got.Command != want.Command || got.Parameter != want.Parameter {
			t.Errorf("ReadMessage = %v, want %v", got, want)
		}
	}

	if _, err := fr.ReadMessage(); err != io.EOF {
		t.Errorf("expected io.EOF at end of stream, got %v", err)
	}
}

func TestDecodeFrame(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		msg, err := DecodeFrame(EncodeFrame(&Message{Unit: UnitBroadcast, Command: "ECN", Parameter: "QSTN"}))
		if err != nil {
			t.Fatalf("DecodeFrame failed: %v", err)
		}
		if msg.Unit != UnitBroadcast || msg.Command != "ECN" || msg.Parameter != "QSTN" {
			t.Errorf("DecodeFrame = %v, want !xECNQSTN", msg)
		}
	})

	t.Run("Short", func(t *testing.T) {
		if _, err := DecodeFrame([]byte("ISC")); !errors.Is(err, ErrBadHeader) {
			t.Errorf("expected ErrBadHeader, got %v", err)
		}
	})

	t.Run("WrongMagic", func(t *testing.T) {
		frame := EncodeFrame(NewMessage("PWR", "01"))
		frame[0] = 'X'
		if _, err := DecodeFrame(frame); !errors.Is(err, ErrBadHeader) {
			t.Errorf("expected ErrBadHeader, got %v", err)
		}
	})
}

func TestFrameReaderResync(t *testing.T) {
	var buf bytes.Buffer

	// Garbage before a valid frame: reader must skip to the magic.
	buf.WriteString("line noise\r\n")
	buf.Write(EncodeFrame(NewMessage("AMT", "00")))

	fr := NewFrameReader(&buf)
	msg, err := fr.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if msg.Command != "AMT" || msg.Parameter != "00" {
		t.Errorf("ReadMessage = %v, want AMT00", msg)
	}
}

func TestFrameReaderBadHeaderRecovers(t *testing.T) {
	var buf bytes.Buffer

	// A frame claiming an oversized data portion, followed by a good frame.
	bad := EncodeFrame(NewMessage("PWR", "01"))
	binary.BigEndian.PutUint32(bad[8:12], DefaultMaxMessageSize+1)
	buf.Write(bad[:HeaderSize]) // header only; bogus size
	buf.Write(EncodeFrame(NewMessage("MVL", "20")))

	fr := NewFrameReader(&buf)

	_, err := fr.ReadMessage()
	if !errors.Is(err, ErrBadHeader) {
		t.Fatalf("expected ErrBadHeader, got %v", err)
	}

	// The next read resynchronizes on the good frame.
	msg, err := fr.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage after bad header failed: %v", err)
	}
	if msg.Command != "MVL" {
		t.Errorf("Command = %q, want MVL", msg.Command)
	}
}

func TestWriteMessageEmpty(t *testing.T) {
	fw := NewFrameWriter(&bytes.Buffer{})
	if err := fw.WriteMessage(&Message{}); !errors.Is(err, ErrMessageEmpty) {
		t.Errorf("expected ErrMessageEmpty, got %v", err)
	}
}
