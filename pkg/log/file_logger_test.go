package log

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTestLog(t *testing.T, path string, events []Event) {
	t.Helper()

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestFileLoggerRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.elog")

	events := []Event{
		{
			Timestamp:    time.Now().UTC(),
			ConnectionID: "conn-a",
			Direction:    DirectionOut,
			Layer:        LayerWire,
			Category:     CategoryMessage,
			Message:      &MessageEvent{Command: "MVL", Parameter: "32"},
		},
		{
			Timestamp:    time.Now().UTC(),
			ConnectionID: "conn-a",
			Direction:    DirectionIn,
			Layer:        LayerWire,
			Category:     CategoryMessage,
			Message:      &MessageEvent{Command: "PWR", Parameter: "01"},
		},
		{
			Timestamp:    time.Now().UTC(),
			ConnectionID: "conn-b",
			Layer:        LayerClient,
			Category:     CategoryState,
			StateChange:  &StateChangeEvent{OldState: "CONNECTING", NewState: "CONNECTED"},
		},
	}
	writeTestLog(t, path, events)

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	var count int
	for {
		_, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		count++
	}
	if count != len(events) {
		t.Errorf("read %d events, want %d", count, len(events))
	}
}

func TestFilteredReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.elog")

	events := []Event{
		{Timestamp: time.Now(), ConnectionID: "conn-a", Category: CategoryMessage, Message: &MessageEvent{Command: "PWR"}},
		{Timestamp: time.Now(), ConnectionID: "conn-a", Category: CategoryMessage, Message: &MessageEvent{Command: "MVL"}},
		{Timestamp: time.Now(), ConnectionID: "conn-b", Category: CategoryMessage, Message: &MessageEvent{Command: "PWR"}},
	}
	writeTestLog(t, path, events)

	reader, err := NewFilteredReader(path, Filter{ConnectionID: "conn-a", Command: "PWR"})
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer reader.Close()

	event, err := reader.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if event.ConnectionID != "conn-a" || event.Message.Command != "PWR" {
		t.Errorf("filtered event = %+v, want conn-a/PWR", event)
	}

	if _, err := reader.Next(); err != io.EOF {
		t.Errorf("expected io.EOF after single match, got %v", err)
	}
}

func TestFileLoggerDefaultsExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	if got, want := logger.Path(), path+Ext; got != want {
		t.Errorf("Path = %q, want %q", got, want)
	}
	if _, err := os.Stat(path + Ext); err != nil {
		t.Errorf("capture file missing: %v", err)
	}
}

func TestFileLoggerCloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.elog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	// Logging after close is a no-op, not a panic.
	logger.Log(Event{Timestamp: time.Now()})
}

func TestMultiLogger(t *testing.T) {
	path1 := filepath.Join(t.TempDir(), "a.elog")
	path2 := filepath.Join(t.TempDir(), "b.elog")

	l1, err := NewFileLogger(path1)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	l2, err := NewFileLogger(path2)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	multi := NewMultiLogger(l1, l2)
	multi.Log(Event{Timestamp: time.Now(), Category: CategoryState, StateChange: &StateChangeEvent{NewState: "CONNECTED"}})

	l1.Close()
	l2.Close()

	for _, path := range []string{path1, path2} {
		reader, err := NewReader(path)
		if err != nil {
			t.Fatalf("NewReader(%s) failed: %v", path, err)
		}
		if _, err := reader.Next(); err != nil {
			t.Errorf("expected one event in %s, got error %v", path, err)
		}
		reader.Close()
	}
}
