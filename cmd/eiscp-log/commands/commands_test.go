package commands

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/eiscp-protocol/eiscp-go/pkg/log"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.elog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

func sessionEvents() []log.Event {
	ts := time.Date(2026, 5, 12, 10, 15, 32, 123456000, time.UTC)
	return []log.Event{
		{
			Timestamp:    ts,
			ConnectionID: "conn-aaaa-bbbb",
			Direction:    log.DirectionOut,
			Layer:        log.LayerWire,
			Category:     log.CategoryMessage,
			RemoteAddr:   "192.168.1.80:60128",
			Message:      &log.MessageEvent{Command: "PWR", Parameter: "QSTN"},
		},
		{
			Timestamp:    ts.Add(50 * time.Millisecond),
			ConnectionID: "conn-aaaa-bbbb",
			Direction:    log.DirectionIn,
			Layer:        log.LayerClient,
			Category:     log.CategoryMessage,
			Zone:         "main",
			Message:      &log.MessageEvent{Command: "PWR", Parameter: "01", Attribute: "power", Awaited: true},
		},
		{
			Timestamp:    ts.Add(time.Second),
			ConnectionID: "conn-aaaa-bbbb",
			Direction:    log.DirectionIn,
			Layer:        log.LayerWire,
			Category:     log.CategoryMessage,
			Zone:         "main",
			Message:      &log.MessageEvent{Command: "MVL", Parameter: "23", Attribute: "volume"},
		},
		{
			Timestamp:    ts.Add(2 * time.Second),
			ConnectionID: "conn-cccc-dddd",
			Direction:    log.DirectionIn,
			Layer:        log.LayerTransport,
			Category:     log.CategoryError,
			Error:        &log.ErrorEventData{Layer: log.LayerTransport, Message: "short header"},
		},
	}
}

func TestViewFormatsMessages(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())

	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		"[conn:conn-aaa]",
		"OUT WIRE PWR",
		"Parameter: QSTN",
		"Attribute: main.power",
		"Awaited: true",
		"Message: short header",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestViewFiltersByLayer(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())

	layer := log.LayerTransport
	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{Layer: &layer}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	output := buf.String()
	if strings.Contains(output, "PWR") || strings.Contains(output, "MVL") {
		t.Errorf("wire events leaked through transport filter:\n%s", output)
	}
	if !strings.Contains(output, "Error") {
		t.Errorf("transport error missing:\n%s", output)
	}
}

func TestViewFiltersByCommand(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())

	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{Command: "MVL"}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	output := buf.String()
	if strings.Contains(output, "PWR") {
		t.Errorf("PWR events leaked through MVL filter:\n%s", output)
	}
	if !strings.Contains(output, "MVL") {
		t.Errorf("MVL events missing:\n%s", output)
	}
}

func TestParseFlags(t *testing.T) {
	if l, err := ParseLayerFlag("Client"); err != nil || l != log.LayerClient {
		t.Errorf("ParseLayerFlag(Client) = %v, %v", l, err)
	}
	if _, err := ParseLayerFlag("bogus"); err == nil {
		t.Error("ParseLayerFlag(bogus) should fail")
	}
	if d, err := ParseDirectionFlag("OUT"); err != nil || d != log.DirectionOut {
		t.Errorf("ParseDirectionFlag(OUT) = %v, %v", d, err)
	}
	if c, err := ParseCategoryFlag("error"); err != nil || c != log.CategoryError {
		t.Errorf("ParseCategoryFlag(error) = %v, %v", c, err)
	}
}

func TestExportToCSV(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())
	out := filepath.Join(t.TempDir(), "out.csv")

	if err := RunExport(path, "csv", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(string(raw))).ReadAll()
	if err != nil {
		t.Fatalf("parse CSV: %v", err)
	}
	if len(records) != 5 { // header + 4 events
		t.Fatalf("got %d rows, want 5", len(records))
	}
	if records[0][0] != "timestamp" {
		t.Errorf("header = %v", records[0])
	}
	if records[2][8] != "PWR" || records[2][9] != "01" {
		t.Errorf("PWR reply row = %v", records[2])
	}
}

func TestExportToJSONL(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())
	out := filepath.Join(t.TempDir(), "out.jsonl")

	if err := RunExport(path, "jsonl", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 4 {
		t.Errorf("got %d lines, want 4", len(lines))
	}
	if !strings.Contains(lines[0], "PWR") {
		t.Errorf("first line missing command: %s", lines[0])
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())
	if err := RunExport(path, "xml", ""); err == nil {
		t.Error("unknown format accepted")
	}
}

func TestFilterWritesMatchingEvents(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())
	out := filepath.Join(t.TempDir(), "filtered.elog")

	opts := FilterOptions{Output: out, ConnID: "conn-aaaa-bbbb", Command: "MVL"}
	if err := RunFilter(path, opts); err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	reader, err := log.NewReader(out)
	if err != nil {
		t.Fatalf("open filtered file: %v", err)
	}
	defer reader.Close()

	count := 0
	for {
		event, err := reader.Next()
		if err != nil {
			break
		}
		if event.Message == nil || event.Message.Command != "MVL" {
			t.Errorf("unexpected event in filtered file: %+v", event)
		}
		count++
	}
	if count != 1 {
		t.Errorf("filtered file has %d events, want 1", count)
	}
}

func TestStatsSummarizesSession(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		"Total Events: 4",
		"WIRE:",
		"CLIENT:",
		"TRANSPORT:",
		"PWR:",
		"MVL:",
		"Connections: 2",
		"Remote: 192.168.1.80:60128",
		"Errors: 1",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}
