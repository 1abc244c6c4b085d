package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/eiscp-protocol/eiscp-go/pkg/log"
)

// csvExportTime is the timestamp layout for CSV rows, microsecond
// precision.
const csvExportTime = "2006-01-02T15:04:05.000000Z"

var csvHeader = []string{
	"timestamp", "connection_id", "direction", "layer", "category",
	"device_id", "zone", "type", "command", "parameter",
}

// RunExport converts a capture file to jsonl or csv, writing to output
// or stdout when output is empty.
func RunExport(path, format, output string) error {
	var export func(*log.Reader, io.Writer) error
	switch format {
	case "jsonl":
		export = exportJSONL
	case "csv":
		export = exportCSV
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}

	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	return export(reader, w)
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := cw.Write(csvRow(event)); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
}

// csvRow flattens an event into the csvHeader columns.
func csvRow(event log.Event) []string {
	eventType := "unknown"
	var cmd, param string
	switch {
	case event.Frame != nil:
		eventType = "frame"
	case event.Message != nil:
		eventType = "message"
		cmd = event.Message.Command
		param = event.Message.Parameter
	case event.StateChange != nil:
		eventType = "state"
	case event.Error != nil:
		eventType = "error"
	}

	return []string{
		event.Timestamp.UTC().Format(csvExportTime),
		event.ConnectionID,
		event.Direction.String(),
		event.Layer.String(),
		event.Category.String(),
		event.DeviceID,
		event.Zone,
		eventType,
		cmd,
		param,
	}
}
