// Package log provides structured protocol logging for eISCP.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at multiple layers (transport, wire, client).
// It is separate from operational logging (slog) - protocol capture provides
// a complete machine-readable event trace for debugging and analysis.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.Logger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.Logger, _ = log.NewFileLogger("/var/log/eiscp/receiver.elog")
//
//	// Both: use MultiLogger
//	capture, _ := log.NewFileLogger("/var/log/eiscp/receiver.elog")
//	cfg.Logger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    capture,
//	)
//
// # Event Types
//
// Events are captured at multiple layers:
//   - Transport: Raw frame bytes (FrameEvent)
//   - Wire: Decoded messages (MessageEvent)
//   - Client: State changes (StateChangeEvent)
//
// Errors have a dedicated event type and can occur at any layer.
//
// # File Format
//
// Log files use CBOR encoding with .elog extension. Reader streams a log
// file back with optional filtering.
package log
