// Package log provides structured protocol logging for ThingSet nodes.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at multiple layers (transport, wire, engine,
// address claim).
// It is separate from operational logging (slog/zerolog) - protocol capture
// provides a complete machine-readable event trace for debugging and
// analysis, independent of whatever human-facing log lines an application
// also emits.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	var logger log.Logger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	fileLogger, err := log.NewFileLogger("/var/log/thingset/node.tslog")
//
//	// Both: use MultiLogger
//	logger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Events are captured at multiple layers:
//   - Transport: Raw frame bytes (FrameEvent)
//   - Wire: Decoded messages (MessageEvent)
//   - Engine and address claim: State changes (StateChangeEvent)
//
// Errors have a dedicated event type (ErrorEventData).
//
// # File Format
//
// Log files use CBOR encoding with a .tslog extension. NewDecoder/EncodeEvent
// in this package are sufficient to write a standalone viewer or exporter;
// none ships with this module.
package log
