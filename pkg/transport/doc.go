// Package transport owns the TCP session to a receiver.
//
// A Connection dials the device, runs a dedicated read loop that decodes
// each inbound packet and hands it to the registered handler, and
// serializes outbound writes. Malformed inbound packets are reported and
// skipped; the stream stays up. Receivers send no ping traffic of their
// own, so liveness is probed with a harmless power query whenever the
// line has been silent too long.
package transport
