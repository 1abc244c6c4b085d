// Package receiver is the high-level client for controlling a networked
// AV receiver.
//
// A Client owns one logical device session: the TCP transport, the
// correlation table matching replies to commands, the merged state
// store, and automatic reconnection. Commands are addressed as
// "zone.attribute=value" strings resolved through a pluggable command
// table; replies and unsolicited reports alike flow into the state
// store and out to registered listeners.
package receiver
