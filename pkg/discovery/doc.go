// Package discovery finds receivers on the local network.
//
// Receivers answer a broadcast identity query on the same UDP port the
// control protocol uses for TCP. The announcement carries the model
// name, control port, destination area and MAC address, which is enough
// to dial the device without any prior configuration.
package discovery
