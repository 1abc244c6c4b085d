// Package wire implements the eISCP wire format.
//
// An eISCP packet is a fixed 16-byte header followed by the message data:
//
//	offset 0   "ISCP" magic
//	offset 4   uint32 header size (always 16, big-endian)
//	offset 8   uint32 data size (big-endian)
//	offset 12  version byte (0x01)
//	offset 13  3 reserved bytes
//
// The data portion is a single ISCP message: '!' start character, one unit
// type character ('1' for a receiver, 'x' for broadcast), a 3-character
// command, and the parameter. Outbound messages are terminated with CR LF;
// inbound messages may end with EOF (0x1A), CR and/or LF in any combination,
// all of which are stripped during decode.
//
// FrameReader and FrameWriter move packets over a byte stream. Both are safe
// for the single-reader/single-writer discipline the transport package
// enforces. Decode failures are soft: the reader resynchronizes on the next
// "ISCP" magic so one corrupt packet never poisons the stream.
package wire
