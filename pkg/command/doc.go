// Package command defines the eISCP command table: the mapping between
// human-level (zone, attribute) pairs and 3-character wire prefixes, together
// with the per-command value encoding and decoding rules.
//
// The table is data, not logic. A built-in table covers the standard Onkyo
// command set for up to four zones; vendor-specific additions can be layered
// on top from a YAML document via MergeYAML. The rest of the module treats
// the table as read-only input.
//
// Value handling falls into four kinds:
//   - enum: fixed token set ("on" -> "01")
//   - range: bounded integer encoded as 2-digit uppercase hex
//   - selector: 2-digit hex id with an optional name enumeration; unknown
//     ids pass through untouched, because devices report vendor ids the
//     table does not know
//   - literal: opaque parameter handed to the payload parsers
//
// The sentinel tokens QSTN, UP, DOWN and TG are part of a command's declared
// domain, not values.
package command
