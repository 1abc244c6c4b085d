// Package payload decodes compound eISCP reply parameters.
//
// Replies distinguish three conditions that must not be conflated:
//
//   - the device answered with the N/A token: the attribute is unsupported
//     by this hardware, permanently
//   - the reply carried no value: nothing known right now
//   - a real value
//
// ParseList models this as a tagged result instead of overloading one return
// value. Callers latch ResultUnsupported as a capability flag and stop
// querying the attribute; ResultAbsent is transient.
//
// Audio/video information replies are variable-length comma-separated tuples
// whose positions are fixed but whose tails receivers omit depending on
// capability, so missing positions decode to empty strings, never errors.
//
// The self-description document (NRI) is XML; ParseDeviceInfo extracts the
// device identity and the zone/selector inventory, applying the zone
// bitmask on each selector and dropping entries the device marks as not
// installed (value="0").
package payload
