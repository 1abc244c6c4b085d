// Package inventory derives what a receiver is wired up to do: its
// installed zones and the sources and sound modes valid in each.
//
// The structured self-description document is the preferred path. When a
// device predates it, the resolver synthesizes an inventory from the
// command table's declared selector domains, and callers may fall back
// further to the legacy dial-walk, which cycles the selector through its
// range on the live device and records every distinct answer. The walk
// mutates device state and is kept only for old hardware; it saves and
// restores power, muting and the active selector on every exit path.
package inventory
