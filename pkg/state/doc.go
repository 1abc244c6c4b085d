// Package state holds the merged, current view of a device's zone
// attributes.
//
// The Store owns the attribute maps outright: values enter only through
// Merge, driven by decoded inbound traffic, and leave only as copies.
// Snapshots are point-in-time and never torn, and registered listeners
// are notified of each changed attribute after the merge completes.
package state
