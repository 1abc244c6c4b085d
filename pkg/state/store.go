package state

import (
	"reflect"
	"sync"

	"github.com/eiscp-protocol/eiscp-go/pkg/command"
)

// ZoneState maps attributes to their last decoded value.
type ZoneState map[command.Attribute]any

// Snapshot is a point-in-time copy of every zone's state.
type Snapshot map[command.Zone]ZoneState

// Get returns the value of an attribute in a zone.
func (s Snapshot) Get(zone command.Zone, attr command.Attribute) (any, bool) {
	v, ok := s[zone][attr]
	return v, ok
}

// Change describes one attribute that a merge updated.
type Change struct {
	Zone      command.Zone
	Attribute command.Attribute
	Value     any
}

// Listener receives the attributes a merge changed, plus the post-merge
// snapshot. Listeners run on the merging goroutine and see merges in the
// order they were applied; keep them fast, and never merge back into the
// store from inside one.
type Listener func(changes []Change, snap Snapshot)

// Store is a concurrency-safe attribute store for one device.
type Store struct {
	mu    sync.RWMutex
	zones map[command.Zone]ZoneState

	// dispatchMu serializes listener notification so concurrent merges
	// cannot deliver snapshots out of order. Acquired while s.mu is
	// still held, released after the listeners ran.
	dispatchMu sync.Mutex

	listenerMu sync.RWMutex
	listeners  map[int]Listener
	nextID     int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		zones:     make(map[command.Zone]ZoneState),
		listeners: make(map[int]Listener),
	}
}

// Merge applies a partial update. Attributes not named in the update keep
// their current values. Listeners are notified only for attributes whose
// value actually changed.
func (s *Store) Merge(update Snapshot) {
	s.mu.Lock()
	var changes []Change
	for zone, attrs := range update {
		zs := s.zones[zone]
		if zs == nil {
			zs = make(ZoneState, len(attrs))
			s.zones[zone] = zs
		}
		for attr, value := range attrs {
			if old, ok := zs[attr]; ok && reflect.DeepEqual(old, value) {
				continue
			}
			zs[attr] = value
			changes = append(changes, Change{Zone: zone, Attribute: attr, Value: value})
		}
	}
	if len(changes) == 0 {
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	s.dispatchMu.Lock()
	s.mu.Unlock()

	s.listenerMu.RLock()
	for _, l := range s.listeners {
		l(changes, snap)
	}
	s.listenerMu.RUnlock()
	s.dispatchMu.Unlock()
}

// Set merges a single attribute value.
func (s *Store) Set(zone command.Zone, attr command.Attribute, value any) {
	s.Merge(Snapshot{zone: {attr: value}})
}

// Get returns the current value of an attribute in a zone.
func (s *Store) Get(zone command.Zone, attr command.Attribute) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.zones[zone][attr]
	return v, ok
}

// Snapshot returns a consistent point-in-time copy of the whole store.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Reset drops all attribute values, keeping listeners registered. Called
// when a connection is replaced and cached state can no longer be trusted.
func (s *Store) Reset() {
	s.mu.Lock()
	s.zones = make(map[command.Zone]ZoneState)
	s.mu.Unlock()
}

// RegisterListener adds a listener and returns its registration id.
func (s *Store) RegisterListener(l Listener) int {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return id
}

// UnregisterListener removes a listener by registration id.
func (s *Store) UnregisterListener(id int) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	delete(s.listeners, id)
}

// snapshotLocked deep-copies the zone maps. Callers hold s.mu.
func (s *Store) snapshotLocked() Snapshot {
	snap := make(Snapshot, len(s.zones))
	for zone, attrs := range s.zones {
		zs := make(ZoneState, len(attrs))
		for attr, value := range attrs {
			zs[attr] = value
		}
		snap[zone] = zs
	}
	return snap
}
