package inventory

import (
	"github.com/eiscp-protocol/eiscp-go/pkg/command"
)

// Origin records which path produced an inventory.
type Origin uint8

const (
	// OriginSelfDescription means the device's own document was parsed.
	OriginSelfDescription Origin = iota

	// OriginCommandTable means the inventory was synthesized from the
	// command table's declared value domains.
	OriginCommandTable

	// OriginWalk means the legacy dial-walk produced the lists.
	OriginWalk
)

// String returns the origin name.
func (o Origin) String() string {
	switch o {
	case OriginSelfDescription:
		return "SELF_DESCRIPTION"
	case OriginCommandTable:
		return "COMMAND_TABLE"
	case OriginWalk:
		return "WALK"
	default:
		return "UNKNOWN"
	}
}

// Source is one selectable input.
type Source struct {
	// ID is the 2-digit hex selector id.
	ID string

	// Name is the display name.
	Name string
}

// SoundMode is one selectable listening mode.
type SoundMode struct {
	// ID is the 2-digit hex mode id.
	ID string

	// Name is the display name.
	Name string
}

// Zone is one installed zone with the sources valid in it.
type Zone struct {
	// ID is the 1-based zone number.
	ID int

	// Key is the command-table zone this maps to.
	Key command.Zone

	// Name is the display name.
	Name string

	// MaxVolume is the zone's volume ceiling (0 when not reported).
	MaxVolume int

	// Sources is the ordered list of sources wired into this zone.
	Sources []Source
}

// ReceiverInfo is the resolved inventory for one connection session.
// Immutable once resolved; a fresh self-description replaces it wholesale.
type ReceiverInfo struct {
	// Identity fields (empty when the device never reported them).
	Model      string
	Year       string
	Serial     string
	ProductID  string
	MACAddress string

	// Zones installed on the device, in document order.
	Zones []Zone

	// SoundModes selectable on the main zone.
	SoundModes []SoundMode

	// Origin records which resolution path ran.
	Origin Origin
}

// Zone returns the zone with the given 1-based id.
func (r *ReceiverInfo) Zone(id int) (*Zone, bool) {
	for i := range r.Zones {
		if r.Zones[i].ID == id {
			return &r.Zones[i], true
		}
	}
	return nil, false
}

// zoneKeys maps 1-based zone ids to command-table zones.
var zoneKeys = map[int]command.Zone{
	1: command.ZoneMain,
	2: command.Zone2,
	3: command.Zone3,
	4: command.Zone4,
}

// ZoneKey maps a 1-based zone id to its command-table zone.
func ZoneKey(id int) (command.Zone, bool) {
	key, ok := zoneKeys[id]
	return key, ok
}
