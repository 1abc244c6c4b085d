package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/eiscp-protocol/eiscp-go/pkg/command"
	"github.com/eiscp-protocol/eiscp-go/pkg/discovery"
	"github.com/eiscp-protocol/eiscp-go/pkg/payload"
	"github.com/eiscp-protocol/eiscp-go/pkg/wire"
)

// Resolver errors.
var (
	ErrNoInventory = errors.New("device reported no inventory")
)

// Querier issues one command and awaits its correlated reply.
type Querier interface {
	AwaitReply(ctx context.Context, zone command.Zone, attribute command.Attribute, value string, timeout time.Duration) (*wire.Message, error)
}

// ResolverConfig tunes the self-description interview.
type ResolverConfig struct {
	// Attempts is the number of self-description queries before falling
	// back to synthesis (default: 3).
	Attempts int

	// Timeout bounds each query (default: 2s). Old firmware renders the
	// document slowly; a short timeout misclassifies those devices.
	Timeout time.Duration

	// Discovered carries the broadcast-discovery reply that led to this
	// session, when there was one. It stands in for the identity probe
	// as proof of a live device and fills in model and MAC.
	Discovered *discovery.Device
}

// DefaultResolverConfig returns the default interview configuration.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		Attempts: 3,
		Timeout:  2 * time.Second,
	}
}

// Resolver derives a ReceiverInfo for one connection session.
type Resolver struct {
	querier Querier
	table   *command.Table
	config  ResolverConfig
}

// NewResolver creates a resolver over an established connection.
func NewResolver(querier Querier, table *command.Table, config ResolverConfig) *Resolver {
	if config.Attempts <= 0 {
		config.Attempts = 3
	}
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Second
	}
	return &Resolver{querier: querier, table: table, config: config}
}

// Resolve interviews the device for its self-description document. When
// the device never answers, the inventory is synthesized from the
// command table's declared value domains instead. An identity probe runs
// in parallel to fill in model and MAC for devices without a document.
//
// Synthesis is not a substitute for a device: it only runs once the
// identity probe (or a discovery reply handed in via the config) has
// proven something is answering. A device that answers nothing at all
// resolves to ErrNoInventory.
func (r *Resolver) Resolve(ctx context.Context) (*ReceiverInfo, error) {
	identityCh := make(chan discovery.Device, 1)
	go r.probeIdentity(ctx, identityCh)

	var lastErr error
	for attempt := 0; attempt < r.config.Attempts; attempt++ {
		reply, err := r.querier.AwaitReply(ctx, command.ZoneMain, command.AttrSelfDescription, command.TokenQuery, r.config.Timeout)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		doc, err := payload.ParseDeviceInfo(reply.Parameter)
		if err != nil {
			lastErr = fmt.Errorf("self-description attempt %d: %w", attempt+1, err)
			continue
		}

		info := r.fromDocument(doc)
		r.mergeIdentity(info, identityCh)
		return info, nil
	}

	// No document. Before fabricating zones out of the command table,
	// demand evidence of a live device: either the identity probe
	// answered or discovery heard this address announce itself.
	device, probed := <-identityCh
	if !probed {
		if r.config.Discovered == nil {
			if lastErr != nil {
				return nil, fmt.Errorf("%w: %v", ErrNoInventory, lastErr)
			}
			return nil, ErrNoInventory
		}
		device = *r.config.Discovered
	}

	info := r.synthesize()
	applyIdentity(info, device)
	if len(info.Zones) == 0 {
		return nil, ErrNoInventory
	}
	return info, nil
}

// probeIdentity asks for the identity announcement over the control
// session. Not every device answers on TCP; failures are silent.
func (r *Resolver) probeIdentity(ctx context.Context, out chan<- discovery.Device) {
	defer close(out)

	reply, err := r.querier.AwaitReply(ctx, command.ZoneMain, command.AttrIdentity, command.TokenQuery, r.config.Timeout)
	if err != nil {
		return
	}
	if device, ok := discovery.ParseAnnouncement(reply, ""); ok {
		out <- device
	}
}

// mergeIdentity fills identity fields the primary path left blank.
func (r *Resolver) mergeIdentity(info *ReceiverInfo, identityCh <-chan discovery.Device) {
	device, ok := <-identityCh
	if !ok {
		if r.config.Discovered == nil {
			return
		}
		device = *r.config.Discovered
	}
	applyIdentity(info, device)
}

// applyIdentity copies announcement fields the inventory lacks.
func applyIdentity(info *ReceiverInfo, device discovery.Device) {
	if info.Model == "" {
		info.Model = device.Model
	}
	if info.MACAddress == "" {
		info.MACAddress = device.MAC
	}
}

// fromDocument builds the inventory from a parsed self-description.
func (r *Resolver) fromDocument(doc *payload.DeviceInfo) *ReceiverInfo {
	info := &ReceiverInfo{
		Model:      doc.Model,
		Year:       doc.Year,
		Serial:     doc.Serial,
		ProductID:  doc.ProductID,
		MACAddress: doc.MACAddress,
		SoundModes: r.soundModesFromTable(),
		Origin:     OriginSelfDescription,
	}

	for _, z := range doc.Zones {
		key, ok := ZoneKey(z.ID)
		if !ok {
			continue
		}
		zone := Zone{
			ID:        z.ID,
			Key:       key,
			Name:      z.Name,
			MaxVolume: z.MaxVolume,
		}
		for _, src := range doc.Sources {
			if src.InZone(z.ID) {
				zone.Sources = append(zone.Sources, Source{ID: src.ID, Name: src.Name})
			}
		}
		info.Zones = append(info.Zones, zone)
	}

	return info
}

// synthesize builds the inventory from the command table's declared
// domains: every zone with a selector command, every named selector id.
func (r *Resolver) synthesize() *ReceiverInfo {
	info := &ReceiverInfo{
		SoundModes: r.soundModesFromTable(),
		Origin:     OriginCommandTable,
	}

	for _, key := range r.table.Zones() {
		sel, ok := r.table.Selector(key)
		if !ok {
			continue
		}
		id := zoneID(key)
		if id == 0 {
			continue
		}
		zone := Zone{ID: id, Key: key, Name: string(key)}
		for _, srcID := range sortedIDs(sel.Values) {
			zone.Sources = append(zone.Sources, Source{ID: srcID, Name: sel.Values[srcID]})
		}
		info.Zones = append(info.Zones, zone)
	}

	return info
}

// soundModesFromTable lists the main zone's declared listening modes.
func (r *Resolver) soundModesFromTable() []SoundMode {
	cmd, ok := r.table.Lookup(command.ZoneMain, command.AttrListeningMode)
	if !ok {
		return nil
	}
	modes := make([]SoundMode, 0, len(cmd.Values))
	for _, id := range sortedIDs(cmd.Values) {
		modes = append(modes, SoundMode{ID: id, Name: cmd.Values[id]})
	}
	return modes
}

// zoneID reverses ZoneKey.
func zoneID(key command.Zone) int {
	for id, k := range zoneKeys {
		if k == key {
			return id
		}
	}
	return 0
}

// sortedIDs returns a value map's keys in stable hex order.
func sortedIDs(values map[string]string) []string {
	ids := make([]string, 0, len(values))
	for id := range values {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
