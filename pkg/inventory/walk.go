package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eiscp-protocol/eiscp-go/pkg/command"
	"github.com/eiscp-protocol/eiscp-go/pkg/wire"
)

// Walk errors.
var (
	ErrNoSelector = errors.New("zone has no selector command")
	ErrWalkFailed = errors.New("dial walk failed")
)

// maxWalkSteps bounds a walk on a device that never cycles back.
const maxWalkSteps = 256

// Controller is the command surface the dial-walk drives. Send is
// fire-and-forget; restore paths use it so a degraded device still gets
// its settings back.
type Controller interface {
	Querier

	Send(zone command.Zone, attribute command.Attribute, value string) error
}

// Walker performs legacy dial-walk discovery on devices without a
// self-description document.
//
// Deprecated: the walk mutates live device state. Prefer Resolver, which
// only asks questions; keep the walk for hardware that answers none.
type Walker struct {
	ctrl    Controller
	table   *command.Table
	timeout time.Duration
}

// NewWalker creates a walker over an established connection.
func NewWalker(ctrl Controller, table *command.Table, timeout time.Duration) *Walker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Walker{ctrl: ctrl, table: table, timeout: timeout}
}

// WalkSources cycles the zone's selector through its full range and
// records every distinct source until the first one comes around again.
// Power, muting and the active selector are restored before returning,
// on success and on every failure path alike.
func (w *Walker) WalkSources(ctx context.Context, zone command.Zone) ([]Source, error) {
	sel, ok := w.table.Selector(zone)
	if !ok {
		return nil, ErrNoSelector
	}
	return w.walk(ctx, zone, sel.Attribute, func(id string) Source {
		name, ok := sel.SelectorName(id)
		if !ok {
			name = id
		}
		return Source{ID: id, Name: name}
	})
}

// WalkSoundModes cycles the main zone's listening mode the same way.
func (w *Walker) WalkSoundModes(ctx context.Context) ([]SoundMode, error) {
	cmd, ok := w.table.Lookup(command.ZoneMain, command.AttrListeningMode)
	if !ok {
		return nil, ErrNoSelector
	}
	sources, err := w.walk(ctx, command.ZoneMain, cmd.Attribute, func(id string) Source {
		name, ok := cmd.SelectorName(id)
		if !ok {
			name = id
		}
		return Source{ID: id, Name: name}
	})
	if err != nil {
		return nil, err
	}

	modes := make([]SoundMode, len(sources))
	for i, s := range sources {
		modes[i] = SoundMode{ID: s.ID, Name: s.Name}
	}
	return modes, nil
}

// walk runs the cycle-until-repeat loop for one dial attribute.
func (w *Walker) walk(ctx context.Context, zone command.Zone, dial command.Attribute, record func(id string) Source) (results []Source, err error) {
	// Capture everything the walk is about to disturb. Restores run in
	// reverse order on every exit path.
	restore := w.capture(zone, dial)
	defer restore()

	// Keep the room quiet while the dial spins.
	if _, ok := w.table.Lookup(zone, command.AttrPower); ok {
		if sendErr := w.ctrl.Send(zone, command.AttrPower, "on"); sendErr != nil {
			return nil, fmt.Errorf("%w: power on: %v", ErrWalkFailed, sendErr)
		}
	}
	if mute, ok := w.table.Muting(zone); ok {
		if sendErr := w.ctrl.Send(zone, mute.Attribute, "on"); sendErr != nil {
			return nil, fmt.Errorf("%w: muting: %v", ErrWalkFailed, sendErr)
		}
	}

	start, err := w.queryID(ctx, zone, dial)
	if err != nil {
		return nil, fmt.Errorf("%w: initial position: %v", ErrWalkFailed, err)
	}
	results = append(results, record(start))

	for step := 0; step < maxWalkSteps; step++ {
		reply, stepErr := w.ctrl.AwaitReply(ctx, zone, dial, command.TokenUp, w.timeout)
		if stepErr != nil {
			return results, fmt.Errorf("%w: step %d: %v", ErrWalkFailed, step+1, stepErr)
		}
		id := selectorID(reply)
		if id == start {
			return results, nil
		}
		results = append(results, record(id))
	}

	return results, fmt.Errorf("%w: dial never cycled back to %s", ErrWalkFailed, start)
}

// capture saves the zone's power, muting and dial position, returning a
// function that puts them all back. Attributes that cannot be read are
// skipped rather than restored blind.
func (w *Walker) capture(zone command.Zone, dial command.Attribute) func() {
	type saved struct {
		attribute command.Attribute
		value     string
	}
	var state []saved

	// A short bounded context: capture must not hang the walk forever.
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout*3)
	defer cancel()

	if cmd, ok := w.table.Lookup(zone, command.AttrPower); ok {
		if reply, err := w.ctrl.AwaitReply(ctx, zone, cmd.Attribute, command.TokenQuery, w.timeout); err == nil {
			state = append(state, saved{cmd.Attribute, cmd.DecodeValue(reply.Parameter)})
		}
	}
	if cmd, ok := w.table.Muting(zone); ok {
		if reply, err := w.ctrl.AwaitReply(ctx, zone, cmd.Attribute, command.TokenQuery, w.timeout); err == nil {
			state = append(state, saved{cmd.Attribute, cmd.DecodeValue(reply.Parameter)})
		}
	}
	if reply, err := w.ctrl.AwaitReply(ctx, zone, dial, command.TokenQuery, w.timeout); err == nil {
		state = append(state, saved{dial, selectorID(reply)})
	}

	return func() {
		for i := len(state) - 1; i >= 0; i-- {
			// Restore failures are swallowed: there is nothing left to
			// do for a device that stopped answering mid-walk.
			w.ctrl.Send(zone, state[i].attribute, state[i].value)
		}
	}
}

// queryID reads the dial's current position.
func (w *Walker) queryID(ctx context.Context, zone command.Zone, dial command.Attribute) (string, error) {
	reply, err := w.ctrl.AwaitReply(ctx, zone, dial, command.TokenQuery, w.timeout)
	if err != nil {
		return "", err
	}
	return selectorID(reply), nil
}

// selectorID normalizes a selector reply to its 2-digit hex id.
func selectorID(reply *wire.Message) string {
	p := strings.TrimSpace(reply.Parameter)
	if len(p) > 2 {
		p = p[:2]
	}
	return strings.ToUpper(p)
}
