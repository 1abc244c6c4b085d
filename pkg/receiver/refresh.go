package receiver

import (
	"context"
	"errors"

	"github.com/eiscp-protocol/eiscp-go/pkg/command"
	"github.com/eiscp-protocol/eiscp-go/pkg/correlation"
)

// refreshAttributes is the query order for one zone. Attributes the
// zone's table does not declare are skipped, as are attributes the
// device has latched as unsupported.
var refreshAttributes = []command.Attribute{
	command.AttrPower,
	command.AttrVolume,
	command.AttrMuting,
	command.AttrAudioMuting,
	command.AttrSelector,
	command.AttrInputSelector,
	command.AttrListeningMode,
	command.AttrPreset,
	command.AttrHDMIOut,
	command.AttrAudioInfo,
	command.AttrVideoInfo,
	command.AttrDisplayText,
}

// Refresh queries every queryable attribute of a zone in sequence and
// lets the replies flow into the state store. Attributes that time out
// are skipped; a zone in standby simply does not answer everything.
// Queries run one at a time: the wire has no multiplexing.
func (c *Client) Refresh(ctx context.Context, zone command.Zone) error {
	for _, attribute := range refreshAttributes {
		if _, ok := c.table.Lookup(zone, attribute); !ok {
			continue
		}
		if c.Unsupported(zone, attribute) {
			continue
		}

		_, err := c.AwaitReply(ctx, zone, attribute, "query", c.config.AwaitTimeout)
		switch {
		case err == nil:
		case errors.Is(err, correlation.ErrAwaitTimeout):
			// No answer is data too, just not an error.
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			return err
		}
	}
	return nil
}

// RefreshAll refreshes every zone the command table declares.
func (c *Client) RefreshAll(ctx context.Context) error {
	for _, zone := range c.table.Zones() {
		if err := c.Refresh(ctx, zone); err != nil {
			return err
		}
	}
	return nil
}
