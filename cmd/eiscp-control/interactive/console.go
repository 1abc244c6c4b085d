// Package interactive provides the interactive command-line interface
// for eiscp-control.
package interactive

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/eiscp-protocol/eiscp-go/pkg/command"
	"github.com/eiscp-protocol/eiscp-go/pkg/discovery"
	"github.com/eiscp-protocol/eiscp-go/pkg/inventory"
	"github.com/eiscp-protocol/eiscp-go/pkg/log"
	"github.com/eiscp-protocol/eiscp-go/pkg/receiver"
	"github.com/eiscp-protocol/eiscp-go/pkg/state"
)

// Options configures the console.
type Options struct {
	// Host is the receiver to connect to on startup (optional).
	Host string

	// Port is the control port.
	Port int

	// Resolution is the volume resolution of the receiver.
	Resolution int

	// Logger receives protocol events.
	Logger log.Logger
}

// Console handles interactive mode for eiscp-control.
type Console struct {
	opts Options
	rl   *readline.Instance

	client     *receiver.Client
	listenerID int

	// Receivers found by the last discover command, addressable by index.
	found []discovery.Device
}

// New creates a new interactive console.
func New(opts Options) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "eiscp> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Console{opts: opts, rl: rl}, nil
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Close releases the console and any open session.
func (c *Console) Close() {
	if c.client != nil {
		c.client.Disconnect()
		c.client = nil
	}
	c.rl.Close()
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()

		case "discover", "d":
			c.cmdDiscover(ctx)

		case "connect":
			c.cmdConnect(ctx, args)

		case "disconnect":
			c.cmdDisconnect()

		case "set", "s":
			c.cmdSet(ctx, args)

		case "get", "g":
			c.cmdGet(ctx, args)

		case "raw":
			c.cmdRaw(ctx, args)

		case "state", "st":
			c.cmdState(args)

		case "refresh":
			c.cmdRefresh(ctx, args)

		case "inventory", "inv":
			c.cmdInventory(ctx)

		case "walk":
			c.cmdWalk(ctx, args)

		case "status":
			c.cmdStatus()

		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
eISCP Console Commands:
  Discovery & Connection:
    discover               - Find receivers on the local network
    connect <host|#n>      - Open a control session (#n from discover)
    disconnect             - Close the current session

  Control:
    set <zone.attr=value>  - Send a command without waiting
    get <zone.attr>        - Query a value and wait for the answer
    raw <PWR01>            - Send a raw three-letter command

  State:
    state [zone]           - Show cached zone state
    refresh [zone]         - Re-query every attribute (all zones if omitted)

  Inventory:
    inventory              - Resolve zones, sources and sound modes
    walk sources [zone]    - Enumerate sources by stepping the dial
    walk modes             - Enumerate sound modes by stepping the dial

  General:
    status                 - Show session status
    help                   - Show this help
    quit                   - Exit the console

  Command Format:
    zone.attribute=value - e.g., main.volume=25, zone2.power=on
    Values: names (on, off, cd), numbers, up, down, query`)
}

// Connect opens a session to the given host. Exposed so main can honor
// the -host flag before the command loop starts.
func (c *Console) Connect(ctx context.Context, host string) error {
	if c.client != nil {
		c.client.UnregisterListener(c.listenerID)
		c.client.Disconnect()
		c.client = nil
	}

	cfg := receiver.DefaultConfig(host)
	cfg.Port = c.opts.Port
	cfg.VolumeResolution = c.opts.Resolution
	cfg.Logger = c.opts.Logger

	client, err := receiver.NewClient(cfg)
	if err != nil {
		return err
	}
	if err := client.Connect(ctx); err != nil {
		client.Disconnect()
		return err
	}

	c.client = client
	c.listenerID = client.RegisterListener(c.displayChanges)
	client.OnConnectionChange(func(connected bool) {
		status := "connection lost, reconnecting..."
		if connected {
			status = "connected"
		}
		fmt.Fprintf(c.rl.Stdout(), "\n[%s] %s: %s\n", time.Now().Format("15:04:05"), host, status)
		c.rl.Refresh()
	})

	fmt.Fprintf(c.rl.Stdout(), "Connected to %s\n", host)
	return nil
}

// cmdDiscover handles the discover command.
func (c *Console) cmdDiscover(ctx context.Context) {
	fmt.Fprintln(c.rl.Stdout(), "Discovering receivers...")

	devices, err := discovery.Discover(ctx, discovery.DefaultConfig())
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Discovery error: %v\n", err)
		return
	}
	if len(devices) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "No receivers found")
		return
	}

	c.found = devices
	fmt.Fprintf(c.rl.Stdout(), "Found %d receiver(s):\n", len(devices))
	for idx, d := range devices {
		fmt.Fprintf(c.rl.Stdout(), "  #%d %s (host: %s:%d, mac: %s)\n",
			idx+1, d.Model, d.Host, d.Port, d.MAC)
	}
}

// cmdConnect handles the connect command.
func (c *Console) cmdConnect(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: connect <host|#n>")
		fmt.Fprintln(c.rl.Stdout(), "  Use 'discover' to list receivers")
		return
	}

	host := args[0]
	if strings.HasPrefix(host, "#") {
		var idx int
		if _, err := fmt.Sscanf(host, "#%d", &idx); err != nil || idx < 1 || idx > len(c.found) {
			fmt.Fprintf(c.rl.Stdout(), "No such receiver: %s\n", host)
			return
		}
		host = c.found[idx-1].Host
	}

	if err := c.Connect(ctx, host); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Connect failed: %v\n", err)
	}
}

// cmdDisconnect handles the disconnect command.
func (c *Console) cmdDisconnect() {
	if c.client == nil {
		fmt.Fprintln(c.rl.Stdout(), "Not connected")
		return
	}
	c.client.UnregisterListener(c.listenerID)
	c.client.Disconnect()
	c.client = nil
	fmt.Fprintln(c.rl.Stdout(), "Disconnected")
}

// cmdSet handles the set command.
func (c *Console) cmdSet(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: set <zone.attribute=value>")
		fmt.Fprintln(c.rl.Stdout(), "  Example: set main.volume=25")
		return
	}
	if !c.requireSession() {
		return
	}

	if err := c.client.Command(ctx, args[0]); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Send failed: %v\n", err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "OK")
}

// cmdGet handles the get command.
func (c *Console) cmdGet(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: get <zone.attribute>")
		fmt.Fprintln(c.rl.Stdout(), "  Example: get main.power")
		return
	}
	if !c.requireSession() {
		return
	}

	spec := args[0]
	if !strings.Contains(spec, "=") {
		spec += "=query"
	}

	dec, err := c.client.CommandAndAwait(ctx, spec)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Query failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "%s.%s = %s\n",
		dec.Zone, dec.Attribute, dec.Command.DecodeValue(dec.Parameter))
}

// cmdRaw handles the raw command.
func (c *Console) cmdRaw(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: raw <command>")
		fmt.Fprintln(c.rl.Stdout(), "  Example: raw PWRQSTN")
		return
	}
	if !c.requireSession() {
		return
	}

	reply, err := c.client.RawAndAwait(ctx, args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Send failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "%s%s\n", reply.Command, reply.Parameter)
}

// cmdState handles the state command.
func (c *Console) cmdState(args []string) {
	if !c.requireSession() {
		return
	}

	snapshot := c.client.State()
	if len(snapshot) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "No cached state (try 'refresh')")
		return
	}

	zones := make([]string, 0, len(snapshot))
	for zone := range snapshot {
		if len(args) > 0 && string(zone) != args[0] {
			continue
		}
		zones = append(zones, string(zone))
	}
	sort.Strings(zones)

	for _, zone := range zones {
		zoneState := snapshot[command.Zone(zone)]
		fmt.Fprintf(c.rl.Stdout(), "\n%s:\n", zone)

		attrs := make([]string, 0, len(zoneState))
		for attr := range zoneState {
			attrs = append(attrs, string(attr))
		}
		sort.Strings(attrs)
		for _, attr := range attrs {
			fmt.Fprintf(c.rl.Stdout(), "  %-16s %v\n", attr, zoneState[command.Attribute(attr)])
		}
	}
	fmt.Fprintln(c.rl.Stdout())
}

// cmdRefresh handles the refresh command.
func (c *Console) cmdRefresh(ctx context.Context, args []string) {
	if !c.requireSession() {
		return
	}

	var err error
	if len(args) > 0 {
		fmt.Fprintf(c.rl.Stdout(), "Refreshing %s...\n", args[0])
		err = c.client.Refresh(ctx, command.Zone(args[0]))
	} else {
		fmt.Fprintln(c.rl.Stdout(), "Refreshing all zones...")
		err = c.client.RefreshAll(ctx)
	}
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Refresh failed: %v\n", err)
		return
	}
	c.cmdState(args)
}

// cmdInventory handles the inventory command.
func (c *Console) cmdInventory(ctx context.Context) {
	if !c.requireSession() {
		return
	}

	fmt.Fprintln(c.rl.Stdout(), "Resolving inventory...")
	info, err := c.client.ResolveInventory(ctx)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Inventory failed: %v\n", err)
		return
	}

	fmt.Fprintln(c.rl.Stdout(), "\nReceiver:")
	fmt.Fprintln(c.rl.Stdout(), "-------------------------------------------")
	if info.Model != "" {
		fmt.Fprintf(c.rl.Stdout(), "  Model:  %s\n", info.Model)
	}
	if info.MACAddress != "" {
		fmt.Fprintf(c.rl.Stdout(), "  MAC:    %s\n", info.MACAddress)
	}
	fmt.Fprintf(c.rl.Stdout(), "  Origin: %s\n", info.Origin)

	for _, zone := range info.Zones {
		fmt.Fprintf(c.rl.Stdout(), "\n  Zone %d (%s): %s\n", zone.ID, zone.Key, zone.Name)
		for _, src := range zone.Sources {
			fmt.Fprintf(c.rl.Stdout(), "    %s  %s\n", src.ID, src.Name)
		}
	}

	if len(info.SoundModes) > 0 {
		fmt.Fprintln(c.rl.Stdout(), "\n  Sound modes:")
		for _, mode := range info.SoundModes {
			fmt.Fprintf(c.rl.Stdout(), "    %s  %s\n", mode.ID, mode.Name)
		}
	}
	fmt.Fprintln(c.rl.Stdout())
}

// cmdWalk handles the walk command.
func (c *Console) cmdWalk(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: walk sources [zone] | walk modes")
		return
	}
	if !c.requireSession() {
		return
	}

	fmt.Fprintln(c.rl.Stdout(), "Walking the dial (audio is muted during the walk)...")
	walker := inventory.NewWalker(c.client, command.DefaultTable(), 2*time.Second)

	switch args[0] {
	case "sources":
		zone := command.ZoneMain
		if len(args) > 1 {
			zone = command.Zone(args[1])
		}
		sources, err := walker.WalkSources(ctx, zone)
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Walk failed: %v\n", err)
			return
		}
		fmt.Fprintf(c.rl.Stdout(), "Found %d source(s):\n", len(sources))
		for _, src := range sources {
			fmt.Fprintf(c.rl.Stdout(), "  %s  %s\n", src.ID, src.Name)
		}

	case "modes":
		modes, err := walker.WalkSoundModes(ctx)
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Walk failed: %v\n", err)
			return
		}
		fmt.Fprintf(c.rl.Stdout(), "Found %d sound mode(s):\n", len(modes))
		for _, mode := range modes {
			fmt.Fprintf(c.rl.Stdout(), "  %s  %s\n", mode.ID, mode.Name)
		}

	default:
		fmt.Fprintln(c.rl.Stdout(), "Usage: walk sources [zone] | walk modes")
	}
}

// cmdStatus handles the status command.
func (c *Console) cmdStatus() {
	fmt.Fprintln(c.rl.Stdout(), "\nSession Status")
	fmt.Fprintln(c.rl.Stdout(), "-------------------------------------------")
	if c.client == nil {
		fmt.Fprintln(c.rl.Stdout(), "  Not connected")
		fmt.Fprintln(c.rl.Stdout())
		return
	}

	connected := "no"
	if c.client.Connected() {
		connected = "yes"
	}
	fmt.Fprintf(c.rl.Stdout(), "  Connected:  %s\n", connected)

	snapshot := c.client.State()
	fmt.Fprintf(c.rl.Stdout(), "  Zones seen: %d\n", len(snapshot))
	fmt.Fprintln(c.rl.Stdout())
}

// requireSession checks that a session is open before a control command.
func (c *Console) requireSession() bool {
	if c.client == nil {
		fmt.Fprintln(c.rl.Stdout(), "Not connected (use 'connect <host>')")
		return false
	}
	return true
}

// displayChanges prints state changes pushed by the receiver.
func (c *Console) displayChanges(changes []state.Change, _ state.Snapshot) {
	for _, change := range changes {
		fmt.Fprintf(c.rl.Stdout(), "\n[%s] %s.%s = %v\n",
			time.Now().Format("15:04:05"),
			change.Zone, change.Attribute, change.Value)
	}
	c.rl.Refresh()
}
