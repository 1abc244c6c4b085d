package receiver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/eiscp-protocol/eiscp-go/pkg/command"
	"github.com/eiscp-protocol/eiscp-go/pkg/connection"
	"github.com/eiscp-protocol/eiscp-go/pkg/correlation"
	"github.com/eiscp-protocol/eiscp-go/pkg/inventory"
	"github.com/eiscp-protocol/eiscp-go/pkg/log"
	"github.com/eiscp-protocol/eiscp-go/pkg/payload"
	"github.com/eiscp-protocol/eiscp-go/pkg/state"
	"github.com/eiscp-protocol/eiscp-go/pkg/transport"
	"github.com/eiscp-protocol/eiscp-go/pkg/wire"
)

// Client errors.
var (
	ErrDisconnected   = errors.New("disconnected")
	ErrInvalidCommand = errors.New("invalid command string")
	ErrBadResolution  = errors.New("unsupported volume resolution")
)

// Volume resolutions seen across device generations. The resolution is
// the number of steps the device's volume dial has; it must be
// configured, never inferred from traffic.
var volumeResolutions = map[int]bool{50: true, 80: true, 100: true, 200: true}

// DefaultVolumeResolution matches the most common device generation.
const DefaultVolumeResolution = 50

// Config configures a receiver client.
type Config struct {
	// Host is the receiver's address.
	Host string

	// Port is the TCP control port (default: 60128).
	Port int

	// VolumeResolution is the device's volume step count, one of
	// 50, 80, 100 or 200 (default: 50).
	VolumeResolution int

	// Table is the command table (default: command.DefaultTable()).
	Table *command.Table

	// AwaitTimeout bounds CommandAndAwait and queries (default: 5s).
	AwaitTimeout time.Duration

	// AutoReconnect re-dials with backoff after the session drops
	// (default: true; set DisableReconnect to turn off).
	DisableReconnect bool

	// Reconnect tunes the reconnection episodes.
	Reconnect connection.ManagerConfig

	// Transport tunes the TCP session.
	Transport transport.ConnectionConfig

	// Logger receives protocol events.
	Logger log.Logger
}

// DefaultConfig returns a client configuration for the given host.
func DefaultConfig(host string) Config {
	return Config{
		Host:             host,
		Port:             transport.DefaultPort,
		VolumeResolution: DefaultVolumeResolution,
		AwaitTimeout:     correlation.DefaultAwaitTimeout,
		Transport:        transport.DefaultConnectionConfig(),
	}
}

// Selection is a decoded selector-style value: a wire id plus the
// display name the command table knows it by.
type Selection struct {
	ID   string
	Name string
}

// String returns the display name, or the raw id when unnamed.
func (s Selection) String() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// Client is one logical receiver session.
type Client struct {
	config Config
	table  *command.Table
	logger log.Logger

	store   *state.Store
	corr    *correlation.Table
	manager *connection.Manager

	mu   sync.RWMutex
	conn *transport.Connection

	// caps latches attributes the device answered N/A for. Permanent
	// for the life of the session.
	capsMu sync.RWMutex
	caps   map[capKey]bool

	onConnectionChange func(connected bool)
}

type capKey struct {
	zone      command.Zone
	attribute command.Attribute
}

// NewClient creates a client for the given configuration.
func NewClient(config Config) (*Client, error) {
	if config.Host == "" {
		return nil, errors.New("host is required")
	}
	if config.Port == 0 {
		config.Port = transport.DefaultPort
	}
	if config.VolumeResolution == 0 {
		config.VolumeResolution = DefaultVolumeResolution
	}
	if !volumeResolutions[config.VolumeResolution] {
		return nil, fmt.Errorf("%w: %d", ErrBadResolution, config.VolumeResolution)
	}
	if config.Table == nil {
		config.Table = command.DefaultTable()
	}
	if config.AwaitTimeout <= 0 {
		config.AwaitTimeout = correlation.DefaultAwaitTimeout
	}
	if config.Logger == nil {
		config.Logger = log.NoopLogger{}
	}

	c := &Client{
		config: config,
		table:  config.Table,
		logger: config.Logger,
		store:  state.NewStore(),
		corr:   correlation.NewTable(),
		caps:   make(map[capKey]bool),
	}

	c.manager = connection.NewManagerWithConfig(c.dial, config.Reconnect)
	c.manager.SetAutoReconnect(!config.DisableReconnect)
	c.manager.StartReconnectLoop()

	return c, nil
}

// Connect establishes the session. The initial attempt is not retried;
// once connected, drops trigger background reconnection unless disabled.
func (c *Client) Connect(ctx context.Context) error {
	err := c.manager.Connect(ctx)
	if errors.Is(err, connection.ErrAlreadyConnected) {
		return nil
	}
	return err
}

// Disconnect tears the session down and releases the client. All
// outstanding waiters resolve with ErrDisconnected.
func (c *Client) Disconnect() error {
	c.manager.Close()

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	c.corr.FailAll(ErrDisconnected)
	return nil
}

// Connected reports whether the session is up.
func (c *Client) Connected() bool {
	return c.manager.IsConnected()
}

// OnConnectionChange registers a callback fired when the session comes
// up or goes down.
func (c *Client) OnConnectionChange(fn func(connected bool)) {
	c.onConnectionChange = fn
	c.manager.OnConnected(func() {
		if c.onConnectionChange != nil {
			c.onConnectionChange(true)
		}
	})
	c.manager.OnDisconnected(func() {
		if c.onConnectionChange != nil {
			c.onConnectionChange(false)
		}
	})
}

// dial builds a fresh transport session. Used for both the initial
// connect and every reconnect attempt; sessions are never reused.
func (c *Client) dial(ctx context.Context) error {
	cfg := c.config.Transport
	cfg.Port = c.config.Port
	cfg.Logger = c.logger

	h := &connHandler{client: c}
	conn := transport.NewConnection(cfg, h)
	h.conn = conn
	if err := conn.Connect(ctx, c.config.Host); err != nil {
		return err
	}

	c.mu.Lock()
	old := c.conn
	c.conn = conn
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}

	// Cached state may be stale after a gap in the session.
	c.store.Reset()
	return nil
}

// Command sends a "zone.attribute=value" command without waiting for a
// reply. The device reports the resulting state change asynchronously.
func (c *Client) Command(ctx context.Context, spec string) error {
	msg, _, err := c.encodeSpec(spec)
	if err != nil {
		return err
	}
	return c.send(ctx, msg)
}

// CommandAndAwait sends a "zone.attribute=value" command and waits for
// the device's reply on the same command prefix.
func (c *Client) CommandAndAwait(ctx context.Context, spec string) (*command.Decoded, error) {
	msg, _, err := c.encodeSpec(spec)
	if err != nil {
		return nil, err
	}

	reply, err := c.sendAndAwait(ctx, msg, c.config.AwaitTimeout)
	if err != nil {
		return nil, err
	}
	return c.table.Decode(reply)
}

// Raw sends a raw command like "PWR01" without waiting for a reply.
func (c *Client) Raw(ctx context.Context, raw string) error {
	msg, err := parseRaw(raw)
	if err != nil {
		return err
	}
	return c.send(ctx, msg)
}

// RawAndAwait sends a raw command and waits for the reply sharing its
// three-character prefix.
func (c *Client) RawAndAwait(ctx context.Context, raw string) (*wire.Message, error) {
	msg, err := parseRaw(raw)
	if err != nil {
		return nil, err
	}
	return c.sendAndAwait(ctx, msg, c.config.AwaitTimeout)
}

// Send issues a fire-and-forget command by zone and attribute. It
// satisfies inventory.Controller.
func (c *Client) Send(zone command.Zone, attribute command.Attribute, value string) error {
	msg, err := c.encode(zone, attribute, value)
	if err != nil {
		return err
	}
	return c.send(context.Background(), msg)
}

// AwaitReply issues a command and waits for its correlated reply. It
// satisfies inventory.Querier.
func (c *Client) AwaitReply(ctx context.Context, zone command.Zone, attribute command.Attribute, value string, timeout time.Duration) (*wire.Message, error) {
	msg, err := c.encode(zone, attribute, value)
	if err != nil {
		return nil, err
	}
	return c.sendAndAwait(ctx, msg, timeout)
}

// Query asks for an attribute's current value and waits for the answer.
func (c *Client) Query(ctx context.Context, zone command.Zone, attribute command.Attribute) (*wire.Message, error) {
	return c.AwaitReply(ctx, zone, attribute, "query", c.config.AwaitTimeout)
}

// State returns a point-in-time snapshot of all known zone state.
func (c *Client) State() state.Snapshot {
	return c.store.Snapshot()
}

// RegisterListener subscribes to state changes. Returns the id to pass
// to UnregisterListener.
func (c *Client) RegisterListener(l state.Listener) int {
	return c.store.RegisterListener(l)
}

// UnregisterListener removes a previously registered listener.
func (c *Client) UnregisterListener(id int) {
	c.store.UnregisterListener(id)
}

// ResolveInventory interviews the device for its zones, sources and
// sound modes.
func (c *Client) ResolveInventory(ctx context.Context) (*inventory.ReceiverInfo, error) {
	r := inventory.NewResolver(c, c.table, inventory.DefaultResolverConfig())
	return r.Resolve(ctx)
}

// Unsupported reports whether the device has declared an attribute
// unavailable on this session.
func (c *Client) Unsupported(zone command.Zone, attribute command.Attribute) bool {
	c.capsMu.RLock()
	defer c.capsMu.RUnlock()
	return c.caps[capKey{zone, attribute}]
}

// encodeSpec parses and encodes a "zone.attribute=value" string.
func (c *Client) encodeSpec(spec string) (*wire.Message, *command.Command, error) {
	zone, attribute, value, err := ParseSpec(spec)
	if err != nil {
		return nil, nil, err
	}
	msg, err := c.encode(zone, attribute, value)
	if err != nil {
		return nil, nil, err
	}
	cmd, _ := c.table.Lookup(zone, attribute)
	return msg, cmd, nil
}

// encode builds the wire message, enforcing the configured volume
// resolution as the effective ceiling for volume commands.
func (c *Client) encode(zone command.Zone, attribute command.Attribute, value string) (*wire.Message, error) {
	if attribute == command.AttrVolume {
		if n, err := strconv.Atoi(value); err == nil && n > c.config.VolumeResolution {
			return nil, fmt.Errorf("%w: volume %d exceeds resolution %d",
				command.ErrInvalidValue, n, c.config.VolumeResolution)
		}
	}
	return c.table.Encode(zone, attribute, value)
}

// send writes a message, implicitly reconnecting first when the session
// dropped and auto-reconnect is enabled.
func (c *Client) send(ctx context.Context, msg *wire.Message) error {
	if err := c.ensureConnected(ctx); err != nil {
		return err
	}

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return ErrDisconnected
	}
	if err := conn.Send(msg); err != nil {
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	return nil
}

// sendAndAwait registers the waiter before writing. Registering after
// the write loses replies from fast devices.
func (c *Client) sendAndAwait(ctx context.Context, msg *wire.Message, timeout time.Duration) (*wire.Message, error) {
	w := c.corr.Register(msg.Command)
	if err := c.send(ctx, msg); err != nil {
		c.corr.Cancel(w)
		return nil, err
	}
	return c.corr.Await(ctx, w, timeout)
}

// ensureConnected performs the implicit reconnect-before-send.
func (c *Client) ensureConnected(ctx context.Context) error {
	if c.manager.IsConnected() {
		return nil
	}
	if c.config.DisableReconnect {
		return ErrDisconnected
	}
	err := c.manager.Connect(ctx)
	if errors.Is(err, connection.ErrAlreadyConnected) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	return nil
}

// handleMessage is the read-loop sink: correlation first, then state.
func (c *Client) handleMessage(msg *wire.Message) {
	awaited := c.corr.Dispatch(msg)

	dec, err := c.table.Decode(msg)
	if err != nil {
		// Unknown prefixes are logged and dropped; the stream goes on.
		c.logError(err)
		return
	}

	c.logger.Log(log.Event{
		Timestamp: time.Now().UTC(),
		Direction: log.DirectionIn,
		Layer:     log.LayerClient,
		Category:  log.CategoryMessage,
		Zone:      string(dec.Zone),
		Message: &log.MessageEvent{
			Command:   msg.Command,
			Parameter: msg.Parameter,
			Attribute: string(dec.Attribute),
			Awaited:   awaited,
		},
	})

	value, ok := c.decodeValue(dec)
	if !ok {
		c.latch(dec.Zone, dec.Attribute)
		return
	}
	if value != nil {
		c.store.Set(dec.Zone, dec.Attribute, value)
	}
}

// decodeValue turns a decoded message into the typed value the state
// store holds for its attribute. ok is false when the device declared
// the attribute unsupported.
func (c *Client) decodeValue(dec *command.Decoded) (any, bool) {
	if dec.Parameter == command.TokenNA {
		return nil, false
	}

	switch dec.Attribute {
	case command.AttrVolume, command.AttrPreset:
		s := dec.Command.DecodeValue(dec.Parameter)
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
		return s, true

	case command.AttrSelector, command.AttrInputSelector, command.AttrListeningMode:
		id := strings.ToUpper(dec.Parameter)
		if len(id) > 2 {
			id = id[:2]
		}
		name, _ := dec.Command.SelectorName(id)
		return Selection{ID: id, Name: name}, true

	case command.AttrAudioInfo:
		info, kind := payload.ParseAudioInfo(dec.Parameter)
		switch kind {
		case payload.ResultUnsupported:
			return nil, false
		case payload.ResultAbsent:
			return nil, true
		}
		return info, true

	case command.AttrVideoInfo:
		info, kind := payload.ParseVideoInfo(dec.Parameter)
		switch kind {
		case payload.ResultUnsupported:
			return nil, false
		case payload.ResultAbsent:
			return nil, true
		}
		return info, true

	case command.AttrDisplayText:
		text, err := payload.ParseDisplayText(dec.Parameter)
		if err != nil {
			// Soft failure: the attribute stays unset.
			c.logError(err)
			return nil, true
		}
		return text, true

	case command.AttrSelfDescription, command.AttrIdentity:
		// Device-level documents are consumed by the inventory
		// resolver, not the state store.
		return nil, true

	default:
		return dec.Command.DecodeValue(dec.Parameter), true
	}
}

// latchable attributes stay latched for the whole session once the
// device answers N/A; everything else may come back (a powered-off zone
// answers N/A for volume).
var latchable = map[command.Attribute]bool{
	command.AttrHDMIOut:   true,
	command.AttrAudioInfo: true,
	command.AttrVideoInfo: true,
}

// latch records a permanent capability gap.
func (c *Client) latch(zone command.Zone, attribute command.Attribute) {
	if !latchable[attribute] {
		return
	}
	c.capsMu.Lock()
	c.caps[capKey{zone, attribute}] = true
	c.capsMu.Unlock()
}

// handleConnectionDown reacts to the transport dropping underneath us.
// Only the active session may fail waiters: a superseded session being
// closed by dial must not kill waiters that belong to its replacement.
func (c *Client) handleConnectionDown(conn *transport.Connection) {
	c.mu.RLock()
	active := c.conn == conn
	c.mu.RUnlock()
	if !active {
		return
	}
	c.corr.FailAll(ErrDisconnected)
	c.manager.ConnectionLost()
}

func (c *Client) logError(err error) {
	c.logger.Log(log.Event{
		Timestamp: time.Now().UTC(),
		Direction: log.DirectionIn,
		Layer:     log.LayerClient,
		Category:  log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerClient,
			Message: err.Error(),
		},
	})
}

// connHandler adapts one transport session's callbacks onto the client.
type connHandler struct {
	client *Client
	conn   *transport.Connection
}

func (h *connHandler) OnMessage(msg *wire.Message) {
	h.client.handleMessage(msg)
}

func (h *connHandler) OnStateChange(oldState, newState transport.ConnectionState) {
	if oldState == transport.StateConnected && newState != transport.StateConnected {
		h.client.handleConnectionDown(h.conn)
	}
}

func (h *connHandler) OnError(err error) {
	h.client.logError(err)
}

// ParseSpec splits a "zone.attribute=value" command string.
func ParseSpec(spec string) (command.Zone, command.Attribute, string, error) {
	target, value, ok := strings.Cut(spec, "=")
	if !ok || value == "" {
		return "", "", "", fmt.Errorf("%w: %q (want zone.attribute=value)", ErrInvalidCommand, spec)
	}
	zone, attribute, ok := strings.Cut(target, ".")
	if !ok || zone == "" || attribute == "" {
		return "", "", "", fmt.Errorf("%w: %q (want zone.attribute=value)", ErrInvalidCommand, spec)
	}
	return command.Zone(strings.TrimSpace(zone)),
		command.Attribute(strings.TrimSpace(attribute)),
		strings.TrimSpace(value), nil
}

// parseRaw builds a message from a raw command like "PWR01" or a full
// data form like "!1PWR01".
func parseRaw(raw string) (*wire.Message, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "!") {
		return wire.ParseMessage([]byte(raw))
	}
	if len(raw) < wire.CommandLength {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCommand, raw)
	}
	return wire.NewMessage(strings.ToUpper(raw[:wire.CommandLength]), raw[wire.CommandLength:]), nil
}
