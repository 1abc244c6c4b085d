package command

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/eiscp-protocol/eiscp-go/pkg/wire"
)

// Table errors.
var (
	// ErrUnknownCommand indicates a (zone, attribute) pair absent from the table.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrInvalidValue indicates a value outside the command's declared domain.
	ErrInvalidValue = errors.New("invalid value")

	// ErrDuplicateEntry indicates two table entries claim the same key or prefix.
	ErrDuplicateEntry = errors.New("duplicate table entry")
)

// Zone identifies an independently controllable output of the receiver.
type Zone string

// Standard zones.
const (
	ZoneMain Zone = "main"
	Zone2    Zone = "zone2"
	Zone3    Zone = "zone3"
	Zone4    Zone = "zone4"
)

// Attribute is a human-level attribute name within a zone.
type Attribute string

// Standard attributes.
const (
	AttrPower         Attribute = "power"
	AttrMuting        Attribute = "muting"
	AttrAudioMuting   Attribute = "audio-muting"
	AttrVolume        Attribute = "volume"
	AttrSelector      Attribute = "selector"
	AttrInputSelector Attribute = "input-selector"
	AttrListeningMode Attribute = "listening-mode"
	AttrPreset        Attribute = "preset"
	AttrAudioInfo     Attribute = "audio-information"
	AttrVideoInfo     Attribute = "video-information"
	AttrHDMIOut       Attribute = "hdmi-output-selector"
	AttrDisplayText   Attribute = "display-text"

	// Device-level attributes, reported under the main zone.
	AttrSelfDescription Attribute = "self-description"
	AttrIdentity        Attribute = "identity"
)

// Sentinel tokens shared across the command set.
const (
	TokenQuery  = "QSTN"
	TokenUp     = "UP"
	TokenDown   = "DOWN"
	TokenToggle = "TG"
	TokenNA     = "N/A"
)

// Kind selects the value encoding rule for a command.
type Kind uint8

const (
	// KindEnum encodes a fixed token set via the Values map.
	KindEnum Kind = iota

	// KindRange encodes an integer 0..Max as 2-digit uppercase hex.
	KindRange

	// KindSelector encodes a 2-digit hex id, optionally named in Values.
	KindSelector

	// KindLiteral passes the value through untouched.
	KindLiteral
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindEnum:
		return "enum"
	case KindRange:
		return "range"
	case KindSelector:
		return "selector"
	case KindLiteral:
		return "literal"
	default:
		return "unknown"
	}
}

// Command is one entry of the command table.
type Command struct {
	// Zone the command addresses.
	Zone Zone

	// Attribute is the human-level name.
	Attribute Attribute

	// Prefix is the 3-character wire prefix.
	Prefix string

	// Kind selects the value encoding rule.
	Kind Kind

	// Max bounds KindRange values (inclusive).
	Max int

	// Values maps human tokens to wire codes for KindEnum, and wire ids to
	// display names for KindSelector.
	Values map[string]string

	// Sentinels are the tokens accepted verbatim in addition to values.
	// TokenQuery is always implied.
	Sentinels []string

	// codes is the reverse of Values for KindEnum, built lazily by the table.
	codes map[string]string
}

// Key identifies a command within a table.
type Key struct {
	Zone      Zone
	Attribute Attribute
}

// Decoded is the result of resolving an inbound message against the table.
type Decoded struct {
	// Zone and Attribute identify the command the message concerns.
	Zone      Zone
	Attribute Attribute

	// Command is the resolved table entry.
	Command *Command

	// Parameter is the opaque payload portion for attribute-specific parsing.
	Parameter string
}

// Table maps (zone, attribute) pairs to commands and wire prefixes back to them.
type Table struct {
	byKey    map[Key]*Command
	byPrefix map[string]*Command
}

// NewTable builds a table from entries.
// Entries must not duplicate a key or a prefix.
func NewTable(entries []Command) (*Table, error) {
	t := &Table{
		byKey:    make(map[Key]*Command, len(entries)),
		byPrefix: make(map[string]*Command, len(entries)),
	}
	for i := range entries {
		if err := t.add(&entries[i]); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// add inserts one entry, building the reverse code map.
func (t *Table) add(c *Command) error {
	if len(c.Prefix) != wire.CommandLength {
		return fmt.Errorf("command %s.%s: prefix %q must be %d characters",
			c.Zone, c.Attribute, c.Prefix, wire.CommandLength)
	}
	key := Key{c.Zone, c.Attribute}
	if _, ok := t.byKey[key]; ok {
		return fmt.Errorf("%w: %s.%s", ErrDuplicateEntry, c.Zone, c.Attribute)
	}
	if _, ok := t.byPrefix[c.Prefix]; ok {
		return fmt.Errorf("%w: prefix %s", ErrDuplicateEntry, c.Prefix)
	}

	if c.Kind == KindEnum {
		c.codes = make(map[string]string, len(c.Values))
		tokens := make([]string, 0, len(c.Values))
		for token := range c.Values {
			tokens = append(tokens, token)
		}
		sort.Strings(tokens)
		for _, token := range tokens {
			// First token in sorted order wins for ambiguous codes
			// (e.g. off/standby both map to "00" and decode as "off").
			code := c.Values[token]
			if _, ok := c.codes[code]; !ok {
				c.codes[code] = token
			}
		}
	}

	t.byKey[key] = c
	t.byPrefix[c.Prefix] = c
	return nil
}

// Lookup returns the command for a (zone, attribute) pair.
func (t *Table) Lookup(zone Zone, attribute Attribute) (*Command, bool) {
	c, ok := t.byKey[Key{zone, attribute}]
	return c, ok
}

// LookupPrefix returns the command for a wire prefix.
func (t *Table) LookupPrefix(prefix string) (*Command, bool) {
	c, ok := t.byPrefix[prefix]
	return c, ok
}

// Zones returns the distinct zones declared in the table, main zone first.
func (t *Table) Zones() []Zone {
	seen := make(map[Zone]bool)
	var zones []Zone
	for key := range t.byKey {
		if !seen[key.Zone] {
			seen[key.Zone] = true
			zones = append(zones, key.Zone)
		}
	}
	// Stable order: main, zone2, zone3, zone4, then anything else by name.
	order := map[Zone]int{ZoneMain: 0, Zone2: 1, Zone3: 2, Zone4: 3}
	rank := func(z Zone) int {
		if r, ok := order[z]; ok {
			return r
		}
		return len(order)
	}
	sort.Slice(zones, func(i, j int) bool {
		ri, rj := rank(zones[i]), rank(zones[j])
		if ri != rj {
			return ri < rj
		}
		return zones[i] < zones[j]
	})
	return zones
}

// Selector returns the selector command for a zone, if the table declares one.
// The main zone uses "input-selector", other zones "selector".
func (t *Table) Selector(zone Zone) (*Command, bool) {
	if c, ok := t.Lookup(zone, AttrInputSelector); ok {
		return c, true
	}
	return t.Lookup(zone, AttrSelector)
}

// Muting returns the muting command for a zone, if the table declares one.
// The main zone uses "audio-muting", other zones "muting".
func (t *Table) Muting(zone Zone) (*Command, bool) {
	if c, ok := t.Lookup(zone, AttrAudioMuting); ok {
		return c, true
	}
	return t.Lookup(zone, AttrMuting)
}

// Encode builds the wire message for a (zone, attribute, value) triple.
// Returns ErrUnknownCommand if the pair is not in the table, ErrInvalidValue
// if the value is outside the command's declared domain.
func (t *Table) Encode(zone Zone, attribute Attribute, value string) (*wire.Message, error) {
	c, ok := t.Lookup(zone, attribute)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownCommand, zone, attribute)
	}

	param, err := c.EncodeValue(value)
	if err != nil {
		return nil, err
	}
	return wire.NewMessage(c.Prefix, param), nil
}

// Query builds the query message for a (zone, attribute) pair.
func (t *Table) Query(zone Zone, attribute Attribute) (*wire.Message, error) {
	return t.Encode(zone, attribute, "query")
}

// Decode resolves an inbound message to its zone and attribute, leaving the
// parameter opaque for attribute-specific parsing. An unknown prefix is a
// malformed message: callers log it and continue.
func (t *Table) Decode(msg *wire.Message) (*Decoded, error) {
	c, ok := t.LookupPrefix(msg.Command)
	if !ok {
		return nil, fmt.Errorf("%w: unrecognized prefix %q", wire.ErrMalformedMessage, msg.Command)
	}
	return &Decoded{
		Zone:      c.Zone,
		Attribute: c.Attribute,
		Command:   c,
		Parameter: msg.Parameter,
	}, nil
}

// EncodeValue encodes a human value into the command's wire parameter.
func (c *Command) EncodeValue(value string) (string, error) {
	// Sentinels first: they bypass the kind-specific rules.
	if token, ok := c.sentinel(value); ok {
		return token, nil
	}

	switch c.Kind {
	case KindEnum:
		code, ok := c.Values[strings.ToLower(value)]
		if !ok {
			return "", fmt.Errorf("%w: %q not in domain of %s.%s", ErrInvalidValue, value, c.Zone, c.Attribute)
		}
		return code, nil

	case KindRange:
		n, err := strconv.Atoi(value)
		if err != nil {
			return "", fmt.Errorf("%w: %q is not numeric", ErrInvalidValue, value)
		}
		if n < 0 || n > c.Max {
			return "", fmt.Errorf("%w: %d outside 0..%d for %s.%s", ErrInvalidValue, n, c.Max, c.Zone, c.Attribute)
		}
		return fmt.Sprintf("%02X", n), nil

	case KindSelector:
		// Raw 2-digit hex ids pass through so vendor-specific sources
		// outside the known enumeration remain addressable.
		if isHexID(value) {
			return strings.ToUpper(value), nil
		}
		for id, name := range c.Values {
			if strings.EqualFold(name, value) {
				return id, nil
			}
		}
		return "", fmt.Errorf("%w: %q is neither a hex id nor a known name", ErrInvalidValue, value)

	case KindLiteral:
		return value, nil

	default:
		return "", fmt.Errorf("%w: unhandled kind %v", ErrInvalidValue, c.Kind)
	}
}

// DecodeValue decodes a wire parameter into a human value where the kind
// defines a reverse rule. Values outside the known domain are returned
// verbatim rather than rejected: devices report states the table may not
// enumerate.
func (c *Command) DecodeValue(param string) string {
	switch c.Kind {
	case KindEnum:
		if token, ok := c.codes[param]; ok {
			return token
		}
		return param

	case KindRange:
		if n, err := strconv.ParseInt(param, 16, 32); err == nil {
			return strconv.FormatInt(n, 10)
		}
		return param

	case KindSelector:
		// Extraction of the id is positional, independent of the name
		// enumeration.
		if len(param) >= 2 {
			return strings.ToUpper(param[:2])
		}
		return param

	default:
		return param
	}
}

// SelectorName returns the display name for a selector id, if known.
func (c *Command) SelectorName(id string) (string, bool) {
	name, ok := c.Values[strings.ToUpper(id)]
	return name, ok
}

// sentinel matches value against the command's sentinel tokens.
// The query token is accepted for every command.
func (c *Command) sentinel(value string) (string, bool) {
	switch strings.ToLower(value) {
	case "query", strings.ToLower(TokenQuery):
		return TokenQuery, true
	}
	for _, s := range c.Sentinels {
		if strings.EqualFold(value, s) {
			return s, true
		}
		// Accept the human spelling of the toggle token as well.
		if s == TokenToggle && strings.EqualFold(value, "toggle") {
			return TokenToggle, true
		}
	}
	return "", false
}

// isHexID reports whether s is exactly two hex digits.
func isHexID(s string) bool {
	if len(s) != 2 {
		return false
	}
	for i := 0; i < 2; i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
