package wire

import (
	"errors"
	"fmt"
	"strings"
)

// Unit type characters.
const (
	// UnitReceiver addresses the receiver itself.
	UnitReceiver byte = '1'

	// UnitBroadcast addresses any device on the network (discovery).
	UnitBroadcast byte = 'x'
)

// Message errors.
var (
	// ErrMalformedMessage indicates an unparseable message. Callers must
	// treat this as a soft error: log it and keep reading.
	ErrMalformedMessage = errors.New("malformed message")
)

// CommandLength is the fixed length of a command prefix.
const CommandLength = 3

// Message is a single decoded ISCP message.
type Message struct {
	// Unit is the unit type character (UnitReceiver or UnitBroadcast).
	Unit byte

	// Command is the 3-character command prefix, e.g. "PWR".
	Command string

	// Parameter is the raw parameter portion, terminator stripped.
	Parameter string
}

// NewMessage creates a receiver-addressed message.
func NewMessage(command, parameter string) *Message {
	return &Message{Unit: UnitReceiver, Command: command, Parameter: parameter}
}

// Raw returns the message data without framing or terminator, e.g. "!1PWR01".
func (m *Message) Raw() string {
	return fmt.Sprintf("!%c%s%s", m.Unit, m.Command, m.Parameter)
}

// String returns the raw message form for logging.
func (m *Message) String() string {
	return m.Raw()
}

// ParseMessage decodes the data portion of an eISCP packet.
// Trailing EOF (0x1A), CR and LF bytes are stripped from the parameter.
func ParseMessage(data []byte) (*Message, error) {
	s := strings.TrimRight(string(data), "\x1a\r\n")
	if len(s) < 2+CommandLength {
		return nil, fmt.Errorf("%w: message too short (%d bytes)", ErrMalformedMessage, len(s))
	}
	if s[0] != '!' {
		return nil, fmt.Errorf("%w: missing start character", ErrMalformedMessage)
	}

	unit := s[1]
	if unit != UnitReceiver && unit != UnitBroadcast {
		return nil, fmt.Errorf("%w: unknown unit type %q", ErrMalformedMessage, unit)
	}

	command := s[2 : 2+CommandLength]
	for i := 0; i < CommandLength; i++ {
		c := command[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return nil, fmt.Errorf("%w: invalid command prefix %q", ErrMalformedMessage, command)
		}
	}

	return &Message{
		Unit:      unit,
		Command:   command,
		Parameter: s[2+CommandLength:],
	}, nil
}
