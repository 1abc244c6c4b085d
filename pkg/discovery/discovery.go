package discovery

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/eiscp-protocol/eiscp-go/pkg/wire"
)

const (
	// BroadcastAddr is the default identity-query destination.
	BroadcastAddr = "255.255.255.255:60128"

	// announcePrefix is the command prefix of identity announcements.
	announcePrefix = "ECN"
)

// Device is one receiver's identity announcement.
type Device struct {
	// Model is the device model name, e.g. "TX-NR696".
	Model string

	// Host is the address the announcement came from.
	Host string

	// Port is the TCP control port the device listens on.
	Port int

	// Area is the destination-area code ("DX", "XX", "JJ").
	Area string

	// MAC is the device MAC address.
	MAC string
}

// Config tunes a discovery run.
type Config struct {
	// Address is the identity-query destination (default: BroadcastAddr).
	Address string

	// Passes is the number of query datagrams to send (default: 3).
	// Identity replies are a single unacknowledged datagram each, so
	// one lost packet hides a device for the whole run.
	Passes int

	// PassInterval is the gap between query passes (default: 100ms).
	PassInterval time.Duration

	// Timeout is how long to collect replies (default: 2s).
	Timeout time.Duration
}

// DefaultConfig returns the default discovery configuration.
func DefaultConfig() Config {
	return Config{
		Address:      BroadcastAddr,
		Passes:       3,
		PassInterval: 100 * time.Millisecond,
		Timeout:      2 * time.Second,
	}
}

// Discover broadcasts an identity query and collects every distinct
// receiver that answers before the timeout. Devices are deduplicated by
// MAC address.
func Discover(ctx context.Context, cfg Config) ([]Device, error) {
	if cfg.Address == "" {
		cfg.Address = BroadcastAddr
	}
	if cfg.Passes <= 0 {
		cfg.Passes = 3
	}
	if cfg.PassInterval <= 0 {
		cfg.PassInterval = 100 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}

	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	addr, err := net.ResolveUDPAddr("udp4", cfg.Address)
	if err != nil {
		return nil, err
	}

	query := wire.EncodeFrame(&wire.Message{
		Unit:      wire.UnitBroadcast,
		Command:   announcePrefix,
		Parameter: "QSTN",
	})

	devices := make(map[string]Device)

	for pass := 0; pass < cfg.Passes; pass++ {
		if _, err := conn.WriteTo(query, addr); err != nil {
			return nil, err
		}
		if pass < cfg.Passes-1 {
			select {
			case <-ctx.Done():
				return mapToSlice(devices), ctx.Err()
			case <-time.After(cfg.PassInterval):
			}
		}
	}

	if err := conn.SetReadDeadline(time.Now().Add(cfg.Timeout)); err != nil {
		return nil, err
	}

	buf := make([]byte, 2048)
	for {
		select {
		case <-ctx.Done():
			return mapToSlice(devices), ctx.Err()
		default:
		}

		n, raddr, err := conn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				break
			}
			return mapToSlice(devices), err
		}

		host := raddr.String()
		if h, _, splitErr := net.SplitHostPort(host); splitErr == nil {
			host = h
		}

		device, ok := parseDatagram(buf[:n], host)
		if !ok {
			continue
		}
		if _, exists := devices[device.MAC]; !exists {
			devices[device.MAC] = device
		}
	}

	return mapToSlice(devices), nil
}

// parseDatagram decodes one announcement datagram.
func parseDatagram(data []byte, host string) (Device, bool) {
	msg, err := wire.DecodeFrame(data)
	if err != nil {
		return Device{}, false
	}
	return ParseAnnouncement(msg, host)
}

// ParseAnnouncement extracts a Device from an identity reply. The
// parameter packs model, control port, area code and MAC address
// separated by slashes.
func ParseAnnouncement(msg *wire.Message, host string) (Device, bool) {
	if msg.Command != announcePrefix || msg.Parameter == "QSTN" {
		return Device{}, false
	}

	fields := strings.Split(msg.Parameter, "/")
	if len(fields) < 4 {
		return Device{}, false
	}

	port, err := strconv.Atoi(fields[1])
	if err != nil || port <= 0 {
		return Device{}, false
	}

	return Device{
		Model: fields[0],
		Host:  host,
		Port:  port,
		Area:  fields[2],
		MAC:   strings.ToUpper(fields[3]),
	}, true
}

func mapToSlice(devices map[string]Device) []Device {
	result := make([]Device, 0, len(devices))
	for _, d := range devices {
		result = append(result, d)
	}
	return result
}
