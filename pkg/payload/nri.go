package payload

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// DeviceInfo is the parsed self-description document.
type DeviceInfo struct {
	// Identity fields.
	Model      string
	Year       string
	Serial     string
	ProductID  string
	MACAddress string

	// Zones installed on the device, in document order.
	Zones []ZoneEntry

	// Sources wired into at least one zone, in document order.
	Sources []SourceEntry

	// Presets configured on the tuner, in document order.
	Presets []PresetEntry
}

// ZoneEntry is one installed zone from the zonelist.
type ZoneEntry struct {
	// ID is the 1-based zone number.
	ID int

	// Name is the display name.
	Name string

	// MaxVolume is the zone's volume ceiling (0 when not reported).
	MaxVolume int
}

// SourceEntry is one installed selector from the selectorlist.
type SourceEntry struct {
	// ID is the 2-digit hex selector id.
	ID string

	// Name is the display name.
	Name string

	// ZoneMask has bit (zoneID - 1) set for every zone the source is
	// wired into.
	ZoneMask uint32
}

// InZone reports whether this source is wired into the given 1-based zone.
func (s SourceEntry) InZone(zoneID int) bool {
	if zoneID < 1 || zoneID > 32 {
		return false
	}
	return s.ZoneMask&(1<<uint(zoneID-1)) != 0
}

// PresetEntry is one configured tuner preset.
type PresetEntry struct {
	// ID is the 2-digit hex preset id.
	ID string

	// Band is the tuner band ("FM", "AM", ...).
	Band string

	// Freq is the tuned frequency as reported.
	Freq string

	// Name is the display name (may be empty).
	Name string
}

// nriResponse mirrors the NRI document structure.
type nriResponse struct {
	XMLName xml.Name `xml:"response"`
	Status  string   `xml:"status,attr"`
	Device  struct {
		ID           string `xml:"id,attr"`
		Model        string `xml:"model"`
		Year         string `xml:"year"`
		DeviceSerial string `xml:"deviceserial"`
		MACAddress   string `xml:"macaddress"`
		ProductID    string `xml:"productid"`
		ZoneList     struct {
			Zones []nriZone `xml:"zone"`
		} `xml:"zonelist"`
		SelectorList struct {
			Selectors []nriSelector `xml:"selector"`
		} `xml:"selectorlist"`
		PresetList struct {
			Presets []nriPreset `xml:"preset"`
		} `xml:"presetlist"`
	} `xml:"device"`
}

type nriZone struct {
	ID     string `xml:"id,attr"`
	Value  string `xml:"value,attr"`
	Name   string `xml:"name,attr"`
	VolMax string `xml:"volmax,attr"`
}

type nriSelector struct {
	ID    string `xml:"id,attr"`
	Value string `xml:"value,attr"`
	Name  string `xml:"name,attr"`
	Zone  string `xml:"zone,attr"`
}

type nriPreset struct {
	ID   string `xml:"id,attr"`
	Band string `xml:"band,attr"`
	Freq string `xml:"freq,attr"`
	Name string `xml:"name,attr"`
}

// ParseDeviceInfo parses an NRI self-description reply parameter.
// Zones and selectors with value="0" are not installed and are excluded.
func ParseDeviceInfo(param string) (*DeviceInfo, error) {
	var resp nriResponse
	if err := xml.Unmarshal([]byte(param), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse self-description: %w", err)
	}
	if resp.Status != "" && !strings.EqualFold(resp.Status, "ok") {
		return nil, fmt.Errorf("self-description status %q", resp.Status)
	}

	dev := resp.Device
	info := &DeviceInfo{
		Model:      strings.TrimSpace(dev.Model),
		Year:       strings.TrimSpace(dev.Year),
		Serial:     strings.TrimSpace(dev.DeviceSerial),
		ProductID:  strings.TrimSpace(dev.ProductID),
		MACAddress: strings.TrimSpace(dev.MACAddress),
	}

	for _, z := range dev.ZoneList.Zones {
		if z.Value == "0" {
			continue // not installed
		}
		id, err := strconv.Atoi(strings.TrimSpace(z.ID))
		if err != nil || id < 1 {
			continue
		}
		volmax, _ := strconv.Atoi(strings.TrimSpace(z.VolMax))
		info.Zones = append(info.Zones, ZoneEntry{
			ID:        id,
			Name:      strings.TrimSpace(z.Name),
			MaxVolume: volmax,
		})
	}

	for _, s := range dev.SelectorList.Selectors {
		if s.Value == "0" {
			continue // not installed
		}
		id := strings.ToUpper(strings.TrimSpace(s.ID))
		if id == "" {
			continue
		}
		mask, err := strconv.ParseUint(strings.TrimSpace(s.Zone), 16, 32)
		if err != nil {
			continue
		}
		info.Sources = append(info.Sources, SourceEntry{
			ID:       id,
			Name:     strings.TrimSpace(s.Name),
			ZoneMask: uint32(mask),
		})
	}

	for _, p := range dev.PresetList.Presets {
		id := strings.ToUpper(strings.TrimSpace(p.ID))
		if id == "" || p.Freq == "0" {
			continue
		}
		info.Presets = append(info.Presets, PresetEntry{
			ID:   id,
			Band: strings.TrimSpace(p.Band),
			Freq: strings.TrimSpace(p.Freq),
			Name: strings.TrimSpace(p.Name),
		})
	}

	return info, nil
}
