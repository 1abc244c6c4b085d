package command

import (
	"errors"
	"testing"

	"github.com/eiscp-protocol/eiscp-go/pkg/wire"
)

func TestEncode(t *testing.T) {
	table := DefaultTable()

	t.Run("Enum", func(t *testing.T) {
		msg, err := table.Encode(ZoneMain, AttrPower, "on")
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		if msg.Command != "PWR" || msg.Parameter != "01" {
			t.Errorf("got %s%s, want PWR01", msg.Command, msg.Parameter)
		}
	})

	t.Run("Range", func(t *testing.T) {
		msg, err := table.Encode(Zone2, AttrVolume, "30")
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		if msg.Command != "ZVL" || msg.Parameter != "1E" {
			t.Errorf("got %s%s, want ZVL1E", msg.Command, msg.Parameter)
		}
	})

	t.Run("SelectorByName", func(t *testing.T) {
		msg, err := table.Encode(ZoneMain, AttrInputSelector, "CD")
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		if msg.Command != "SLI" || msg.Parameter != "23" {
			t.Errorf("got %s%s, want SLI23", msg.Command, msg.Parameter)
		}
	})

	t.Run("SelectorByHexID", func(t *testing.T) {
		// Vendor ids outside the enumeration pass through.
		msg, err := table.Encode(ZoneMain, AttrInputSelector, "e3")
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		if msg.Parameter != "E3" {
			t.Errorf("parameter = %q, want E3", msg.Parameter)
		}
	})

	t.Run("QuerySentinel", func(t *testing.T) {
		msg, err := table.Encode(ZoneMain, AttrVolume, "query")
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		if msg.Parameter != TokenQuery {
			t.Errorf("parameter = %q, want QSTN", msg.Parameter)
		}
	})

	t.Run("UpDownSentinels", func(t *testing.T) {
		for _, value := range []string{"up", "UP", "down"} {
			if _, err := table.Encode(ZoneMain, AttrVolume, value); err != nil {
				t.Errorf("Encode(volume, %q) failed: %v", value, err)
			}
		}
		// Power declares no up/down.
		if _, err := table.Encode(ZoneMain, AttrPower, "up"); !errors.Is(err, ErrInvalidValue) {
			t.Errorf("Encode(power, up) = %v, want ErrInvalidValue", err)
		}
	})

	t.Run("UnknownCommand", func(t *testing.T) {
		if _, err := table.Encode(Zone2, AttrHDMIOut, "main"); !errors.Is(err, ErrUnknownCommand) {
			t.Errorf("expected ErrUnknownCommand, got %v", err)
		}
	})

	t.Run("OutOfRange", func(t *testing.T) {
		if _, err := table.Encode(ZoneMain, AttrVolume, "201"); !errors.Is(err, ErrInvalidValue) {
			t.Errorf("expected ErrInvalidValue, got %v", err)
		}
		if _, err := table.Encode(ZoneMain, AttrVolume, "-1"); !errors.Is(err, ErrInvalidValue) {
			t.Errorf("expected ErrInvalidValue, got %v", err)
		}
	})

	t.Run("BadEnumToken", func(t *testing.T) {
		if _, err := table.Encode(ZoneMain, AttrPower, "enabled"); !errors.Is(err, ErrInvalidValue) {
			t.Errorf("expected ErrInvalidValue, got %v", err)
		}
	})
}

func TestDecode(t *testing.T) {
	table := DefaultTable()

	t.Run("ZoneResolution", func(t *testing.T) {
		// Main vs non-main muting use different prefixes.
		cases := []struct {
			raw  string
			zone Zone
			attr Attribute
		}{
			{"!1AMT01", ZoneMain, AttrAudioMuting},
			{"!1ZMT01", Zone2, AttrMuting},
			{"!1MT301", Zone3, AttrMuting},
			{"!1PWR00", ZoneMain, AttrPower},
			{"!1ZPW01", Zone2, AttrPower},
		}
		for _, c := range cases {
			msg, err := wire.ParseMessage([]byte(c.raw))
			if err != nil {
				t.Fatalf("ParseMessage(%q) failed: %v", c.raw, err)
			}
			d, err := table.Decode(msg)
			if err != nil {
				t.Fatalf("Decode(%q) failed: %v", c.raw, err)
			}
			if d.Zone != c.zone || d.Attribute != c.attr {
				t.Errorf("Decode(%q) = %s.%s, want %s.%s", c.raw, d.Zone, d.Attribute, c.zone, c.attr)
			}
		}
	})

	t.Run("UnknownPrefix", func(t *testing.T) {
		msg := wire.NewMessage("XYZ", "01")
		if _, err := table.Decode(msg); !errors.Is(err, wire.ErrMalformedMessage) {
			t.Errorf("expected ErrMalformedMessage, got %v", err)
		}
	})
}

func TestEncodeDecodeRoundtrip(t *testing.T) {
	table := DefaultTable()

	triples := []struct {
		zone  Zone
		attr  Attribute
		value string
		want  string // decoded human value
	}{
		{ZoneMain, AttrPower, "on", "on"},
		{ZoneMain, AttrPower, "off", "off"},
		{Zone2, AttrMuting, "on", "on"},
		{ZoneMain, AttrVolume, "42", "42"},
		{Zone3, AttrVolume, "0", "0"},
		{ZoneMain, AttrInputSelector, "CD", "23"},
		{Zone2, AttrSelector, "TUNER", "26"},
	}

	for _, tr := range triples {
		msg, err := table.Encode(tr.zone, tr.attr, tr.value)
		if err != nil {
			t.Fatalf("Encode(%s.%s=%s) failed: %v", tr.zone, tr.attr, tr.value, err)
		}

		d, err := table.Decode(msg)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if d.Zone != tr.zone || d.Attribute != tr.attr {
			t.Errorf("roundtrip lost identity: got %s.%s, want %s.%s", d.Zone, d.Attribute, tr.zone, tr.attr)
		}
		if got := d.Command.DecodeValue(d.Parameter); got != tr.want {
			t.Errorf("DecodeValue(%s.%s) = %q, want %q", tr.zone, tr.attr, got, tr.want)
		}
	}
}

func TestDecodeValue(t *testing.T) {
	table := DefaultTable()

	power, _ := table.Lookup(ZoneMain, AttrPower)
	if got := power.DecodeValue("00"); got != "off" {
		t.Errorf("DecodeValue(00) = %q, want off", got)
	}
	if got := power.DecodeValue("7F"); got != "7F" {
		t.Errorf("unknown enum code should pass through, got %q", got)
	}

	volume, _ := table.Lookup(ZoneMain, AttrVolume)
	if got := volume.DecodeValue("1E"); got != "30" {
		t.Errorf("DecodeValue(1E) = %q, want 30", got)
	}
	if got := volume.DecodeValue("N/A"); got != "N/A" {
		t.Errorf("non-hex range payload should pass through, got %q", got)
	}

	selector, _ := table.Lookup(ZoneMain, AttrInputSelector)
	// Positional id extraction, even for unknown vendor ids.
	if got := selector.DecodeValue("e300"); got != "E3" {
		t.Errorf("DecodeValue(e300) = %q, want E3", got)
	}
	if name, ok := selector.SelectorName("23"); !ok || name != "CD" {
		t.Errorf("SelectorName(23) = %q/%v, want CD/true", name, ok)
	}
}

func TestZones(t *testing.T) {
	zones := DefaultTable().Zones()
	want := []Zone{ZoneMain, Zone2, Zone3, Zone4}
	if len(zones) != len(want) {
		t.Fatalf("Zones() = %v, want %v", zones, want)
	}
	for i := range want {
		if zones[i] != want[i] {
			t.Errorf("Zones()[%d] = %s, want %s", i, zones[i], want[i])
		}
	}
}

func TestSelectorAndMutingHelpers(t *testing.T) {
	table := DefaultTable()

	if c, ok := table.Selector(ZoneMain); !ok || c.Prefix != "SLI" {
		t.Errorf("Selector(main) = %+v/%v, want SLI", c, ok)
	}
	if c, ok := table.Selector(Zone2); !ok || c.Prefix != "SLZ" {
		t.Errorf("Selector(zone2) = %+v/%v, want SLZ", c, ok)
	}
	if c, ok := table.Muting(ZoneMain); !ok || c.Prefix != "AMT" {
		t.Errorf("Muting(main) = %+v/%v, want AMT", c, ok)
	}
	if c, ok := table.Muting(Zone3); !ok || c.Prefix != "MT3" {
		t.Errorf("Muting(zone3) = %+v/%v, want MT3", c, ok)
	}
}

func TestMergeYAML(t *testing.T) {
	table := DefaultTable()

	overlay := []byte(`
commands:
  - zone: main
    attribute: tone-bass
    prefix: TFR
    kind: literal
  - zone: main
    attribute: volume
    prefix: MVL
    kind: range
    max: 100
    sentinels: [UP, DOWN]
`)
	if err := table.MergeYAML(overlay); err != nil {
		t.Fatalf("MergeYAML failed: %v", err)
	}

	// New vendor attribute is addressable.
	msg, err := table.Encode(ZoneMain, "tone-bass", "B+2")
	if err != nil {
		t.Fatalf("Encode(tone-bass) failed: %v", err)
	}
	if msg.Command != "TFR" {
		t.Errorf("prefix = %q, want TFR", msg.Command)
	}

	// Overridden volume ceiling applies.
	if _, err := table.Encode(ZoneMain, AttrVolume, "150"); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue after override, got %v", err)
	}
}

func TestMergeYAMLRejectsBadKind(t *testing.T) {
	err := DefaultTable().MergeYAML([]byte("commands:\n  - {zone: main, attribute: x, prefix: XXX, kind: fancy}\n"))
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
