package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const overlayDoc = `
commands:
  - zone: main
    attribute: sleep-timer
    prefix: SLP
    kind: range
    max: 90
    sentinels: [UP, QSTN]
  - zone: main
    attribute: input-selector
    prefix: SLI
    kind: selector
    values:
      "23": CD
      "55": HDMI 5
`

func TestParseYAML(t *testing.T) {
	entries, err := ParseYAML([]byte(overlayDoc))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, ZoneMain, entries[0].Zone)
	assert.Equal(t, Attribute("sleep-timer"), entries[0].Attribute)
	assert.Equal(t, KindRange, entries[0].Kind)
	assert.Equal(t, 90, entries[0].Max)
	assert.Equal(t, "HDMI 5", entries[1].Values["55"])
}

func TestParseYAMLErrors(t *testing.T) {
	t.Run("unknown kind", func(t *testing.T) {
		_, err := ParseYAML([]byte("commands:\n  - {zone: main, attribute: x, prefix: XXX, kind: bogus}\n"))
		assert.ErrorContains(t, err, "unknown kind")
	})

	t.Run("missing zone", func(t *testing.T) {
		_, err := ParseYAML([]byte("commands:\n  - {attribute: x, prefix: XXX, kind: enum}\n"))
		assert.ErrorContains(t, err, "zone and attribute are required")
	})

	t.Run("not yaml", func(t *testing.T) {
		_, err := ParseYAML([]byte("{{"))
		assert.Error(t, err)
	})
}

func TestMergeYAMLExtendsTable(t *testing.T) {
	table := DefaultTable()

	_, ok := table.Lookup(ZoneMain, "sleep-timer")
	require.False(t, ok, "sleep-timer is not a built-in")

	require.NoError(t, table.MergeYAML([]byte(overlayDoc)))

	cmd, ok := table.Lookup(ZoneMain, "sleep-timer")
	require.True(t, ok)
	assert.Equal(t, "SLP", cmd.Prefix)

	param, err := cmd.EncodeValue("45")
	require.NoError(t, err)
	assert.Equal(t, "2D", param)
}

func TestMergeYAMLReplacesBuiltin(t *testing.T) {
	table := DefaultTable()
	require.NoError(t, table.MergeYAML([]byte(overlayDoc)))

	// The overlay narrows the selector to a vendor-specific set.
	cmd, ok := table.Lookup(ZoneMain, AttrInputSelector)
	require.True(t, ok)
	assert.Len(t, cmd.Values, 2)

	name, ok := cmd.SelectorName("55")
	require.True(t, ok)
	assert.Equal(t, "HDMI 5", name)

	// The prefix index points at the overlay entry too.
	byPrefix, ok := table.LookupPrefix("SLI")
	require.True(t, ok)
	assert.Equal(t, cmd, byPrefix)
}
