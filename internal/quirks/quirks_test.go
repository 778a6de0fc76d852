package quirks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/padforge/padforge/padapi"
)

const t300rsQuirk = `---
name: thrustmaster-t300rs
match:
  - vendor: 1103
    product: 45845
deadzones:
  axis: 0.03
  slider: 0.01
motorMode: combined
layout:
  axes:
    - source: 16
      offset: 2
      size: 2
      signed: true
  buttons:
    - source: 0
      byte: 0
      bit: 0
---

# Thrustmaster T300RS

The wheel axis is 16-bit signed and centered at rest.
`

func TestParseQuirk(t *testing.T) {
	quirk, err := NewParser().Parse([]byte(t300rsQuirk))
	require.NoError(t, err)

	assert.Equal(t, "thrustmaster-t300rs", quirk.Name)
	require.Len(t, quirk.Match, 1)
	assert.Equal(t, uint16(1103), quirk.Match[0].Vendor)
	assert.Equal(t, uint16(45845), quirk.Match[0].Product)
	assert.Equal(t, "combined", quirk.MotorMode)
	require.NotNil(t, quirk.Layout)
	require.Len(t, quirk.Layout.Axes, 1)
	assert.Equal(t, AxisField{Source: 16, Offset: 2, Size: 2, Signed: true}, quirk.Layout.Axes[0])
	assert.Contains(t, quirk.Notes, "Thrustmaster T300RS")
}

func TestParseQuirkErrors(t *testing.T) {
	_, err := NewParser().Parse([]byte("# no frontmatter\n"))
	assert.Error(t, err)

	_, err = NewParser().Parse([]byte("---\ndeadzones:\n  pedal: 0.1\n---\n"))
	assert.Error(t, err)
}

func TestQuirkDeadzoneDefaults(t *testing.T) {
	quirk, err := NewParser().Parse([]byte(t300rsQuirk))
	require.NoError(t, err)

	assert.Equal(t, 0.03, quirk.Deadzone(padapi.SourceAxis))
	assert.Equal(t, 0.01, quirk.Deadzone(padapi.SourceSlider))
	assert.Equal(t, 0.0, quirk.Deadzone(padapi.SourceButton))

	var none Quirk
	assert.Equal(t, 0.05, none.Deadzone(padapi.SourceAxis))
	assert.Equal(t, 0.02, none.Deadzone(padapi.SourceSlider))
	assert.Equal(t, 0.0, none.Deadzone(padapi.SourceDPad))
}

func TestLoadRegistry(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "t300rs.md"), []byte(t300rsQuirk), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.md"), []byte("# not a quirk\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	reg, err := Load(zap.NewNop(), dir)
	require.NoError(t, err)
	assert.Len(t, reg.All(), 1)

	quirk, ok := reg.Lookup(1103, 45845)
	require.True(t, ok)
	assert.Equal(t, "thrustmaster-t300rs", quirk.Name)

	_, ok = reg.Lookup(1103, 1)
	assert.False(t, ok)
}

func TestLoadMissingDir(t *testing.T) {
	reg, err := Load(zap.NewNop(), filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, reg.All())
}

func TestWildcardMatch(t *testing.T) {
	quirk := Quirk{Match: []Match{{Vendor: 1103}}}
	assert.True(t, quirk.matches(1103, 1))
	assert.True(t, quirk.matches(1103, 9999))
	assert.False(t, quirk.matches(1104, 1))
}
