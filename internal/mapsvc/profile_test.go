package mapsvc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padforge/padforge/padapi"
)

func TestCompileBindingDefaults(t *testing.T) {
	binding, err := CompileBinding("t300rs.axis[0]")
	require.NoError(t, err)
	assert.Equal(t, Binding{
		Device:      "t300rs",
		Source:      0,
		MinValue:    0,
		MaxValue:    1,
		Threshold:   0.5,
		Sensitivity: 1,
	}, binding)
}

func TestCompileBindingModifiers(t *testing.T) {
	binding, err := CompileBinding(`"046d:c24f:0".button[3] invert range(0.05, 0.95) sens(1.8) threshold(0.6) label("shift up")`)
	require.NoError(t, err)
	assert.Equal(t, Binding{
		Device:      "046d:c24f:0",
		Source:      3,
		Label:       "shift up",
		Invert:      true,
		MinValue:    0.05,
		MaxValue:    0.95,
		Threshold:   0.6,
		Sensitivity: 1.8,
	}, binding)
}

func TestCompileBindingErrors(t *testing.T) {
	for _, expr := range []string{
		"t300rs.axis",
		"t300rs.pedal[0]",
		"t300rs.axis[0] range(0.9, 0.1)",
		"t300rs.axis[0] range(0.5)",
		"t300rs.axis[0] sens(0)",
		"t300rs.axis[0] sens(-1)",
		"t300rs.axis[0] invert(1)",
		"t300rs.axis[0] wobble",
		`t300rs.axis[0] label(5)`,
	} {
		_, err := CompileBinding(expr)
		assert.Error(t, err, expr)
	}
}

func TestCompileProfile(t *testing.T) {
	profile, err := CompileProfile(ProfileConfig{
		Name: "race",
		Mappings: map[string][]string{
			"leftStickX":   {"t300rs.axis[0] sens(1.5)"},
			"rightTrigger": {"t300rs.slider[16]", "pedals.slider[17]"},
			"a":            {"t300rs.button[3] label(\"shift up\")"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "race", profile.Name)
	assert.Len(t, profile.Mappings, 3)
	assert.Len(t, profile.Mappings[padapi.OutputRightTrigger].Bindings, 2)
	assert.Equal(t, []string{"pedals", "t300rs"}, profile.Devices())

	_, err = CompileProfile(ProfileConfig{
		Name:     "bad",
		Mappings: map[string][]string{"warpDrive": {"t300rs.axis[0]"}},
	})
	assert.Error(t, err)
}

func TestProfileBound(t *testing.T) {
	binding := defaultBinding()
	profile := profileWith(padapi.OutputA, binding)

	assert.True(t, profile.Bound(padapi.OutputA, binding.Key()))
	assert.False(t, profile.Bound(padapi.OutputB, binding.Key()))
	assert.False(t, profile.Bound(padapi.OutputA, padapi.SourceKey{Device: "other", Source: 0}))
}

func TestProfileAddBindingCopies(t *testing.T) {
	original := profileWith(padapi.OutputA, defaultBinding())
	added := defaultBinding()
	added.Source = 9

	next := original.AddBinding(padapi.OutputA, added)
	assert.Len(t, next.Mappings[padapi.OutputA].Bindings, 2)
	assert.Len(t, original.Mappings[padapi.OutputA].Bindings, 1)

	// Appending to a previously unmapped output works too.
	next = original.AddBinding(padapi.OutputB, added)
	assert.Len(t, next.Mappings[padapi.OutputB].Bindings, 1)
}
