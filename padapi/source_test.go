package padapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSliderEdgeDeadzone(t *testing.T) {
	s := NewSource(0, "throttle", SourceSlider, 0.05)

	v, changed := s.Refresh(0.03)
	assert.Equal(t, 0.0, v)
	assert.False(t, changed)

	v, changed = s.Refresh(0.97)
	assert.Equal(t, 1.0, v)
	assert.True(t, changed)

	v, changed = s.Refresh(0.5)
	assert.Equal(t, 0.5, v)
	assert.True(t, changed)
}

func TestAxisCenterDeadzone(t *testing.T) {
	s := NewSource(0, "wheel", SourceAxis, 0.05)
	assert.Equal(t, 0.5, s.Value())

	v, changed := s.Refresh(0.52)
	assert.Equal(t, 0.5, v)
	assert.False(t, changed)

	v, changed = s.Refresh(0.57)
	assert.Equal(t, 0.57, v)
	assert.True(t, changed)

	v, changed = s.Refresh(0.44)
	assert.Equal(t, 0.44, v)
	assert.True(t, changed)
}

func TestButtonHasNoDeadzone(t *testing.T) {
	s := NewSource(0, "fire", SourceButton, 0.05)

	v, changed := s.Refresh(1)
	assert.Equal(t, 1.0, v)
	assert.True(t, changed)

	v, changed = s.Refresh(0)
	assert.Equal(t, 0.0, v)
	assert.True(t, changed)
}

func TestRefreshSuppressesJitter(t *testing.T) {
	s := NewSource(0, "wheel", SourceAxis, 0)

	_, changed := s.Refresh(0.9)
	assert.True(t, changed)

	_, changed = s.Refresh(0.90005)
	assert.False(t, changed)

	_, changed = s.Refresh(0.91)
	assert.True(t, changed)
}

func TestDeadzoneIsIdempotent(t *testing.T) {
	s := NewSource(0, "wheel", SourceAxis, 0.08)
	for _, raw := range []float64{0, 0.2, 0.49, 0.5, 0.51, 0.8, 1} {
		once, _ := s.Refresh(raw)
		twice, changed := s.Refresh(once)
		assert.Equal(t, once, twice)
		assert.False(t, changed)
	}
}
