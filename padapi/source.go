package padapi

import (
	"fmt"
	"math"
)

// SourceKind is the physical shape of an input channel.
type SourceKind uint8

const (
	SourceButton SourceKind = iota
	SourceAxis
	SourceSlider
	SourceDPad
)

func (k SourceKind) String() string {
	switch k {
	case SourceButton:
		return "button"
	case SourceAxis:
		return "axis"
	case SourceSlider:
		return "slider"
	case SourceDPad:
		return "dpad"
	}
	return fmt.Sprintf("source(%d)", uint8(k))
}

func ParseSourceKind(s string) (SourceKind, error) {
	switch s {
	case "button":
		return SourceButton, nil
	case "axis":
		return SourceAxis, nil
	case "slider":
		return SourceSlider, nil
	case "dpad":
		return SourceDPad, nil
	}
	return 0, fmt.Errorf("unknown source kind: %s", s)
}

// changeEpsilon suppresses change notifications caused by analog jitter.
const changeEpsilon = 1e-4

// Source is one physical input channel of a device. Values are normalized
// to 0..1 (0.5 is center for Axis sources, {0,1} for Button/DPad).
// The owning device backend is the only writer.
type Source struct {
	Index    int        `json:"index"`
	Name     string     `json:"name"`
	Kind     SourceKind `json:"kind"`
	Deadzone float64    `json:"deadzone"`

	value float64
}

func NewSource(index int, name string, kind SourceKind, deadzone float64) *Source {
	s := &Source{
		Index:    index,
		Name:     name,
		Kind:     kind,
		Deadzone: deadzone,
	}
	if kind == SourceAxis {
		s.value = 0.5
	}
	return s
}

// Value returns the last applied (deadzoned) value.
func (s *Source) Value() float64 {
	return s.value
}

// Refresh applies the per-kind deadzone to a new raw value and stores the
// result. It reports whether the applied value changed by more than the
// jitter epsilon since the previous refresh.
func (s *Source) Refresh(raw float64) (float64, bool) {
	applied := s.applyDeadzone(raw)
	changed := math.Abs(applied-s.value) > changeEpsilon
	s.value = applied
	return applied, changed
}

func (s *Source) applyDeadzone(v float64) float64 {
	switch s.Kind {
	case SourceSlider:
		// edge deadzone
		switch {
		case v < s.Deadzone:
			return 0
		case v > 1-s.Deadzone:
			return 1
		}
		return v
	case SourceAxis:
		// center deadzone
		if math.Abs(v-0.5) < s.Deadzone {
			return 0.5
		}
		return v
	default:
		return v
	}
}

// SourceKey addresses a source across all connected devices.
type SourceKey struct {
	Device string
	Source int
}

func (k SourceKey) String() string {
	return fmt.Sprintf("%s/%d", k.Device, k.Source)
}

// SourceEvent is a change notification for one source, delivered by the
// device-enumeration service after deadzone application.
type SourceEvent struct {
	Device string
	Source int
	Kind   SourceKind
	Value  float64
}

func (e SourceEvent) Key() SourceKey {
	return SourceKey{Device: e.Device, Source: e.Source}
}
