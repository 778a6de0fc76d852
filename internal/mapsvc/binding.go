package mapsvc

import (
	"math"

	"github.com/padforge/padforge/padapi"
)

// Binding links one physical source to a virtual output with its transform
// parameters. Many bindings may reference the same source, and one source
// may feed multiple outputs.
type Binding struct {
	Device      string
	Source      int
	Label       string
	Invert      bool
	MinValue    float64
	MaxValue    float64
	Threshold   float64
	Sensitivity float64
}

func (b Binding) Key() padapi.SourceKey {
	return padapi.SourceKey{Device: b.Device, Source: b.Source}
}

// Transform applies the per-binding pipeline to a source value for an
// analog output: invert, range remap, sensitivity curve. The output kind
// decides whether the remap and curve treat the value as a centered axis
// deflection or a 0..1 magnitude.
func (b Binding) Transform(kind padapi.OutputKind, v float64) float64 {
	if b.Invert {
		v = 1 - v
	}
	switch kind {
	case padapi.OutputKindAxis:
		return b.transformAxis(v)
	case padapi.OutputKindTrigger:
		return b.transformMagnitude(v)
	default:
		return v
	}
}

// Active evaluates the button threshold for button-kind outputs.
func (b Binding) Active(v float64) bool {
	if b.Invert {
		v = 1 - v
	}
	return v >= b.Threshold
}

func (b Binding) transformAxis(v float64) float64 {
	d := math.Abs(v-0.5) * 2
	d = b.remap(d)
	d = math.Pow(d, b.Sensitivity)
	if v < 0.5 {
		return 0.5 - d*0.5
	}
	return 0.5 + d*0.5
}

func (b Binding) transformMagnitude(v float64) float64 {
	v = b.remap(v)
	return math.Pow(v, b.Sensitivity)
}

// remap linearly stretches [MinValue, MaxValue] onto [0, 1], clamping
// outside the range. A degenerate range degrades to pass-through.
func (b Binding) remap(v float64) float64 {
	if b.MinValue >= b.MaxValue {
		return v
	}
	v = (v - b.MinValue) / (b.MaxValue - b.MinValue)
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
