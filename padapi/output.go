package padapi

import (
	"fmt"
)

// VirtualOutput identifies one button, axis or trigger of the virtual
// game controller. The set is fixed and mirrors the XInput pad layout.
type VirtualOutput uint8

const (
	OutputA VirtualOutput = iota
	OutputB
	OutputX
	OutputY
	OutputLB
	OutputRB
	OutputBack
	OutputStart
	OutputGuide
	OutputLS
	OutputRS
	OutputDPadUp
	OutputDPadDown
	OutputDPadLeft
	OutputDPadRight
	OutputLeftStickX
	OutputLeftStickY
	OutputRightStickX
	OutputRightStickY
	OutputLeftTrigger
	OutputRightTrigger

	outputCount
)

// OutputKind partitions VirtualOutput values by the shape of their state.
type OutputKind uint8

const (
	OutputKindButton OutputKind = iota
	OutputKindAxis
	OutputKindTrigger
)

func (k OutputKind) String() string {
	switch k {
	case OutputKindButton:
		return "button"
	case OutputKindAxis:
		return "axis"
	case OutputKindTrigger:
		return "trigger"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Kind classifies the output. It is a pure function of the enum value.
func (o VirtualOutput) Kind() OutputKind {
	switch o {
	case OutputLeftStickX, OutputLeftStickY, OutputRightStickX, OutputRightStickY:
		return OutputKindAxis
	case OutputLeftTrigger, OutputRightTrigger:
		return OutputKindTrigger
	default:
		return OutputKindButton
	}
}

var outputNames = map[VirtualOutput]string{
	OutputA:            "a",
	OutputB:            "b",
	OutputX:            "x",
	OutputY:            "y",
	OutputLB:           "lb",
	OutputRB:           "rb",
	OutputBack:         "back",
	OutputStart:        "start",
	OutputGuide:        "guide",
	OutputLS:           "ls",
	OutputRS:           "rs",
	OutputDPadUp:       "dpadUp",
	OutputDPadDown:     "dpadDown",
	OutputDPadLeft:     "dpadLeft",
	OutputDPadRight:    "dpadRight",
	OutputLeftStickX:   "leftStickX",
	OutputLeftStickY:   "leftStickY",
	OutputRightStickX:  "rightStickX",
	OutputRightStickY:  "rightStickY",
	OutputLeftTrigger:  "leftTrigger",
	OutputRightTrigger: "rightTrigger",
}

var outputIndex = func() map[string]VirtualOutput {
	idx := make(map[string]VirtualOutput, len(outputNames))
	for o, name := range outputNames {
		idx[name] = o
	}
	return idx
}()

func (o VirtualOutput) String() string {
	if name, ok := outputNames[o]; ok {
		return name
	}
	return fmt.Sprintf("output(%d)", uint8(o))
}

// Outputs returns all virtual outputs in declaration order.
func Outputs() []VirtualOutput {
	outputs := make([]VirtualOutput, 0, outputCount)
	for o := VirtualOutput(0); o < outputCount; o++ {
		outputs = append(outputs, o)
	}
	return outputs
}

func ParseVirtualOutput(s string) (VirtualOutput, error) {
	o, ok := outputIndex[s]
	if !ok {
		return 0, fmt.Errorf("unknown virtual output: %s", s)
	}
	return o, nil
}

func (o VirtualOutput) MarshalJSON() ([]byte, error) {
	return []byte(`"` + o.String() + `"`), nil
}

func (o *VirtualOutput) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("virtual output must be a string: %s", string(data))
	}
	parsed, err := ParseVirtualOutput(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

func (o VirtualOutput) MarshalYAML() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *VirtualOutput) UnmarshalYAML(data []byte) error {
	parsed, err := ParseVirtualOutput(string(data))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}
