package padapi

// State is one evaluated snapshot of the virtual controller.
// A fresh value is produced per evaluation and never mutated afterwards.
// Axes rest at 0.5 (center), triggers at 0.
type State struct {
	A     bool `json:"a"`
	B     bool `json:"b"`
	X     bool `json:"x"`
	Y     bool `json:"y"`
	LB    bool `json:"lb"`
	RB    bool `json:"rb"`
	Back  bool `json:"back"`
	Start bool `json:"start"`
	Guide bool `json:"guide"`
	LS    bool `json:"ls"`
	RS    bool `json:"rs"`

	DPadUp    bool `json:"dpadUp"`
	DPadDown  bool `json:"dpadDown"`
	DPadLeft  bool `json:"dpadLeft"`
	DPadRight bool `json:"dpadRight"`

	LeftStickX  float64 `json:"leftStickX"`
	LeftStickY  float64 `json:"leftStickY"`
	RightStickX float64 `json:"rightStickX"`
	RightStickY float64 `json:"rightStickY"`

	LeftTrigger  float64 `json:"leftTrigger"`
	RightTrigger float64 `json:"rightTrigger"`
}

// NewState returns a state with all outputs at rest.
func NewState() State {
	return State{
		LeftStickX:  0.5,
		LeftStickY:  0.5,
		RightStickX: 0.5,
		RightStickY: 0.5,
	}
}

// SetButton sets a button-kind output. Non-button outputs are ignored.
func (s *State) SetButton(o VirtualOutput, active bool) {
	switch o {
	case OutputA:
		s.A = active
	case OutputB:
		s.B = active
	case OutputX:
		s.X = active
	case OutputY:
		s.Y = active
	case OutputLB:
		s.LB = active
	case OutputRB:
		s.RB = active
	case OutputBack:
		s.Back = active
	case OutputStart:
		s.Start = active
	case OutputGuide:
		s.Guide = active
	case OutputLS:
		s.LS = active
	case OutputRS:
		s.RS = active
	case OutputDPadUp:
		s.DPadUp = active
	case OutputDPadDown:
		s.DPadDown = active
	case OutputDPadLeft:
		s.DPadLeft = active
	case OutputDPadRight:
		s.DPadRight = active
	}
}

// SetAnalog sets an axis- or trigger-kind output. Button outputs are ignored.
func (s *State) SetAnalog(o VirtualOutput, v float64) {
	switch o {
	case OutputLeftStickX:
		s.LeftStickX = v
	case OutputLeftStickY:
		s.LeftStickY = v
	case OutputRightStickX:
		s.RightStickX = v
	case OutputRightStickY:
		s.RightStickY = v
	case OutputLeftTrigger:
		s.LeftTrigger = v
	case OutputRightTrigger:
		s.RightTrigger = v
	}
}

// Button reads a button-kind output.
func (s State) Button(o VirtualOutput) bool {
	switch o {
	case OutputA:
		return s.A
	case OutputB:
		return s.B
	case OutputX:
		return s.X
	case OutputY:
		return s.Y
	case OutputLB:
		return s.LB
	case OutputRB:
		return s.RB
	case OutputBack:
		return s.Back
	case OutputStart:
		return s.Start
	case OutputGuide:
		return s.Guide
	case OutputLS:
		return s.LS
	case OutputRS:
		return s.RS
	case OutputDPadUp:
		return s.DPadUp
	case OutputDPadDown:
		return s.DPadDown
	case OutputDPadLeft:
		return s.DPadLeft
	case OutputDPadRight:
		return s.DPadRight
	}
	return false
}

// Analog reads an axis- or trigger-kind output.
func (s State) Analog(o VirtualOutput) float64 {
	switch o {
	case OutputLeftStickX:
		return s.LeftStickX
	case OutputLeftStickY:
		return s.LeftStickY
	case OutputRightStickX:
		return s.RightStickX
	case OutputRightStickY:
		return s.RightStickY
	case OutputLeftTrigger:
		return s.LeftTrigger
	case OutputRightTrigger:
		return s.RightTrigger
	}
	return 0
}

// Rumble is a vibration update delivered by the virtual controller sink.
// Motor strengths are normalized to 0..1.
type Rumble struct {
	Large float64
	Small float64
}
