package padapi

import "context"

// Sink is the virtual game controller presented to the operating system.
// Send delivers one evaluated state snapshot; Rumble yields vibration
// updates coming back from the OS side.
type Sink interface {
	Connect(ctx context.Context) error
	Send(state State) error
	Rumble() <-chan Rumble
	Close() error
}

// ForceSink receives a single resolved force-feedback drive level.
// Implementations are best-effort: a failing sink must not disturb the
// input path.
type ForceSink interface {
	SendForce(level float64) error
	StopForce() error
}
