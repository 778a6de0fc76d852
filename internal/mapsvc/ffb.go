package mapsvc

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/padforge/padforge/padapi"
)

// MotorMode selects which virtual-controller motor channel drives a
// physical device that only honors a single force channel.
type MotorMode uint8

const (
	// MotorLarge drives from the large (low-frequency) motor.
	MotorLarge MotorMode = iota
	// MotorSmall drives from the small (high-frequency) motor.
	MotorSmall
	// MotorCombined drives from the stronger of the two.
	MotorCombined
	// MotorSwap makes the small channel primary, for devices whose games
	// only ever write the large motor.
	MotorSwap
)

func (m MotorMode) String() string {
	switch m {
	case MotorLarge:
		return "large"
	case MotorSmall:
		return "small"
	case MotorCombined:
		return "combined"
	case MotorSwap:
		return "swap"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

func ParseMotorMode(s string) (MotorMode, error) {
	switch s {
	case "", "large":
		return MotorLarge, nil
	case "small":
		return MotorSmall, nil
	case "combined":
		return MotorCombined, nil
	case "swap":
		return MotorSwap, nil
	}
	return 0, fmt.Errorf("unknown motor mode: %s", s)
}

// Router forwards vibration updates from the virtual-controller sink to
// exactly one force target. Routing is decoupled from the input path by a
// small buffer that drops the oldest pending update under pressure: a
// slow or disconnected target never delays controller output.
type Router struct {
	log  *zap.Logger
	mode MotorMode
	gain float64

	mu   sync.Mutex
	sink padapi.ForceSink

	ch chan padapi.Rumble
}

func NewRouter(log *zap.Logger, mode MotorMode, gain float64) *Router {
	if gain < 0 {
		gain = 0
	}
	if gain > 1 {
		gain = 1
	}
	return &Router{
		log:  log,
		mode: mode,
		gain: gain,
		ch:   make(chan padapi.Rumble, 8),
	}
}

// Attach replaces the current force target. Any active effect on the
// previous target is stopped before it is released.
func (r *Router) Attach(sink padapi.ForceSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sink != nil {
		if err := r.sink.StopForce(); err != nil {
			r.log.Debug("Failed to stop force on previous target", zap.Error(err))
		}
	}
	r.sink = sink
}

// Detach stops any active effect and releases the target.
func (r *Router) Detach() {
	r.Attach(nil)
}

// Route accepts one vibration update. It never blocks: when the buffer is
// full the oldest pending update is dropped in favor of the new one.
func (r *Router) Route(rumble padapi.Rumble) {
	for {
		select {
		case r.ch <- rumble:
			return
		default:
		}
		select {
		case <-r.ch:
		default:
		}
	}
}

// Run delivers routed updates until ctx is cancelled. Target failures are
// swallowed: force feedback is best-effort.
func (r *Router) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case rumble := <-r.ch:
			r.send(rumble)
		}
	}
}

func (r *Router) send(rumble padapi.Rumble) {
	r.mu.Lock()
	sink := r.sink
	r.mu.Unlock()
	if sink == nil {
		return
	}
	if err := sink.SendForce(r.Level(rumble)); err != nil {
		r.log.Debug("Force target rejected update", zap.Error(err))
	}
}

// Level resolves a two-motor update into the single drive level for the
// configured mode, applies the gain and clamps to 0..1.
func (r *Router) Level(rumble padapi.Rumble) float64 {
	var level float64
	switch r.mode {
	case MotorLarge:
		level = rumble.Large
	case MotorSmall, MotorSwap:
		level = rumble.Small
	case MotorCombined:
		level = rumble.Large
		if rumble.Small > level {
			level = rumble.Small
		}
	}
	level *= r.gain
	if level < 0 {
		return 0
	}
	if level > 1 {
		return 1
	}
	return level
}
