package mapsvc

import (
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/padforge/padforge/padapi"
)

// CaptureOutcome is the terminal result of a capture session. Callers
// branch on the outcome; capture never produces errors.
type CaptureOutcome uint8

const (
	CaptureCaptured CaptureOutcome = iota
	CaptureAlreadyBound
	CaptureTimedOut
	CaptureCancelled
)

func (o CaptureOutcome) String() string {
	switch o {
	case CaptureCaptured:
		return "captured"
	case CaptureAlreadyBound:
		return "alreadyBound"
	case CaptureTimedOut:
		return "timedOut"
	case CaptureCancelled:
		return "cancelled"
	}
	return "unknown"
}

// CaptureResult is delivered on the session's result channel.
type CaptureResult struct {
	Outcome CaptureOutcome
	Binding Binding
}

const (
	// captureGracePeriod lets transient power-on values settle: every
	// event inside it only records a baseline.
	captureGracePeriod = 300 * time.Millisecond
	// captureTimeout bounds a session with no significant activity.
	captureTimeout = 10 * time.Second

	buttonSignificance = 0.7
	deltaSignificance  = 0.4
	triggerFloor       = 0.5
)

// capture is the state of one interactive binding-capture session. It
// observes the live source event stream and detects "the user just
// activated this source" while ignoring noise. At most one session exists
// engine-wide.
type capture struct {
	id      uuid.UUID
	log     *zap.Logger
	output  padapi.VirtualOutput
	profile *Profile
	now     func() time.Time
	started time.Time

	baselines map[padapi.SourceKey]float64
}

func newCapture(log *zap.Logger, output padapi.VirtualOutput, profile *Profile, now func() time.Time) *capture {
	id := uuid.New()
	c := &capture{
		id:        id,
		log:       log.With(zap.String("session", id.String()), zap.Stringer("output", output)),
		output:    output,
		profile:   profile,
		now:       now,
		started:   now(),
		baselines: make(map[padapi.SourceKey]float64),
	}
	c.log.Info("Capture started")
	return c
}

// observe feeds one source event into the session. It returns a result
// and true when the event resolves to an outcome the caller must report.
// An AlreadyBound outcome does not end the session.
func (c *capture) observe(ev padapi.SourceEvent) (CaptureResult, bool) {
	key := ev.Key()
	elapsed := c.now().Sub(c.started)
	if elapsed >= captureTimeout {
		return CaptureResult{Outcome: CaptureTimedOut}, true
	}
	if elapsed < captureGracePeriod {
		c.baselines[key] = ev.Value
		return CaptureResult{}, false
	}
	baseline, ok := c.baselines[key]
	if !ok {
		c.baselines[key] = ev.Value
		return CaptureResult{}, false
	}
	if !c.significant(ev.Value, baseline) {
		return CaptureResult{}, false
	}
	if c.profile.Bound(c.output, key) {
		c.log.Info("Source already bound", zap.Stringer("source", key))
		return CaptureResult{Outcome: CaptureAlreadyBound}, true
	}
	binding := Binding{
		Device:      ev.Device,
		Source:      ev.Source,
		MinValue:    0,
		MaxValue:    1,
		Threshold:   0.5,
		Sensitivity: 1,
	}
	c.log.Info("Source captured", zap.Stringer("source", key))
	return CaptureResult{Outcome: CaptureCaptured, Binding: binding}, true
}

// significant applies the per-target-kind detection rule against the
// recorded baseline.
func (c *capture) significant(value, baseline float64) bool {
	switch c.output.Kind() {
	case padapi.OutputKindButton:
		return value > buttonSignificance
	case padapi.OutputKindAxis:
		return math.Abs(value-baseline) > deltaSignificance
	case padapi.OutputKindTrigger:
		return math.Abs(value-baseline) > deltaSignificance && value > triggerFloor
	}
	return false
}

// expired reports whether the session passed its timeout with no capture.
func (c *capture) expired() bool {
	return c.now().Sub(c.started) >= captureTimeout
}
