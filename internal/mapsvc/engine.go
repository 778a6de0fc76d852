package mapsvc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/padforge/padforge/padapi"
)

// EngineState is the lifecycle state of the mapping engine.
type EngineState int32

const (
	StateStopped EngineState = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s EngineState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Devices is the boundary to the device-enumeration collaborator.
// Subscribe delivers change notifications for the given devices until the
// context is cancelled; ForceTarget resolves a device's force-feedback
// sink when the device is connected.
type Devices interface {
	Subscribe(ctx context.Context, deviceIDs ...string) <-chan padapi.SourceEvent
	ForceTarget(deviceID string) (padapi.ForceSink, bool)
}

var ErrCaptureActive = errors.New("a capture session is already active")

type engineOptions struct {
	now       func() time.Time
	motorMode MotorMode
	gain      float64
}

type EngineOption func(*engineOptions)

func WithClock(now func() time.Time) EngineOption {
	return func(o *engineOptions) {
		o.now = now
	}
}

func WithMotorMode(mode MotorMode, gain float64) EngineOption {
	return func(o *engineOptions) {
		o.motorMode = mode
		o.gain = gain
	}
}

// Engine drives the active profile: it consumes live source events,
// evaluates one consistent controller snapshot per change and emits it to
// the virtual-controller sink, while routing vibration back to the
// physical device. One mutex serializes lifecycle transitions, profile
// swaps and evaluation so the sink never observes a snapshot mixing two
// profiles.
type Engine struct {
	log     *zap.Logger
	devices Devices
	sink    padapi.Sink
	options engineOptions

	mu      sync.Mutex
	state   atomic.Int32
	profile *Profile
	eval    *Evaluator
	router  *Router
	cancel  context.CancelFunc

	capture atomic.Pointer[captureSession]
}

type captureSession struct {
	c       *capture
	results chan CaptureResult
	timer   *time.Timer
}

func NewEngine(log *zap.Logger, devices Devices, sink padapi.Sink, opts ...EngineOption) *Engine {
	options := engineOptions{
		now:       time.Now,
		motorMode: MotorLarge,
		gain:      1,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return &Engine{
		log:     log,
		devices: devices,
		sink:    sink,
		options: options,
		eval:    NewEvaluator(),
	}
}

func (e *Engine) State() EngineState {
	return EngineState(e.state.Load())
}

func (e *Engine) setState(s EngineState) {
	e.state.Store(int32(s))
}

// SetMotorMode replaces the force-feedback routing parameters. Takes
// effect on the next Start or Swap.
func (e *Engine) SetMotorMode(mode MotorMode, gain float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.options.motorMode = mode
	e.options.gain = gain
}

// Profile returns the currently active profile, or nil when stopped.
func (e *Engine) Profile() *Profile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.profile
}

// Start activates a profile. Acquiring the sink, installing device
// subscriptions and attaching the force-feedback router happen in order;
// failure at any step rolls back fully and leaves the engine stopped.
func (e *Engine) Start(ctx context.Context, profile *Profile) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startLocked(ctx, profile)
}

// Swap atomically replaces the active profile: the previous profile is
// fully stopped (device unsubscription, controller disconnect, force
// detach) before the next one starts, so two emitters never share the
// virtual device.
func (e *Engine) Swap(ctx context.Context, profile *Profile) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
	return e.startLocked(ctx, profile)
}

// Stop deactivates the engine. Safe to call in any state.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

func (e *Engine) startLocked(ctx context.Context, profile *Profile) error {
	if s := e.State(); s != StateStopped {
		return fmt.Errorf("engine is %s", s)
	}
	e.setState(StateStarting)

	runCtx, cancel := context.WithCancel(ctx)
	rollback := func() {
		cancel()
		e.setState(StateStopped)
	}

	if err := e.sink.Connect(runCtx); err != nil {
		rollback()
		return fmt.Errorf("failed to acquire virtual controller: %w", err)
	}

	events := e.devices.Subscribe(runCtx, profile.Devices()...)

	router := NewRouter(e.log.Named("ffb"), e.options.motorMode, e.options.gain)
	for _, id := range profile.Devices() {
		if target, ok := e.devices.ForceTarget(id); ok {
			router.Attach(target)
			break
		}
	}

	// Present a resting pad before the first device event arrives. A sink
	// that rejects it is unusable: unwind everything.
	if err := e.sink.Send(padapi.NewState()); err != nil {
		router.Detach()
		cancel()
		if closeErr := e.sink.Close(); closeErr != nil {
			e.log.Debug("Failed to close sink during rollback", zap.Error(closeErr))
		}
		e.setState(StateStopped)
		return fmt.Errorf("failed to emit initial state: %w", err)
	}

	e.profile = profile
	e.eval.Reset()
	e.router = router
	e.cancel = cancel

	go router.Run(runCtx)
	go e.consumeRumble(runCtx)
	go e.consumeEvents(events)

	e.setState(StateRunning)
	e.log.Info("Engine started", zap.String("profile", profile.Name))
	return nil
}

func (e *Engine) stopLocked() {
	if e.State() != StateRunning {
		return
	}
	e.setState(StateStopping)
	if session := e.capture.Load(); session != nil {
		e.endCaptureLocked(session, CaptureResult{Outcome: CaptureCancelled})
	}
	e.cancel()
	e.router.Detach()
	if err := e.sink.Close(); err != nil {
		e.log.Warn("Failed to close virtual controller", zap.Error(err))
	}
	name := e.profile.Name
	e.profile = nil
	e.router = nil
	e.cancel = nil
	e.setState(StateStopped)
	e.log.Info("Engine stopped", zap.String("profile", name))
}

func (e *Engine) consumeEvents(events <-chan padapi.SourceEvent) {
	for ev := range events {
		e.handleEvent(ev)
	}
}

// handleEvent runs the full per-change pipeline: capture tap, cache
// update, evaluation, emission. Evaluation is synchronous with the change
// notification, so output latency equals device-poll latency.
func (e *Engine) handleEvent(ev padapi.SourceEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.State() != StateRunning {
		return
	}
	e.observeCaptureLocked(ev)
	e.eval.Update(ev)
	state := e.eval.Evaluate(e.profile)
	if err := e.sink.Send(state); err != nil {
		e.log.Warn("Failed to send controller state", zap.Error(err))
	}
}

func (e *Engine) consumeRumble(ctx context.Context) {
	rumble := e.sink.Rumble()
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-rumble:
			if !ok {
				return
			}
			e.mu.Lock()
			router := e.router
			e.mu.Unlock()
			if router != nil {
				router.Route(r)
			}
		}
	}
}

// StartCapture begins an interactive binding-capture session for the
// output. The returned channel reports intermediate AlreadyBound outcomes
// and is closed after the terminal outcome. Only one session may be
// active engine-wide.
func (e *Engine) StartCapture(output padapi.VirtualOutput) (<-chan CaptureResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s := e.State(); s != StateRunning {
		return nil, fmt.Errorf("engine is %s", s)
	}
	if e.capture.Load() != nil {
		return nil, ErrCaptureActive
	}
	session := &captureSession{
		c:       newCapture(e.log.Named("capture"), output, e.profile, e.options.now),
		results: make(chan CaptureResult, 4),
	}
	session.timer = time.AfterFunc(captureTimeout, func() {
		e.expireCapture(session)
	})
	e.capture.Store(session)
	return session.results, nil
}

// CancelCapture aborts the active capture session, if any.
func (e *Engine) CancelCapture() {
	e.mu.Lock()
	defer e.mu.Unlock()
	session := e.capture.Load()
	if session == nil {
		return
	}
	e.endCaptureLocked(session, CaptureResult{Outcome: CaptureCancelled})
}

func (e *Engine) observeCaptureLocked(ev padapi.SourceEvent) {
	session := e.capture.Load()
	if session == nil {
		return
	}
	result, done := session.c.observe(ev)
	if !done {
		return
	}
	switch result.Outcome {
	case CaptureAlreadyBound:
		// Reported, but the session keeps listening.
		select {
		case session.results <- result:
		default:
		}
	case CaptureCaptured:
		e.profile = e.profile.AddBinding(session.c.output, result.Binding)
		e.endCaptureLocked(session, result)
	case CaptureTimedOut:
		e.endCaptureLocked(session, result)
	}
}

func (e *Engine) expireCapture(session *captureSession) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.capture.Load() != session || !session.c.expired() {
		return
	}
	e.endCaptureLocked(session, CaptureResult{Outcome: CaptureTimedOut})
}

func (e *Engine) endCaptureLocked(session *captureSession, result CaptureResult) {
	session.timer.Stop()
	e.capture.Store(nil)
	select {
	case session.results <- result:
	default:
	}
	close(session.results)
	e.log.Info("Capture finished", zap.Stringer("outcome", result.Outcome))
}
