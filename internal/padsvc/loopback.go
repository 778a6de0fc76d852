package padsvc

import (
	"context"
	"sync"

	"github.com/padforge/padforge/padapi"
)

// Loopback is an in-memory sink. It records every state sent to it and
// lets callers feed rumble commands back, which makes it useful for
// tests and dry runs where no kernel device should be created.
type Loopback struct {
	mu        sync.Mutex
	connected bool
	states    []padapi.State
	rumble    chan padapi.Rumble
}

func NewLoopback() *Loopback {
	return &Loopback{
		rumble: make(chan padapi.Rumble, 8),
	}
}

func (l *Loopback) Connect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connected = true
	return nil
}

func (l *Loopback) Send(state padapi.State) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, state)
	return nil
}

func (l *Loopback) Rumble() <-chan padapi.Rumble {
	return l.rumble
}

func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connected = false
	return nil
}

// Feed delivers a rumble command as if the host had requested it.
func (l *Loopback) Feed(r padapi.Rumble) {
	l.rumble <- r
}

// Connected reports whether the sink is currently acquired.
func (l *Loopback) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

// States returns a copy of all states sent so far.
func (l *Loopback) States() []padapi.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]padapi.State, len(l.states))
	copy(out, l.states)
	return out
}

// Last returns the most recent state sent, if any.
func (l *Loopback) Last() (padapi.State, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.states) == 0 {
		return padapi.State{}, false
	}
	return l.states[len(l.states)-1], true
}
