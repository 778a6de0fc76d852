package mapsvc

import (
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/atomic"

	"github.com/padforge/padforge/padapi"
)

// sourceEntry is the cached value of one physical source. seq orders
// updates across all sources so that axis aggregation can pick the most
// recently changed binding.
type sourceEntry struct {
	value float64
	seq   uint64
}

// Evaluator owns the per-source value cache and resolves it against a
// profile into controller state snapshots. Updates come from concurrent
// device readers (one writer per source); evaluation may run from any
// goroutine.
type Evaluator struct {
	cache *xsync.MapOf[padapi.SourceKey, sourceEntry]
	seq   atomic.Uint64
}

func NewEvaluator() *Evaluator {
	return &Evaluator{
		cache: xsync.NewMapOf[padapi.SourceKey, sourceEntry](),
	}
}

// Update records a source change in the cache.
func (e *Evaluator) Update(ev padapi.SourceEvent) {
	e.cache.Store(ev.Key(), sourceEntry{
		value: ev.Value,
		seq:   e.seq.Inc(),
	})
}

// Reset drops all cached source values.
func (e *Evaluator) Reset() {
	e.cache.Clear()
}

// Evaluate resolves the profile against the current cache into one fully
// populated snapshot. Sources without a cached value (missing or
// disconnected devices) contribute nothing. Runs in O(total bindings).
func (e *Evaluator) Evaluate(profile *Profile) padapi.State {
	state := padapi.NewState()
	for output, mapping := range profile.Mappings {
		switch output.Kind() {
		case padapi.OutputKindButton:
			state.SetButton(output, e.evaluateButton(mapping))
		case padapi.OutputKindTrigger:
			state.SetAnalog(output, e.evaluateTrigger(mapping))
		case padapi.OutputKindAxis:
			state.SetAnalog(output, e.evaluateAxis(mapping))
		}
	}
	return state
}

// evaluateButton ORs the bindings: the output is active if any binding's
// transformed value crosses its threshold.
func (e *Evaluator) evaluateButton(mapping OutputMapping) bool {
	for _, b := range mapping.Bindings {
		entry, ok := e.cache.Load(b.Key())
		if !ok {
			continue
		}
		if b.Active(entry.value) {
			return true
		}
	}
	return false
}

// evaluateTrigger takes the strongest press over all bindings.
func (e *Evaluator) evaluateTrigger(mapping OutputMapping) float64 {
	var max float64
	for _, b := range mapping.Bindings {
		entry, ok := e.cache.Load(b.Key())
		if !ok {
			continue
		}
		if v := b.Transform(padapi.OutputKindTrigger, entry.value); v > max {
			max = v
		}
	}
	return max
}

// evaluateAxis picks the binding whose source changed most recently.
// Averaging simultaneous analog sources would corrupt fine control, so
// the last writer wins; binding order breaks exact ties.
func (e *Evaluator) evaluateAxis(mapping OutputMapping) float64 {
	value := 0.5
	var bestSeq uint64
	found := false
	for _, b := range mapping.Bindings {
		entry, ok := e.cache.Load(b.Key())
		if !ok {
			continue
		}
		if !found || entry.seq > bestSeq {
			found = true
			bestSeq = entry.seq
			value = b.Transform(padapi.OutputKindAxis, entry.value)
		}
	}
	return value
}
