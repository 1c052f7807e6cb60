package events

import (
	"fmt"
	"math"
	"sync"

	"github.com/mimir-aip/popsim/pkg/unitvalue"
	"github.com/mimir-aip/popsim/pkg/worldmodel"
)

// ValueProducer yields a value when an effect applies, evaluated once per
// application. A fixed value is the common case; producers may also draw
// from a lazy spec (e.g. a random range), per the snapshot generator
// fields in §6.
type ValueProducer interface {
	Produce() float64
}

// Fixed is a ValueProducer that always returns the same value.
type Fixed float64

func (f Fixed) Produce() float64 { return float64(f) }

// ApplicationType selects how a FactorChangeEffect's produced value
// combines with a city's current factor intensity.
type ApplicationType int

const (
	Absolute ApplicationType = iota
	Delta
	Multiply
	LinearTransition
	LogarithmicTransition
)

// Effect mutates city factor intensities when an event fires.
type Effect interface {
	// Apply mutates city's factor intensity for the given simulation step.
	Apply(city *worldmodel.City, step int) error
	// AppliesTo reports whether this effect targets city at all.
	AppliesTo(city *worldmodel.City) bool
	// TargetFactors lists every FactorDefinition this effect may mutate.
	TargetFactors() []*worldmodel.FactorDefinition
}

// transitioning is the optional contract an Effect implements to report a
// still-ticking transition independent of whatever trigger started it.
// Processor type-asserts for it to decide whether to keep firing an event
// past its trigger's own completion.
type transitioning interface {
	InProgress(city *worldmodel.City, step int) bool
}

type transitionState struct {
	startValue unitvalue.Value
	target     float64
	startStep  int
}

// FactorChangeEffect mutates a single factor's intensity in one city per
// application. CityFilter nil means every city in the world is targeted.
type FactorChangeEffect struct {
	Factor      *worldmodel.FactorDefinition
	Value       ValueProducer
	Application ApplicationType
	Duration    int // steps, used only for the transition application types
	CityFilter  func(*worldmodel.City) bool

	// SmoothingAlpha, for Absolute and Delta applications only, blends the
	// raw computed value with the city's current intensity instead of
	// snapping straight to it: result = alpha*raw + (1-alpha)*current. Zero
	// (the default for an effect built without it set) applies the raw
	// value unblended; callers building events from a StandardModelConfig
	// should set this from FactorSmoothingAlpha to dampen abrupt per-step
	// factor swings.
	SmoothingAlpha float64

	mu          sync.Mutex
	transitions map[*worldmodel.City]*transitionState
}

func (e *FactorChangeEffect) AppliesTo(city *worldmodel.City) bool {
	return e.CityFilter == nil || e.CityFilter(city)
}

func (e *FactorChangeEffect) TargetFactors() []*worldmodel.FactorDefinition {
	return []*worldmodel.FactorDefinition{e.Factor}
}

func (e *FactorChangeEffect) Apply(city *worldmodel.City, step int) error {
	if !e.AppliesTo(city) {
		return nil
	}
	current, ok := city.FactorIntensity(e.Factor)
	if !ok {
		return fmt.Errorf("events: city %q has no intensity for factor %q", city.Name, e.Factor.Name)
	}

	switch e.Application {
	case Absolute:
		city.SetFactorIntensity(e.Factor, e.smoothed(current.Intensity, e.Value.Produce()))
	case Delta:
		city.SetFactorIntensity(e.Factor, e.smoothed(current.Intensity, current.Intensity.Float64()+e.Value.Produce()))
	case Multiply:
		city.SetFactorIntensity(e.Factor, current.Intensity.Scale(e.Value.Produce()))
	case LinearTransition, LogarithmicTransition:
		return e.applyTransition(city, current.Intensity, step)
	default:
		return fmt.Errorf("events: unknown application type %d", e.Application)
	}
	return nil
}

// smoothed blends raw toward current by SmoothingAlpha, or applies raw
// unblended when SmoothingAlpha is out of (0,1].
func (e *FactorChangeEffect) smoothed(current unitvalue.Value, raw float64) unitvalue.Value {
	if e.SmoothingAlpha <= 0 || e.SmoothingAlpha >= 1 {
		return unitvalue.Clamp(raw)
	}
	return unitvalue.Clamp(e.SmoothingAlpha*raw + (1-e.SmoothingAlpha)*current.Float64())
}

func (e *FactorChangeEffect) applyTransition(city *worldmodel.City, current unitvalue.Value, step int) error {
	if e.Duration <= 0 {
		return fmt.Errorf("events: transition effect on %q requires a positive duration", e.Factor.Name)
	}

	e.mu.Lock()
	if e.transitions == nil {
		e.transitions = make(map[*worldmodel.City]*transitionState)
	}
	state, ok := e.transitions[city]
	if !ok {
		state = &transitionState{
			startValue: current,
			target:     e.Value.Produce(),
			startStep:  step,
		}
		e.transitions[city] = state
	}
	e.mu.Unlock()

	frac := float64(step-state.startStep) / float64(e.Duration)
	frac = math.Min(1, math.Max(0, frac))
	if e.Application == LogarithmicTransition {
		frac = math.Log1p(9*frac) / math.Log(10)
	}

	value := state.startValue.Float64() + (state.target-state.startValue.Float64())*frac
	city.SetFactorIntensity(e.Factor, unitvalue.Clamp(value))
	return nil
}

// InProgress reports whether city has a transition that still has steps
// left to tick, independent of whatever trigger started it. A Processor
// uses this to keep driving a transition after a one-shot trigger (e.g.
// StepTrigger) has already completed.
func (e *FactorChangeEffect) InProgress(city *worldmodel.City, step int) bool {
	if e.Application != LinearTransition && e.Application != LogarithmicTransition {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	state, ok := e.transitions[city]
	if !ok {
		return false
	}
	return step <= state.startStep+e.Duration
}

// CompositeEffect applies its children in order to a city, transactionally:
// if any child fails, every child's effect on that city for this
// application is rolled back to the pre-application values.
type CompositeEffect struct {
	Children []Effect
}

func (e *CompositeEffect) AppliesTo(city *worldmodel.City) bool {
	for _, c := range e.Children {
		if c.AppliesTo(city) {
			return true
		}
	}
	return false
}

func (e *CompositeEffect) TargetFactors() []*worldmodel.FactorDefinition {
	seen := make(map[*worldmodel.FactorDefinition]bool)
	var out []*worldmodel.FactorDefinition
	for _, c := range e.Children {
		for _, f := range c.TargetFactors() {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

// InProgress reports whether any child effect is still mid-transition for
// city, per FactorChangeEffect.InProgress.
func (e *CompositeEffect) InProgress(city *worldmodel.City, step int) bool {
	for _, c := range e.Children {
		if ip, ok := c.(transitioning); ok && ip.InProgress(city, step) {
			return true
		}
	}
	return false
}

func (e *CompositeEffect) Apply(city *worldmodel.City, step int) error {
	snapshot := make(map[*worldmodel.FactorDefinition]unitvalue.Value)
	for _, f := range e.TargetFactors() {
		if fi, ok := city.FactorIntensity(f); ok {
			snapshot[f] = fi.Intensity
		}
	}

	for _, child := range e.Children {
		if !child.AppliesTo(city) {
			continue
		}
		if err := child.Apply(city, step); err != nil {
			for f, v := range snapshot {
				city.SetFactorIntensity(f, v)
			}
			return err
		}
	}
	return nil
}
