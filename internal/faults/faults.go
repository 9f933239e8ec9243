// Package faults perturbs sensor readings and actuator commands for
// robustness validation runs.
//
// Injection is a transform applied between the plant and the controller
// (sensor faults) or between the controller and the plant (actuator
// faults). The clean signal is never mutated: sensor injection copies the
// state, so fault-free baselines stay reproducible from the same seed.
// Hold-style faults (dropout, stuck-at, delay) keep small replay state
// owned by the injector; Reset clears it between runs.
package faults

import (
	"math/rand"

	"github.com/theSadeQ/dip-smc-pso/internal/dynamo"
)

type Kind string

const (
	// sensor and actuator
	KindBias    Kind = "bias"    // additive offset of Magnitude
	KindScaling Kind = "scaling" // multiplicative factor Magnitude

	// sensor only
	KindDropout Kind = "dropout" // hold the last pre-onset reading
	KindNoise   Kind = "noise"   // bounded uniform noise in [-Magnitude, Magnitude]

	// actuator only
	KindSaturation Kind = "saturation" // clamp to [-Magnitude, Magnitude]
	KindDelay      Kind = "delay"      // replay the command from Magnitude seconds ago
	KindStuck      Kind = "stuck"      // freeze at the value seen at onset
)

// Spec describes one fault: what, how strong, and when.
type Spec struct {
	Kind      Kind    `yaml:"kind"`
	Magnitude float64 `yaml:"magnitude"`
	Onset     float64 `yaml:"onset"`
	Duration  float64 `yaml:"duration"` // <= 0 means until the end of the run
	Channel   int     `yaml:"channel"`  // sensor state index; -1 applies to all
}

func (s Spec) Active(t float64) bool {
	if t < s.Onset {
		return false
	}
	return s.Duration <= 0 || t < s.Onset+s.Duration
}

// SensorInjector perturbs the state vector seen by the controller.
type SensorInjector struct {
	specs []Spec
	seed  int64
	rng   *rand.Rand

	held     dynamo.State
	haveHeld bool
}

func NewSensorInjector(specs []Spec, seed int64) *SensorInjector {
	return &SensorInjector{specs: specs, seed: seed, rng: rand.New(rand.NewSource(seed))}
}

func (s *SensorInjector) Reset() {
	s.rng = rand.New(rand.NewSource(s.seed))
	s.held = nil
	s.haveHeld = false
}

// Apply returns the perturbed reading. The input state is not modified.
func (s *SensorInjector) Apply(x dynamo.State, t float64) dynamo.State {
	out := x.Clone()

	dropped := false
	for _, spec := range s.specs {
		if !spec.Active(t) {
			continue
		}
		switch spec.Kind {
		case KindBias:
			applyChannels(out, spec.Channel, func(v float64) float64 { return v + spec.Magnitude })
		case KindScaling:
			applyChannels(out, spec.Channel, func(v float64) float64 { return v * spec.Magnitude })
		case KindNoise:
			applyChannels(out, spec.Channel, func(v float64) float64 {
				return v + (s.rng.Float64()*2-1)*spec.Magnitude
			})
		case KindDropout:
			dropped = true
		}
	}

	if dropped {
		if s.haveHeld {
			return s.held.Clone()
		}
		// first sample inside the window: freeze it
		s.held = out.Clone()
		s.haveHeld = true
		return out
	}
	s.held = out.Clone()
	s.haveHeld = true
	return out
}

func applyChannels(x dynamo.State, channel int, f func(float64) float64) {
	if channel >= 0 {
		if channel < len(x) {
			x[channel] = f(x[channel])
		}
		return
	}
	for i := range x {
		x[i] = f(x[i])
	}
}

// ActuatorInjector perturbs the scalar force commanded by the controller.
type ActuatorInjector struct {
	specs []Spec

	history   []sample // for delay replay
	stuckAt   float64
	haveStuck bool
}

type sample struct {
	t float64
	u float64
}

const maxHistory = 4096

func NewActuatorInjector(specs []Spec) *ActuatorInjector {
	return &ActuatorInjector{specs: specs}
}

func (a *ActuatorInjector) Reset() {
	a.history = a.history[:0]
	a.haveStuck = false
}

// Apply returns the force the plant actually receives.
func (a *ActuatorInjector) Apply(u float64, t float64) float64 {
	a.history = append(a.history, sample{t: t, u: u})
	if len(a.history) > maxHistory {
		a.history = a.history[len(a.history)-maxHistory:]
	}

	out := u
	for _, spec := range a.specs {
		if !spec.Active(t) {
			continue
		}
		switch spec.Kind {
		case KindBias:
			out += spec.Magnitude
		case KindScaling:
			out *= spec.Magnitude
		case KindSaturation:
			if out > spec.Magnitude {
				out = spec.Magnitude
			} else if out < -spec.Magnitude {
				out = -spec.Magnitude
			}
		case KindDelay:
			out = a.delayed(t - spec.Magnitude)
		case KindStuck:
			if !a.haveStuck {
				a.stuckAt = out
				a.haveStuck = true
			}
			out = a.stuckAt
		}
	}
	return out
}

// delayed returns the most recent command at or before the given time,
// zero before any command exists.
func (a *ActuatorInjector) delayed(t float64) float64 {
	for i := len(a.history) - 1; i >= 0; i-- {
		if a.history[i].t <= t {
			return a.history[i].u
		}
	}
	return 0
}

// Wrapped decorates a controller with sensor and actuator injection. Either
// injector may be nil.
type Wrapped struct {
	inner  dynamo.Controller
	sensor *SensorInjector
	act    *ActuatorInjector
}

func Wrap(ctrl dynamo.Controller, sensor *SensorInjector, act *ActuatorInjector) *Wrapped {
	return &Wrapped{inner: ctrl, sensor: sensor, act: act}
}

func (w *Wrapped) Compute(x dynamo.State, t float64) dynamo.Control {
	seen := x
	if w.sensor != nil {
		seen = w.sensor.Apply(x, t)
	}
	u := w.inner.Compute(seen, t)
	if w.act != nil {
		return dynamo.Control{w.act.Apply(u.Force(), t)}
	}
	return u
}

func (w *Wrapped) Reset() {
	w.inner.Reset()
	if w.sensor != nil {
		w.sensor.Reset()
	}
	if w.act != nil {
		w.act.Reset()
	}
}
