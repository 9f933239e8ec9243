package integrators

import (
	"errors"
	"math"
	"testing"

	"github.com/theSadeQ/dip-smc-pso/internal/dynamo"
)

// countingSystem wraps the oscillator and counts derivative evaluations.
type countingSystem struct {
	harmonicOscillator
	calls int
}

func (c *countingSystem) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	c.calls++
	return c.harmonicOscillator.Derive(x, u, t)
}

// stiffDecay is x' = -lambda*x with a rate no explicit method can track at
// ordinary step sizes.
type stiffDecay struct{ lambda float64 }

func (s *stiffDecay) StateDim() int   { return 1 }
func (s *stiffDecay) ControlDim() int { return 0 }

func (s *stiffDecay) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{-s.lambda * x[0]}
}

func TestRK45FixedStep(t *testing.T) {
	integ := NewRK45()
	dyn := &harmonicOscillator{}

	x := integrateTo(integ, dyn, dynamo.State{1, 0}, 1.0, 0.01)

	if !x.IsValid() {
		t.Fatal("RK45 produced invalid state")
	}
	if err := math.Abs(x[0] - math.Cos(1.0)); err > 1e-9 {
		t.Errorf("RK45 position error %e", err)
	}
}

func TestRK45AcceptsGoodStep(t *testing.T) {
	integ := NewRK45()
	dyn := &harmonicOscillator{}
	x0 := dynamo.State{1, 0}

	next, dtNext, accepted, err := integ.StepAdaptive(dyn, x0, nil, 0, 0.001, 1e-6)
	if err != nil {
		t.Fatalf("StepAdaptive returned error: %v", err)
	}
	if !accepted {
		t.Fatal("small step on smooth dynamics should be accepted")
	}
	if !next.IsValid() {
		t.Error("accepted state invalid")
	}
	if dtNext <= 0 {
		t.Errorf("proposed dt %g, want positive", dtNext)
	}
	if dtNext < 0.001 {
		t.Errorf("smooth accept should not shrink the step: %g", dtNext)
	}
}

func TestRK45RejectContract(t *testing.T) {
	integ := NewRK45()
	integ.SetStepBounds(1e-10, 1.0)
	dyn := &stiffDecay{lambda: 1e4}
	x0 := dynamo.State{1}

	next, dtNext, accepted, err := integ.StepAdaptive(dyn, x0, nil, 0, 0.1, 1e-9)
	if err != nil {
		t.Fatalf("first reject should not error: %v", err)
	}
	if accepted {
		t.Fatal("huge step on stiff dynamics should be rejected")
	}
	// rejected step returns the input state untouched and a smaller dt
	if next[0] != x0[0] {
		t.Errorf("rejected step modified the state: %g", next[0])
	}
	if dtNext >= 0.1 {
		t.Errorf("rejected step proposed dt %g, want < 0.1", dtNext)
	}
}

func TestRK45StepFloorFailure(t *testing.T) {
	integ := NewRK45()
	integ.SetStepBounds(1e-4, 0.1)
	dyn := &stiffDecay{lambda: 1e6}
	x := dynamo.State{1}

	dt := 0.1
	for i := 0; i < 100; i++ {
		_, dtNext, accepted, err := integ.StepAdaptive(dyn, x, nil, 0, dt, 1e-10)
		if err != nil {
			if !errors.Is(err, dynamo.ErrStepTooSmall) {
				t.Fatalf("unexpected error: %v", err)
			}
			return
		}
		if accepted {
			t.Fatalf("step accepted at dt=%g on dynamics it cannot resolve", dt)
		}
		dt = dtNext
	}
	t.Fatal("never hit the step-size floor")
}

func TestRK45FSALReusesLastStage(t *testing.T) {
	integ := NewRK45()
	dyn := &countingSystem{}
	x := dynamo.State{1, 0}

	next, _, accepted, err := integ.StepAdaptive(dyn, x, nil, 0, 0.001, 1e-6)
	if err != nil || !accepted {
		t.Fatalf("first step: accepted=%v err=%v", accepted, err)
	}
	first := dyn.calls
	if first != 7 {
		t.Fatalf("first step used %d evaluations, want 7", first)
	}

	_, _, accepted, err = integ.StepAdaptive(dyn, next, nil, 0.001, 0.001, 1e-6)
	if err != nil || !accepted {
		t.Fatalf("second step: accepted=%v err=%v", accepted, err)
	}
	if second := dyn.calls - first; second != 6 {
		t.Errorf("second step used %d evaluations, want 6 with FSAL reuse", second)
	}
}

func TestRK45FSALInvalidatedByNewState(t *testing.T) {
	integ := NewRK45()
	dyn := &countingSystem{}

	_, _, _, err := integ.StepAdaptive(dyn, dynamo.State{1, 0}, nil, 0, 0.001, 1e-6)
	if err != nil {
		t.Fatal(err)
	}
	first := dyn.calls

	// different resume point: the cache must not be used
	_, _, _, err = integ.StepAdaptive(dyn, dynamo.State{0.5, 0.5}, nil, 0.001, 0.001, 1e-6)
	if err != nil {
		t.Fatal(err)
	}
	if second := dyn.calls - first; second != 7 {
		t.Errorf("cache hit on mismatched state: %d evaluations, want 7", second)
	}
}

func TestRK45EnergyConservation(t *testing.T) {
	integ := NewRK45()
	dyn := &harmonicOscillator{}
	x := dynamo.State{1, 0}

	dt := 0.01
	for i := 0; i < 10000; i++ {
		x = integ.Step(dyn, x, nil, float64(i)*dt, dt)
	}

	drift := math.Abs(dyn.Energy(x)-0.5) / 0.5
	if drift > 1e-6 {
		t.Errorf("RK45 energy drift %e over 100s", drift)
	}
}

func TestRK45Reset(t *testing.T) {
	integ := NewRK45()
	dyn := &countingSystem{}

	next, _, _, err := integ.StepAdaptive(dyn, dynamo.State{1, 0}, nil, 0, 0.001, 1e-6)
	if err != nil {
		t.Fatal(err)
	}
	integ.Reset()
	before := dyn.calls

	// same resume point, but the cache was cleared
	_, _, _, err = integ.StepAdaptive(dyn, next, nil, 0.001, 0.001, 1e-6)
	if err != nil {
		t.Fatal(err)
	}
	if used := dyn.calls - before; used != 7 {
		t.Errorf("reset should drop the FSAL cache: %d evaluations, want 7", used)
	}
}
