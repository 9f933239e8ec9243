package integrators

import (
	"math"
	"testing"

	"github.com/theSadeQ/dip-smc-pso/internal/dynamo"
)

// harmonicOscillator is x'' = -x, with analytic solution cos(t) from {1, 0}.
type harmonicOscillator struct{}

func (h *harmonicOscillator) StateDim() int   { return 2 }
func (h *harmonicOscillator) ControlDim() int { return 0 }

func (h *harmonicOscillator) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{x[1], -x[0]}
}

func (h *harmonicOscillator) Energy(x dynamo.State) float64 {
	return 0.5 * (x[0]*x[0] + x[1]*x[1])
}

func integrateTo(integ dynamo.Integrator, dyn dynamo.System, x0 dynamo.State, tEnd, dt float64) dynamo.State {
	x := x0.Clone()
	steps := int(tEnd/dt + 0.5)
	for i := 0; i < steps; i++ {
		x = integ.Step(dyn, x, nil, float64(i)*dt, dt)
	}
	return x
}

func TestEulerConverges(t *testing.T) {
	dyn := &harmonicOscillator{}
	x0 := dynamo.State{1, 0}

	coarse := integrateTo(NewEuler(), dyn, x0, 1.0, 0.01)
	fine := integrateTo(NewEuler(), dyn, x0, 1.0, 0.005)

	errCoarse := math.Abs(coarse[0] - math.Cos(1.0))
	errFine := math.Abs(fine[0] - math.Cos(1.0))

	// first order: halving dt should roughly halve the error
	ratio := errCoarse / errFine
	if ratio < 1.5 || ratio > 2.5 {
		t.Errorf("Euler error ratio %g, want about 2", ratio)
	}
}

func TestRK4Accuracy(t *testing.T) {
	dyn := &harmonicOscillator{}
	x := integrateTo(NewRK4(), dyn, dynamo.State{1, 0}, 1.0, 0.01)

	if err := math.Abs(x[0] - math.Cos(1.0)); err > 1e-8 {
		t.Errorf("RK4 position error %e, want < 1e-8", err)
	}
	if err := math.Abs(x[1] - -math.Sin(1.0)); err > 1e-8 {
		t.Errorf("RK4 velocity error %e, want < 1e-8", err)
	}
}

func TestRK4OrderScaling(t *testing.T) {
	dyn := &harmonicOscillator{}
	x0 := dynamo.State{1, 0}

	coarse := integrateTo(NewRK4(), dyn, x0, 1.0, 0.02)
	fine := integrateTo(NewRK4(), dyn, x0, 1.0, 0.01)

	errCoarse := math.Abs(coarse[0] - math.Cos(1.0))
	errFine := math.Abs(fine[0] - math.Cos(1.0))

	// fourth order: halving dt should shrink the error by about 16
	if ratio := errCoarse / errFine; ratio < 10 {
		t.Errorf("RK4 error ratio %g, want >= 10", ratio)
	}
}

func TestRK4EnergyConservation(t *testing.T) {
	dyn := &harmonicOscillator{}
	integ := NewRK4()
	x := dynamo.State{1, 0}

	dt := 0.01
	for i := 0; i < 10000; i++ {
		x = integ.Step(dyn, x, nil, float64(i)*dt, dt)
	}

	drift := math.Abs(dyn.Energy(x)-0.5) / 0.5
	if drift > 1e-6 {
		t.Errorf("RK4 energy drift %e over 100s", drift)
	}
}
