package sim

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/theSadeQ/dip-smc-pso/internal/control"
	"github.com/theSadeQ/dip-smc-pso/internal/dynamo"
	"github.com/theSadeQ/dip-smc-pso/internal/integrators"
	"github.com/theSadeQ/dip-smc-pso/internal/plant"
)

var stabilizingGains = []float64{4, 1, 48, 3, 12, 0.3}

func testConfig(dt, duration float64) dynamo.Config {
	return dynamo.Config{
		Dt:        dt,
		Duration:  duration,
		Tolerance: 1e-6,
		MinDt:     1e-8,
		MaxDt:     dt,
		Substeps:  1,
	}
}

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	dyn := plant.NewFull(plant.DefaultParams())
	ctrl, err := control.New(control.TypeClassical, stabilizingGains, 100, plant.DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	return NewRunner(dyn, integrators.NewRK4(), ctrl)
}

func TestRunTrajectoryShape(t *testing.T) {
	r := newTestRunner(t)
	x0 := dynamo.State{0, 0, 0.1, 0, 0.1, 0}

	result, err := r.Run(context.Background(), x0, testConfig(0.01, 1.0))
	if err != nil {
		t.Fatal(err)
	}

	if result.Status != dynamo.StatusCompleted {
		t.Fatalf("expected completed run, got %v", result.Status)
	}
	if len(result.Trajectory.Times) != 101 {
		t.Errorf("expected 101 time samples, got %d", len(result.Trajectory.Times))
	}
	if len(result.Trajectory.States) != 101 {
		t.Errorf("expected 101 states, got %d", len(result.Trajectory.States))
	}
	if len(result.Trajectory.Controls) != 100 {
		t.Errorf("expected 100 controls, got %d", len(result.Trajectory.Controls))
	}
	if result.StepsTaken != 100 {
		t.Errorf("expected 100 steps, got %d", result.StepsTaken)
	}

	// time grid must be exact multiples of dt, free of accumulation error
	for i, tv := range result.Trajectory.Times {
		if want := 0.01 * float64(i); math.Abs(tv-want) > 1e-12 {
			t.Fatalf("time sample %d = %.15f, want %.15f", i, tv, want)
		}
	}
}

func TestRunRejectsBadConfig(t *testing.T) {
	r := newTestRunner(t)
	x0 := dynamo.State{0, 0, 0.1, 0, 0.1, 0}

	cfg := testConfig(0.01, 1.0)
	cfg.Dt = -1
	if _, err := r.Run(context.Background(), x0, cfg); err == nil {
		t.Error("expected error for negative dt")
	}

	if _, err := r.Run(context.Background(), dynamo.State{1, 2}, testConfig(0.01, 1.0)); err == nil {
		t.Error("expected dimension mismatch error")
	}

	bad := dynamo.State{0, 0, math.NaN(), 0, 0, 0}
	if _, err := r.Run(context.Background(), bad, testConfig(0.01, 1.0)); !errors.Is(err, dynamo.ErrInvalidState) {
		t.Errorf("expected invalid state error, got %v", err)
	}
}

// blowupSystem diverges shortly after start to exercise the guard path.
type blowupSystem struct{}

func (b *blowupSystem) StateDim() int   { return 6 }
func (b *blowupSystem) ControlDim() int { return 1 }

func (b *blowupSystem) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	if t > 0.2 {
		return dynamo.State{math.NaN(), 0, 0, 0, 0, 0}
	}
	return dynamo.State{x[1], 0, 0, 0, 0, 0}
}

func (b *blowupSystem) Energy(x dynamo.State) float64 { return 1.0 }

func TestRunFatalViolationHalts(t *testing.T) {
	ctrl, _ := control.New(control.TypeClassical, stabilizingGains, 100, plant.DefaultParams())
	dyn := &blowupSystem{}
	r := NewRunner(dyn, integrators.NewEuler(), ctrl)
	x0 := dynamo.State{0, 0, 0, 0, 0, 0}
	r.SetGuards(DefaultGuards(dyn, x0, 10, 20, 50, 5, dynamo.SeverityFatal))

	result, err := r.Run(context.Background(), x0, testConfig(0.01, 1.0))
	if err != nil {
		t.Fatal(err)
	}

	if result.Status != dynamo.StatusFatalViolation {
		t.Fatalf("expected fatal violation status, got %v", result.Status)
	}
	if result.FatalKind != "finite" {
		t.Errorf("expected finite guard to fire, got %q", result.FatalKind)
	}
	if len(result.Trajectory.Times) >= 101 {
		t.Error("trajectory should be truncated at the fatal step")
	}
	if len(result.Violations) == 0 {
		t.Error("fatal violation should be recorded")
	}
	if !errors.Is(result.Err, dynamo.ErrUnstable) {
		t.Errorf("fatal violation should surface as instability, got %v", result.Err)
	}
}

func TestRunDeterminism(t *testing.T) {
	x0 := dynamo.State{0, 0, 0.1, 0, 0.1, 0}
	cfg := testConfig(0.01, 2.0)

	r1 := newTestRunner(t)
	r2 := newTestRunner(t)

	res1, err := r1.Run(context.Background(), x0, cfg)
	if err != nil {
		t.Fatal(err)
	}
	res2, err := r2.Run(context.Background(), x0, cfg)
	if err != nil {
		t.Fatal(err)
	}

	for i := range res1.Trajectory.States {
		for j := range res1.Trajectory.States[i] {
			if res1.Trajectory.States[i][j] != res2.Trajectory.States[i][j] {
				t.Fatalf("runs diverged at sample %d component %d", i, j)
			}
		}
	}
}

func TestRunReusesRunnerAfterReset(t *testing.T) {
	r := newTestRunner(t)
	x0 := dynamo.State{0, 0, 0.1, 0, 0.1, 0}
	cfg := testConfig(0.01, 1.0)

	res1, err := r.Run(context.Background(), x0, cfg)
	if err != nil {
		t.Fatal(err)
	}
	// second run on the same runner must match: Run resets controller and
	// integrator state up front
	res2, err := r.Run(context.Background(), x0, cfg)
	if err != nil {
		t.Fatal(err)
	}

	last := len(res1.Trajectory.States) - 1
	for j := range res1.Trajectory.States[last] {
		if res1.Trajectory.States[last][j] != res2.Trajectory.States[last][j] {
			t.Fatalf("second run diverged at component %d", j)
		}
	}
}

func TestRunAdaptiveIntegrator(t *testing.T) {
	dyn := plant.NewFull(plant.DefaultParams())
	ctrl, _ := control.New(control.TypeClassical, stabilizingGains, 100, plant.DefaultParams())
	r := NewRunner(dyn, integrators.NewRK45(), ctrl)

	cfg := testConfig(0.01, 1.0)
	cfg.Adaptive = true
	cfg.Tolerance = 1e-7
	cfg.MinDt = 1e-8
	cfg.MaxDt = 0.01

	result, err := r.Run(context.Background(), dynamo.State{0, 0, 0.1, 0, 0.1, 0}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != dynamo.StatusCompleted {
		t.Fatalf("adaptive run did not complete: %v (%v)", result.Status, result.Err)
	}
	if len(result.Trajectory.Times) != 101 {
		t.Errorf("adaptive run must still sample on the control grid: %d samples", len(result.Trajectory.Times))
	}

	// same scenario under fixed-step RK4: the control grid is shared, so
	// the endpoints differ only by integration error
	fixed, err := newTestRunner(t).Run(context.Background(), dynamo.State{0, 0, 0.1, 0, 0.1, 0}, testConfig(0.01, 1.0))
	if err != nil {
		t.Fatal(err)
	}
	last := len(result.Trajectory.States) - 1
	dev := result.Trajectory.States[last].Sub(fixed.Trajectory.States[last]).Norm()
	if dev > 1e-3 {
		t.Errorf("adaptive and fixed-step endpoints disagree: |dx| = %g", dev)
	}
}

func TestRunSubsteps(t *testing.T) {
	x0 := dynamo.State{0, 0, 0.1, 0, 0.1, 0}

	cfg := testConfig(0.01, 1.0)
	cfg.Substeps = 4

	r := newTestRunner(t)
	result, err := r.Run(context.Background(), x0, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != dynamo.StatusCompleted {
		t.Fatalf("substep run failed: %v", result.Status)
	}
	if len(result.Trajectory.Times) != 101 {
		t.Errorf("substeps must not change the sample grid: %d samples", len(result.Trajectory.Times))
	}
}

func TestEndToEndStabilization(t *testing.T) {
	dyn := plant.NewFull(plant.DefaultParams())
	ctrl, err := control.New(control.TypeClassical, stabilizingGains, 100, plant.DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(dyn, integrators.NewRK4(), ctrl)
	x0 := dynamo.State{0, 0, 0.1, 0, 0.1, 0}
	r.SetGuards(DefaultGuards(dyn, x0, 10, 20, 50, 5, dynamo.SeverityFatal))

	result, err := r.Run(context.Background(), x0, testConfig(0.01, 10.0))
	if err != nil {
		t.Fatal(err)
	}

	if result.Status != dynamo.StatusCompleted {
		t.Fatalf("stabilization run ended %v (fatal: %s)", result.Status, result.FatalKind)
	}
	if len(result.Violations) != 0 {
		t.Fatalf("guards fired during stabilization: %v", result.Violations)
	}

	// settle time: first sample from which both links stay within 0.01 rad
	// of upright through the end of the run
	const settleTol = 0.01
	states := result.Trajectory.States
	settled := len(states)
	for i := len(states) - 1; i >= 0; i-- {
		x := states[i]
		if math.Abs(x[dynamo.IdxTheta1]) > settleTol || math.Abs(x[dynamo.IdxTheta2]) > settleTol {
			break
		}
		settled = i
	}
	if settled >= len(states) {
		t.Fatal("angles never settled within 0.01 rad")
	}
	if ts := result.Trajectory.Times[settled]; ts > 4.0 {
		t.Errorf("settled at t=%.2fs, want within 4s", ts)
	}
}

func TestBatchOrderAndIsolation(t *testing.T) {
	factory := func(trial Trial) (*Runner, error) {
		dyn := plant.NewFull(plant.DefaultParams())
		ctrl, err := control.New(control.TypeClassical, stabilizingGains, 100, plant.DefaultParams())
		if err != nil {
			return nil, err
		}
		return NewRunner(dyn, integrators.NewRK4(), ctrl), nil
	}

	trials := []Trial{
		{X0: dynamo.State{0, 0, 0.05, 0, 0.05, 0}, Seed: 1},
		{X0: dynamo.State{0, 0, 0.10, 0, 0.10, 0}, Seed: 2},
		{X0: dynamo.State{0, 0, 0.15, 0, 0.15, 0}, Seed: 3},
	}

	b := NewBatch(factory, 3)
	results := b.Run(context.Background(), trials, testConfig(0.01, 1.0))

	if len(results) != len(trials) {
		t.Fatalf("expected %d results, got %d", len(trials), len(results))
	}
	for i, res := range results {
		if res.Status != dynamo.StatusCompleted {
			t.Fatalf("trial %d ended %v", i, res.Status)
		}
		got := res.Trajectory.States[0][dynamo.IdxTheta1]
		want := trials[i].X0[dynamo.IdxTheta1]
		if got != want {
			t.Errorf("result %d out of trial order: theta1 %g, want %g", i, got, want)
		}
	}
}

func TestBatchFactoryErrorIsolated(t *testing.T) {
	factory := func(trial Trial) (*Runner, error) {
		if trial.Seed == 2 {
			return nil, dynamo.ErrParameterBounds
		}
		dyn := plant.NewFull(plant.DefaultParams())
		ctrl, _ := control.New(control.TypeClassical, stabilizingGains, 100, plant.DefaultParams())
		return NewRunner(dyn, integrators.NewRK4(), ctrl), nil
	}

	trials := []Trial{
		{X0: dynamo.State{0, 0, 0.1, 0, 0.1, 0}, Seed: 1},
		{X0: dynamo.State{0, 0, 0.1, 0, 0.1, 0}, Seed: 2},
		{X0: dynamo.State{0, 0, 0.1, 0, 0.1, 0}, Seed: 3},
	}

	results := NewBatch(factory, 2).Run(context.Background(), trials, testConfig(0.01, 0.5))

	if results[1].Status != dynamo.StatusIntegrationFailure {
		t.Errorf("failed factory should yield integration failure, got %v", results[1].Status)
	}
	if results[0].Status != dynamo.StatusCompleted || results[2].Status != dynamo.StatusCompleted {
		t.Error("sibling trials must not be affected by one factory failure")
	}
}
