// Package sim drives the control-integrate-guard loop for single runs and
// parallel batches.
package sim

import (
	"context"
	"fmt"
	"math"

	"github.com/theSadeQ/dip-smc-pso/internal/dynamo"
	"github.com/theSadeQ/dip-smc-pso/internal/guards"
)

// resetter lets the runner clear per-run integrator state (FSAL cache,
// step-controller memory) without widening the Integrator interface.
type resetter interface {
	Reset()
}

// Runner executes one closed-loop simulation: controller at a fixed control
// period, integrator possibly subdividing each period, guard chain after
// every accepted step. Strictly sequential; one instance per trial.
type Runner struct {
	dyn    dynamo.System
	integ  dynamo.Integrator
	ctrl   dynamo.Controller
	guards *guards.Chain

	// OnStep, when set, observes the state after each control period.
	// Used by the live view; must not mutate x.
	OnStep func(x dynamo.State, u dynamo.Control, t float64)
}

func NewRunner(dyn dynamo.System, integ dynamo.Integrator, ctrl dynamo.Controller) *Runner {
	return &Runner{dyn: dyn, integ: integ, ctrl: ctrl}
}

// SetGuards installs the safety guard chain applied after each step.
func (r *Runner) SetGuards(c *guards.Chain) { r.guards = c }

func (r *Runner) Run(ctx context.Context, x0 dynamo.State, cfg dynamo.Config) (*dynamo.Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(x0) != r.dyn.StateDim() {
		return nil, fmt.Errorf("%w: state %d, system %d",
			dynamo.ErrDimensionMismatch, len(x0), r.dyn.StateDim())
	}
	if !x0.IsValid() {
		return nil, fmt.Errorf("%w: initial state %v", dynamo.ErrInvalidState, x0)
	}

	r.ctrl.Reset()
	if rs, ok := r.integ.(resetter); ok {
		rs.Reset()
	}

	steps := int(cfg.Duration/cfg.Dt + 0.5)
	result := &dynamo.Result{
		Trajectory: dynamo.Trajectory{
			Times:    make([]float64, 0, steps+1),
			States:   make([]dynamo.State, 0, steps+1),
			Controls: make([]dynamo.Control, 0, steps),
		},
		Status: dynamo.StatusCompleted,
	}

	x := x0.Clone()
	t := 0.0
	h := cfg.Dt // adaptive sub-step size, persists across control periods
	if cfg.Adaptive && cfg.MaxDt > 0 {
		h = math.Min(h, cfg.MaxDt)
	}

	var initialEnergy float64
	ham, isHam := r.dyn.(dynamo.Hamiltonian)
	if isHam {
		initialEnergy = ham.Energy(x)
	}

	result.Trajectory.Times = append(result.Trajectory.Times, t)
	result.Trajectory.States = append(result.Trajectory.States, x.Clone())

loop:
	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		u := r.ctrl.Compute(x, t)

		var halted bool
		x, h, halted = r.advancePeriod(result, x, u, t, h, i, cfg)

		t = cfg.Dt * float64(i+1)
		result.StepsTaken++
		result.Trajectory.Times = append(result.Trajectory.Times, t)
		result.Trajectory.States = append(result.Trajectory.States, x.Clone())
		result.Trajectory.Controls = append(result.Trajectory.Controls, u)

		if r.OnStep != nil {
			r.OnStep(x, u, t)
		}

		if halted {
			break loop
		}
	}

	if isHam && result.Status == dynamo.StatusCompleted && initialEnergy != 0 {
		final := ham.Energy(x)
		result.EnergyDrift = math.Abs(final-initialEnergy) / math.Abs(initialEnergy)
	}

	return result, nil
}

// advancePeriod integrates one control period [t, t+dt), holding u
// constant. Returns the new state, the adaptive step size to carry into
// the next period, and whether the run must halt.
func (r *Runner) advancePeriod(result *dynamo.Result, x dynamo.State, u dynamo.Control, t, h float64, step int, cfg dynamo.Config) (dynamo.State, float64, bool) {
	if !cfg.Adaptive {
		sub := cfg.Substeps
		if sub < 1 {
			sub = 1
		}
		hFixed := cfg.Dt / float64(sub)
		for j := 0; j < sub; j++ {
			x = r.integ.Step(r.dyn, x, u, t+float64(j)*hFixed, hFixed)
			if halt := r.checkGuards(result, x, step, t+float64(j+1)*hFixed); halt {
				return x, h, true
			}
		}
		return x, h, false
	}

	adaptive, ok := r.integ.(dynamo.AdaptiveIntegrator)
	if !ok {
		// fixed integrator under an adaptive config: single full step
		x = r.integ.Step(r.dyn, x, u, t, cfg.Dt)
		return x, h, r.checkGuards(result, x, step, t+cfg.Dt)
	}

	tEnd := t + cfg.Dt
	tNow := t
	for tNow < tEnd-1e-12 {
		hTry := math.Min(h, tEnd-tNow)
		next, hNext, accepted, err := adaptive.StepAdaptive(r.dyn, x, u, tNow, hTry, cfg.Tolerance)
		if err != nil {
			result.Status = dynamo.StatusIntegrationFailure
			result.Err = &dynamo.SimError{Step: step, Time: tNow, Wrapped: err}
			return x, h, true
		}
		if accepted {
			x = next
			tNow += hTry
			h = math.Min(math.Max(hNext, cfg.MinDt), cfg.MaxDt)
			if halt := r.checkGuards(result, x, step, tNow); halt {
				return x, h, true
			}
			continue
		}
		if hNext < cfg.MinDt {
			result.Status = dynamo.StatusIntegrationFailure
			result.Err = &dynamo.SimError{Step: step, Time: tNow, Wrapped: dynamo.ErrStepTooSmall}
			return x, h, true
		}
		h = hNext
	}
	return x, h, false
}

// checkGuards runs the guard chain on a post-step state, records any
// violations, and reports whether a fatal one halts the run.
func (r *Runner) checkGuards(result *dynamo.Result, x dynamo.State, step int, t float64) bool {
	if r.guards == nil {
		return false
	}
	for _, v := range r.guards.Check(x, step, t) {
		result.Violations = append(result.Violations, v)
		if v.Severity == dynamo.SeverityFatal {
			result.Status = dynamo.StatusFatalViolation
			result.FatalKind = v.Kind
			result.Err = &dynamo.SimError{Step: step, Time: t, Wrapped: dynamo.ErrUnstable}
			return true
		}
	}
	return false
}
