// Package guards implements the post-step safety checks applied to every
// accepted integrator step: non-finite detection, state envelope bounds,
// and mechanical energy growth. The finite guard runs first; the others
// assume finite input.
package guards

import (
	"fmt"
	"math"

	"github.com/theSadeQ/dip-smc-pso/internal/dynamo"
)

// Guard checks one invariant on a post-step state. A nil return means the
// state passed.
type Guard interface {
	Name() string
	Check(x dynamo.State, step int, t float64) *dynamo.Violation
}

// Chain applies guards in order and stops at the first fatal violation.
type Chain struct {
	guards []Guard
}

func NewChain(gs ...Guard) *Chain {
	return &Chain{guards: gs}
}

func (c *Chain) Add(g Guard) { c.guards = append(c.guards, g) }

// Check returns every violation raised for this state, fatal ones last-
// truncated: once a fatal violation fires, later guards are skipped since
// they may assume invariants the fatal one broke.
func (c *Chain) Check(x dynamo.State, step int, t float64) []dynamo.Violation {
	var out []dynamo.Violation
	for _, g := range c.guards {
		if v := g.Check(x, step, t); v != nil {
			out = append(out, *v)
			if v.Severity == dynamo.SeverityFatal {
				break
			}
		}
	}
	return out
}

// Finite flags any NaN/Inf state component. Always fatal, always first in
// the chain.
type Finite struct{}

func NewFinite() *Finite { return &Finite{} }

func (f *Finite) Name() string { return "finite" }

func (f *Finite) Check(x dynamo.State, step int, t float64) *dynamo.Violation {
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &dynamo.Violation{
				Step:     step,
				Time:     t,
				Kind:     f.Name(),
				Severity: dynamo.SeverityFatal,
				Message:  fmt.Sprintf("non-finite state component %d: %v", i, v),
			}
		}
	}
	return nil
}

// Bounds checks cart position/velocity and angular velocities against a
// configured envelope. Severity is configurable: warn during PSO search so
// marginal particles are penalized instead of discarded, fatal for
// validation runs.
type Bounds struct {
	MaxCartPos float64
	MaxCartVel float64
	MaxAngular float64
	Severity   dynamo.Severity
}

func NewBounds(maxPos, maxVel, maxAngular float64, sev dynamo.Severity) *Bounds {
	return &Bounds{MaxCartPos: maxPos, MaxCartVel: maxVel, MaxAngular: maxAngular, Severity: sev}
}

func (b *Bounds) Name() string { return "bounds" }

func (b *Bounds) Check(x dynamo.State, step int, t float64) *dynamo.Violation {
	if len(x) < dynamo.StateDim {
		return &dynamo.Violation{
			Step: step, Time: t, Kind: b.Name(), Severity: dynamo.SeverityFatal,
			Message: fmt.Sprintf("state dimension %d, want %d", len(x), dynamo.StateDim),
		}
	}
	var msg string
	switch {
	case b.MaxCartPos > 0 && math.Abs(x[dynamo.IdxCartPos]) > b.MaxCartPos:
		msg = fmt.Sprintf("cart position %.3f exceeds %.3f", x[dynamo.IdxCartPos], b.MaxCartPos)
	case b.MaxCartVel > 0 && math.Abs(x[dynamo.IdxCartVel]) > b.MaxCartVel:
		msg = fmt.Sprintf("cart velocity %.3f exceeds %.3f", x[dynamo.IdxCartVel], b.MaxCartVel)
	case b.MaxAngular > 0 && (math.Abs(x[dynamo.IdxOmega1]) > b.MaxAngular || math.Abs(x[dynamo.IdxOmega2]) > b.MaxAngular):
		msg = fmt.Sprintf("angular velocity [%.3f, %.3f] exceeds %.3f",
			x[dynamo.IdxOmega1], x[dynamo.IdxOmega2], b.MaxAngular)
	default:
		return nil
	}
	return &dynamo.Violation{Step: step, Time: t, Kind: b.Name(), Severity: b.Severity, Message: msg}
}

// Energy flags mechanical energy growth beyond (1+eps) of the reference
// energy. The generous default eps tolerates transient control injection;
// the guard exists to catch numerical blow-up, not physical divergence.
type Energy struct {
	sys      dynamo.Hamiltonian
	eps      float64
	ref      float64
	Severity dynamo.Severity
}

// Reference floor so a run started exactly at an equilibrium still has a
// usable energy budget.
const energyFloor = 1.0

func NewEnergy(sys dynamo.Hamiltonian, x0 dynamo.State, eps float64, sev dynamo.Severity) *Energy {
	ref := math.Abs(sys.Energy(x0))
	if ref < energyFloor {
		ref = energyFloor
	}
	return &Energy{sys: sys, eps: eps, ref: ref, Severity: sev}
}

func (e *Energy) Name() string { return "energy" }

func (e *Energy) Check(x dynamo.State, step int, t float64) *dynamo.Violation {
	total := math.Abs(e.sys.Energy(x))
	limit := (1 + e.eps) * e.ref
	if total <= limit {
		return nil
	}
	return &dynamo.Violation{
		Step:     step,
		Time:     t,
		Kind:     e.Name(),
		Severity: e.Severity,
		Message:  fmt.Sprintf("energy %.3f exceeds budget %.3f (ref %.3f)", total, limit, e.ref),
	}
}
