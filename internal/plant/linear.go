package plant

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/theSadeQ/dip-smc-pso/internal/dynamo"
)

// Linear is the simplified model: dynamics linearized about the upright
// equilibrium. The mass matrix is constant, Coriolis terms vanish, and
// gravity is proportional to the angles. Valid for small excursions; cheap
// enough for dense PSO sweeps and reproducibility baselines.
type Linear struct {
	p   Params
	m   *mat.Dense
	rhs []float64
}

func NewLinear(p Params) *Linear {
	coupling := p.Mass2 * p.Length1 * p.Com2
	m := mat.NewDense(3, 3, []float64{
		p.totalMass(), -p.h1(), -p.h2(),
		-p.h1(), p.j1(), coupling,
		-p.h2(), coupling, p.j2(),
	})
	return &Linear{p: p, m: m, rhs: make([]float64, 3)}
}

func (l *Linear) StateDim() int   { return dynamo.StateDim }
func (l *Linear) ControlDim() int { return 1 }

func (l *Linear) Params() Params { return l.p }

func (l *Linear) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	vel := x[dynamo.IdxCartVel]
	th1 := x[dynamo.IdxTheta1]
	om1 := x[dynamo.IdxOmega1]
	th2 := x[dynamo.IdxTheta2]
	om2 := x[dynamo.IdxOmega2]
	p := l.p

	l.rhs[0] = u.Force() - p.CartFriction*vel
	l.rhs[1] = p.h1()*p.Gravity*th1 - p.Joint1Friction*om1
	l.rhs[2] = p.h2()*p.Gravity*th2 - p.Joint2Friction*om2

	acc, _ := SolveInertia(l.m, l.rhs)

	return dynamo.State{vel, acc[0], om1, acc[1], om2, acc[2]}
}

// Energy uses the quadratic small-angle approximation consistent with the
// linearized dynamics.
func (l *Linear) Energy(x dynamo.State) float64 {
	p := l.p
	vel := x[dynamo.IdxCartVel]
	th1 := x[dynamo.IdxTheta1]
	om1 := x[dynamo.IdxOmega1]
	th2 := x[dynamo.IdxTheta2]
	om2 := x[dynamo.IdxOmega2]
	coupling := p.Mass2 * p.Length1 * p.Com2

	ke := 0.5*p.totalMass()*vel*vel +
		0.5*p.j1()*om1*om1 +
		0.5*p.j2()*om2*om2 -
		p.h1()*vel*om1 -
		p.h2()*vel*om2 +
		coupling*om1*om2

	pe := p.h1()*p.Gravity*(2-th1*th1/2) + p.h2()*p.Gravity*(2-th2*th2/2)

	return ke + pe
}

// LowRank is the reduced-order model: nonlinear gravity and cart-link
// coupling are kept, while the link-link inertial coupling and all
// Coriolis terms are dropped. Useful when PSO throughput matters more than
// coupling fidelity.
type LowRank struct {
	p   Params
	m   *mat.Dense
	rhs []float64
}

func NewLowRank(p Params) *LowRank {
	return &LowRank{p: p, m: mat.NewDense(3, 3, nil), rhs: make([]float64, 3)}
}

func (l *LowRank) StateDim() int   { return dynamo.StateDim }
func (l *LowRank) ControlDim() int { return 1 }

func (l *LowRank) Params() Params { return l.p }

func (l *LowRank) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	vel := x[dynamo.IdxCartVel]
	th1 := x[dynamo.IdxTheta1]
	om1 := x[dynamo.IdxOmega1]
	th2 := x[dynamo.IdxTheta2]
	om2 := x[dynamo.IdxOmega2]
	p := l.p

	s1, c1 := math.Sincos(th1)
	s2, c2 := math.Sincos(th2)

	l.m.Set(0, 0, p.totalMass())
	l.m.Set(0, 1, -p.h1()*c1)
	l.m.Set(0, 2, -p.h2()*c2)
	l.m.Set(1, 0, -p.h1()*c1)
	l.m.Set(1, 1, p.j1())
	l.m.Set(1, 2, 0)
	l.m.Set(2, 0, -p.h2()*c2)
	l.m.Set(2, 1, 0)
	l.m.Set(2, 2, p.j2())

	l.rhs[0] = u.Force() - p.CartFriction*vel
	l.rhs[1] = p.h1()*p.Gravity*s1 - p.Joint1Friction*om1
	l.rhs[2] = p.h2()*p.Gravity*s2 - p.Joint2Friction*om2

	acc, _ := SolveInertia(l.m, l.rhs)

	return dynamo.State{vel, acc[0], om1, acc[1], om2, acc[2]}
}

func (l *LowRank) Energy(x dynamo.State) float64 {
	// Same potential as the full model; kinetic energy without the
	// link-link coupling term the model drops.
	p := l.p
	vel := x[dynamo.IdxCartVel]
	th1 := x[dynamo.IdxTheta1]
	om1 := x[dynamo.IdxOmega1]
	th2 := x[dynamo.IdxTheta2]
	om2 := x[dynamo.IdxOmega2]

	c1 := math.Cos(th1)
	c2 := math.Cos(th2)

	ke := 0.5*p.totalMass()*vel*vel +
		0.5*p.j1()*om1*om1 +
		0.5*p.j2()*om2*om2 -
		p.h1()*c1*vel*om1 -
		p.h2()*c2*vel*om2

	pe := p.h1()*p.Gravity*(1+c1) + p.h2()*p.Gravity*(1+c2)

	return ke + pe
}
