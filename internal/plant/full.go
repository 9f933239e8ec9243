package plant

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/theSadeQ/dip-smc-pso/internal/dynamo"
)

// Full is the complete nonlinear double-inverted-pendulum-on-cart model
// with all inertial coupling and Coriolis terms.
type Full struct {
	p Params

	m   *mat.Dense
	rhs []float64
}

func NewFull(p Params) *Full {
	return &Full{
		p:   p,
		m:   mat.NewDense(3, 3, nil),
		rhs: make([]float64, 3),
	}
}

func (f *Full) StateDim() int   { return dynamo.StateDim }
func (f *Full) ControlDim() int { return 1 }

func (f *Full) Params() Params { return f.p }

func (f *Full) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	// rhs = -C(q, q')q' - G(q) - Fq', then Bu on the cart row
	f.p.AssembleInto(f.m, f.rhs, x)
	f.rhs[0] += u.Force()

	acc, _ := SolveInertia(f.m, f.rhs)

	return dynamo.State{
		x[dynamo.IdxCartVel], acc[0],
		x[dynamo.IdxOmega1], acc[1],
		x[dynamo.IdxOmega2], acc[2],
	}
}

// MassMatrix assembles M(q) at the given state. Used by tests and
// model-based diagnostics.
func (f *Full) MassMatrix(x dynamo.State) *mat.Dense {
	p := f.p
	c1 := math.Cos(x[dynamo.IdxTheta1])
	c2 := math.Cos(x[dynamo.IdxTheta2])
	c12 := math.Cos(x[dynamo.IdxTheta1] - x[dynamo.IdxTheta2])
	coupling := p.Mass2 * p.Length1 * p.Com2

	return mat.NewDense(3, 3, []float64{
		p.totalMass(), -p.h1() * c1, -p.h2() * c2,
		-p.h1() * c1, p.j1(), coupling * c12,
		-p.h2() * c2, coupling * c12, p.j2(),
	})
}

// Energy returns total mechanical energy. Potential energy is measured
// relative to both links hanging straight down.
func (f *Full) Energy(x dynamo.State) float64 {
	p := f.p
	vel := x[dynamo.IdxCartVel]
	th1 := x[dynamo.IdxTheta1]
	om1 := x[dynamo.IdxOmega1]
	th2 := x[dynamo.IdxTheta2]
	om2 := x[dynamo.IdxOmega2]

	c1 := math.Cos(th1)
	c2 := math.Cos(th2)
	c12 := math.Cos(th1 - th2)
	coupling := p.Mass2 * p.Length1 * p.Com2

	ke := 0.5*p.totalMass()*vel*vel +
		0.5*p.j1()*om1*om1 +
		0.5*p.j2()*om2*om2 -
		p.h1()*c1*vel*om1 -
		p.h2()*c2*vel*om2 +
		coupling*c12*om1*om2

	pe := p.h1()*p.Gravity*(1+c1) + p.h2()*p.Gravity*(1+c2)

	return ke + pe
}

func (f *Full) GetParams() map[string]float64 {
	return map[string]float64{
		"cart_mass": f.p.CartMass,
		"mass1":     f.p.Mass1,
		"mass2":     f.p.Mass2,
		"length1":   f.p.Length1,
		"length2":   f.p.Length2,
		"gravity":   f.p.Gravity,
	}
}

func (f *Full) SetParam(name string, value float64) error {
	if value <= 0 {
		return fmt.Errorf("%w: %s = %g", dynamo.ErrParameterBounds, name, value)
	}
	switch name {
	case "cart_mass":
		f.p.CartMass = value
	case "mass1":
		f.p.Mass1 = value
	case "mass2":
		f.p.Mass2 = value
	case "length1":
		f.p.Length1 = value
		f.p.Com1 = value / 2
	case "length2":
		f.p.Length2 = value
		f.p.Com2 = value / 2
	case "gravity":
		f.p.Gravity = value
	default:
		return fmt.Errorf("unknown parameter: %s", name)
	}
	return nil
}
