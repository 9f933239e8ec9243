package plant

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/theSadeQ/dip-smc-pso/internal/dynamo"
)

const (
	DefaultCartMass   = 1.5
	DefaultMass1      = 0.2
	DefaultMass2      = 0.15
	DefaultLength1    = 0.4
	DefaultLength2    = 0.3
	DefaultGravity    = 9.81
	DefaultCartDamp   = 0.1
	DefaultJointDamp1 = 0.01
	DefaultJointDamp2 = 0.01
)

// Params holds the physical parameters of the cart and both links.
// Immutable per simulation run; shared read-only with model-based
// controller terms.
type Params struct {
	CartMass       float64 // m0
	Mass1          float64 // m1, first link
	Mass2          float64 // m2, second link
	Length1        float64 // L1, full length of the first link
	Length2        float64 // L2, full length of the second link
	Com1           float64 // l1, pivot to center of mass of link 1
	Com2           float64 // l2, joint to center of mass of link 2
	Inertia1       float64 // I1 about the center of mass
	Inertia2       float64 // I2 about the center of mass
	Gravity        float64
	CartFriction   float64 // viscous, on cart velocity
	Joint1Friction float64 // viscous, on omega1
	Joint2Friction float64 // viscous, on omega2
}

// DefaultParams returns a light two-link plant with uniform rods
// (l = L/2, I = mL^2/12).
func DefaultParams() Params {
	p := Params{
		CartMass:       DefaultCartMass,
		Mass1:          DefaultMass1,
		Mass2:          DefaultMass2,
		Length1:        DefaultLength1,
		Length2:        DefaultLength2,
		Gravity:        DefaultGravity,
		CartFriction:   DefaultCartDamp,
		Joint1Friction: DefaultJointDamp1,
		Joint2Friction: DefaultJointDamp2,
	}
	p.Com1 = p.Length1 / 2
	p.Com2 = p.Length2 / 2
	p.Inertia1 = p.Mass1 * p.Length1 * p.Length1 / 12
	p.Inertia2 = p.Mass2 * p.Length2 * p.Length2 / 12
	return p
}

func (p Params) Validate() error {
	checks := []struct {
		name string
		val  float64
	}{
		{"cart mass", p.CartMass},
		{"mass1", p.Mass1},
		{"mass2", p.Mass2},
		{"length1", p.Length1},
		{"length2", p.Length2},
		{"com1", p.Com1},
		{"com2", p.Com2},
		{"gravity", p.Gravity},
	}
	for _, c := range checks {
		if c.val <= 0 {
			return fmt.Errorf("%w: %s = %g", dynamo.ErrParameterBounds, c.name, c.val)
		}
	}
	if p.Inertia1 < 0 || p.Inertia2 < 0 {
		return fmt.Errorf("%w: negative link inertia", dynamo.ErrParameterBounds)
	}
	if p.Com1 > p.Length1 || p.Com2 > p.Length2 {
		return fmt.Errorf("%w: center of mass beyond link length", dynamo.ErrParameterBounds)
	}
	if p.CartFriction < 0 || p.Joint1Friction < 0 || p.Joint2Friction < 0 {
		return fmt.Errorf("%w: negative friction coefficient", dynamo.ErrParameterBounds)
	}
	return nil
}

// Derived lumped terms used in every M/C/G assembly.
func (p Params) h1() float64 { return p.Mass1*p.Com1 + p.Mass2*p.Length1 }
func (p Params) h2() float64 { return p.Mass2 * p.Com2 }

// j1 and j2 are the effective rotational inertias about pivot and joint.
func (p Params) j1() float64 {
	return p.Inertia1 + p.Mass1*p.Com1*p.Com1 + p.Mass2*p.Length1*p.Length1
}
func (p Params) j2() float64 { return p.Inertia2 + p.Mass2*p.Com2*p.Com2 }

func (p Params) totalMass() float64 { return p.CartMass + p.Mass1 + p.Mass2 }

// AssembleInto fills m with the inertia matrix M(q) and rhs with the
// control-free forcing -C(q,q')q' - G(q) - Fq' at the given state. The
// applied force enters the cart row separately (rhs[0] += u); keeping the
// assembly control-free lets model-based controller terms share it.
func (p Params) AssembleInto(m *mat.Dense, rhs []float64, x dynamo.State) {
	vel := x[dynamo.IdxCartVel]
	th1 := x[dynamo.IdxTheta1]
	om1 := x[dynamo.IdxOmega1]
	th2 := x[dynamo.IdxTheta2]
	om2 := x[dynamo.IdxOmega2]

	h1, h2 := p.h1(), p.h2()
	s1, c1 := math.Sincos(th1)
	s2, c2 := math.Sincos(th2)
	s12 := math.Sin(th1 - th2)
	c12 := math.Cos(th1 - th2)
	coupling := p.Mass2 * p.Length1 * p.Com2

	m.Set(0, 0, p.totalMass())
	m.Set(0, 1, -h1*c1)
	m.Set(0, 2, -h2*c2)
	m.Set(1, 0, -h1*c1)
	m.Set(1, 1, p.j1())
	m.Set(1, 2, coupling*c12)
	m.Set(2, 0, -h2*c2)
	m.Set(2, 1, coupling*c12)
	m.Set(2, 2, p.j2())

	rhs[0] = -(h1*s1*om1*om1 + h2*s2*om2*om2) - p.CartFriction*vel
	rhs[1] = -coupling*s12*om2*om2 + h1*p.Gravity*s1 - p.Joint1Friction*om1
	rhs[2] = coupling*s12*om1*om1 + h2*p.Gravity*s2 - p.Joint2Friction*om2
}
