package control

import (
	"math"

	"github.com/theSadeQ/dip-smc-pso/internal/dynamo"
	"github.com/theSadeQ/dip-smc-pso/internal/plant"
)

// SuperTwisting is the continuous second-order sliding mode law on top of
// the equivalent control:
//
//	u = u_eq + dir*(-alpha*sqrt(|s|)*sgn(s) + z),  z' = -beta*sgn(s)
//
// The integral state z is controller state, advanced by forward Euler once
// per control period; the outer integrator already handles the plant.
type SuperTwisting struct {
	surface Surface
	Alpha   float64
	Beta    float64
	uMax    float64
	eq      *equivalent

	z     float64
	prevT float64
	first bool
	lastU float64
}

// Gain order: [k1, k2, lam1, lam2, alpha, beta].
func NewSuperTwisting(gains []float64, uMax float64, p plant.Params) *SuperTwisting {
	return &SuperTwisting{
		surface: NewSurface(gains[0], gains[1], gains[2], gains[3]),
		Alpha:   gains[4],
		Beta:    gains[5],
		uMax:    uMax,
		eq:      newEquivalent(p),
		first:   true,
	}
}

func (c *SuperTwisting) Compute(x dynamo.State, t float64) dynamo.Control {
	if !validInput(x) {
		return dynamo.Control{c.lastU}
	}

	s := c.surface.Value(x)
	sgn := softSign(s)

	if c.first {
		c.first = false
	} else if dt := t - c.prevT; dt > 0 {
		c.z += -c.Beta * sgn * dt
		// anti-windup: the integral term alone can never demand more than
		// the actuator delivers
		c.z = clamp(c.z, -c.uMax, c.uMax)
	}
	c.prevT = t

	ueq, dir := c.eq.compute(c.surface, x)
	u := ueq + dir*(-c.Alpha*math.Sqrt(math.Abs(s))*sgn+c.z)

	u = clamp(u, -c.uMax, c.uMax)
	c.lastU = u
	return dynamo.Control{u}
}

func (c *SuperTwisting) Reset() {
	c.z = 0
	c.first = true
	c.lastU = 0
}

func (c *SuperTwisting) SurfaceValue(x dynamo.State) float64 { return c.surface.Value(x) }
