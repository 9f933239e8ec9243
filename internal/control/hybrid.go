package control

import (
	"math"

	"github.com/theSadeQ/dip-smc-pso/internal/dynamo"
	"github.com/theSadeQ/dip-smc-pso/internal/plant"
)

// Hybrid combines the super-twisting law with online adaptation of both
// twisting gains. Each run starts from the same seed gains; the estimates
// are owned by the instance and reset between runs.
type Hybrid struct {
	surface Surface
	Gamma1  float64 // adaptation rate for alpha
	Gamma2  float64 // adaptation rate for beta
	uMax    float64
	eq      *equivalent

	alpha0 float64
	beta0  float64

	alpha float64
	beta  float64
	z     float64
	prevT float64
	first bool
	lastU float64
}

// Gain order: [k1, k2, lam1, lam2, gamma1, gamma2].
func NewHybrid(gains []float64, uMax float64, p plant.Params) *Hybrid {
	h := &Hybrid{
		surface: NewSurface(gains[0], gains[1], gains[2], gains[3]),
		Gamma1:  gains[4],
		Gamma2:  gains[5],
		uMax:    uMax,
		eq:      newEquivalent(p),
		alpha0:  1.0,
		beta0:   0.5,
		first:   true,
	}
	h.alpha = h.alpha0
	h.beta = h.beta0
	return h
}

func (c *Hybrid) Compute(x dynamo.State, t float64) dynamo.Control {
	if !validInput(x) {
		return dynamo.Control{c.lastU}
	}

	s := c.surface.Value(x)
	sgn := softSign(s)
	abS := math.Abs(s)

	if c.first {
		c.first = false
	} else if dt := t - c.prevT; dt > 0 {
		c.alpha += (c.Gamma1*abS - adaptLeak*c.alpha) * dt
		c.beta += (c.Gamma2*abS - adaptLeak*c.beta) * dt
		c.alpha = clamp(c.alpha, c.alpha0, c.uMax)
		c.beta = clamp(c.beta, c.beta0, c.uMax)

		c.z += -c.beta * sgn * dt
		c.z = clamp(c.z, -c.uMax, c.uMax)
	}
	c.prevT = t

	ueq, dir := c.eq.compute(c.surface, x)
	u := ueq + dir*(-c.alpha*math.Sqrt(abS)*sgn+c.z)

	u = clamp(u, -c.uMax, c.uMax)
	c.lastU = u
	return dynamo.Control{u}
}

func (c *Hybrid) Reset() {
	c.alpha = c.alpha0
	c.beta = c.beta0
	c.z = 0
	c.first = true
	c.lastU = 0
}

// Gains returns the current twisting gain estimates.
func (c *Hybrid) Gains() (alpha, beta float64) { return c.alpha, c.beta }

func (c *Hybrid) SurfaceValue(x dynamo.State) float64 { return c.surface.Value(x) }
