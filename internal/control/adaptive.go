package control

import (
	"math"

	"github.com/theSadeQ/dip-smc-pso/internal/dynamo"
	"github.com/theSadeQ/dip-smc-pso/internal/plant"
)

// adaptation leak: prevents unbounded gain growth under persistent
// excitation (K' = gamma*|s| - leak*K).
const adaptLeak = 0.1

// Adaptive is boundary-layer SMC with an online switching gain. The gain
// estimate persists across control steps within one run and resets between
// runs.
type Adaptive struct {
	surface Surface
	Gamma   float64
	Eps     float64
	uMax    float64
	eq      *equivalent

	kInit float64
	kMax  float64

	k     float64
	prevT float64
	first bool
	lastU float64
}

// Gain order: [k1, k2, lam1, lam2, gamma, eps].
func NewAdaptive(gains []float64, uMax float64, p plant.Params) *Adaptive {
	a := &Adaptive{
		surface: NewSurface(gains[0], gains[1], gains[2], gains[3]),
		Gamma:   gains[4],
		Eps:     gains[5],
		uMax:    uMax,
		eq:      newEquivalent(p),
		kInit:   1.0,
		kMax:    uMax,
		first:   true,
	}
	a.k = a.kInit
	return a
}

func (c *Adaptive) Compute(x dynamo.State, t float64) dynamo.Control {
	if !validInput(x) {
		return dynamo.Control{c.lastU}
	}

	s := c.surface.Value(x)

	if c.first {
		c.first = false
	} else if dt := t - c.prevT; dt > 0 {
		c.k += (c.Gamma*math.Abs(s) - adaptLeak*c.k) * dt
		c.k = clamp(c.k, c.kInit, c.kMax)
	}
	c.prevT = t

	// clamp only the final output; clamping K before the law corrupts the
	// adaptation feedback
	ueq, dir := c.eq.compute(c.surface, x)
	u := ueq - dir*c.k*boundary(s, c.Eps)

	u = clamp(u, -c.uMax, c.uMax)
	c.lastU = u
	return dynamo.Control{u}
}

func (c *Adaptive) Reset() {
	c.k = c.kInit
	c.first = true
	c.lastU = 0
}

// Gain returns the current adaptive gain estimate.
func (c *Adaptive) Gain() float64 { return c.k }

func (c *Adaptive) SurfaceValue(x dynamo.State) float64 { return c.surface.Value(x) }
