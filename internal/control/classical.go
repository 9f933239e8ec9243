package control

import (
	"github.com/theSadeQ/dip-smc-pso/internal/dynamo"
	"github.com/theSadeQ/dip-smc-pso/internal/plant"
)

// Classical is boundary-layer sliding mode control with a model-based
// equivalent term: u = u_eq - dir*K*tanh(s/eps), dir the input-gain sign.
type Classical struct {
	surface Surface
	K       float64
	Eps     float64 // boundary-layer width
	uMax    float64
	eq      *equivalent

	lastU float64
}

// Gain order: [k1, k2, lam1, lam2, K, eps].
func NewClassical(gains []float64, uMax float64, p plant.Params) *Classical {
	return &Classical{
		surface: NewSurface(gains[0], gains[1], gains[2], gains[3]),
		K:       gains[4],
		Eps:     gains[5],
		uMax:    uMax,
		eq:      newEquivalent(p),
	}
}

func (c *Classical) Compute(x dynamo.State, t float64) dynamo.Control {
	if !validInput(x) {
		return dynamo.Control{c.lastU}
	}

	s := c.surface.Value(x)
	ueq, dir := c.eq.compute(c.surface, x)
	u := ueq - dir*c.K*boundary(s, c.Eps)

	u = clamp(u, -c.uMax, c.uMax)
	c.lastU = u
	return dynamo.Control{u}
}

func (c *Classical) Reset() { c.lastU = 0 }

func (c *Classical) SurfaceValue(x dynamo.State) float64 { return c.surface.Value(x) }
