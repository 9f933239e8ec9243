package control

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/theSadeQ/dip-smc-pso/internal/dynamo"
	"github.com/theSadeQ/dip-smc-pso/internal/plant"
)

// denomFloor guards the equivalent-control division when the surface
// momentarily has no authority over the input.
const denomFloor = 1e-9

// equivalent computes the model-based term u_eq that holds the system on
// the sliding surface. With s = k1*th1 + k2*om1 + lam1*th2 + lam2*om2 and
// M(q)qdd = e1*u + f(q, q'), setting s' = 0 gives
//
//	u_eq = -(k1*om1 + lam1*om2 + k2*v1 + lam2*v2) / (k2*w1 + lam2*w2)
//
// with w = M^-1 e1 and v = M^-1 f. The denominator is the surface's gain
// on the applied force; the switching term has to carry its sign or the
// reaching law pushes s away from zero instead of toward it.
type equivalent struct {
	params plant.Params
	m      *mat.Dense
	rhs    []float64
	e1     []float64
}

func newEquivalent(p plant.Params) *equivalent {
	return &equivalent{
		params: p,
		m:      mat.NewDense(3, 3, nil),
		rhs:    make([]float64, 3),
		e1:     []float64{1, 0, 0},
	}
}

// compute returns u_eq and the input-gain sign at the given state. When
// the denominator is below the floor it returns (0, +1): the caller's
// switching term then acts alone, unsigned.
func (e *equivalent) compute(sf Surface, x dynamo.State) (ueq, dir float64) {
	e.params.AssembleInto(e.m, e.rhs, x)
	w, _ := plant.SolveInertia(e.m, e.e1)
	v, _ := plant.SolveInertia(e.m, e.rhs)

	denom := sf.K2*w[1] + sf.Lam2*w[2]
	if math.Abs(denom) < denomFloor {
		return 0, 1
	}
	num := sf.K1*x[dynamo.IdxOmega1] + sf.Lam1*x[dynamo.IdxOmega2] +
		sf.K2*v[1] + sf.Lam2*v[2]
	return -num / denom, math.Copysign(1, denom)
}
