package control

import (
	"math"

	"github.com/theSadeQ/dip-smc-pso/internal/dynamo"
)

// Surface is the linear sliding surface shared by all SMC variants.
type Surface struct {
	K1, K2     float64 // first link: angle, angular velocity
	Lam1, Lam2 float64 // second link: angle, angular velocity
}

func NewSurface(k1, k2, lam1, lam2 float64) Surface {
	return Surface{K1: k1, K2: k2, Lam1: lam1, Lam2: lam2}
}

// Value computes s at the given state.
func (sf Surface) Value(x dynamo.State) float64 {
	return sf.K1*x[dynamo.IdxTheta1] +
		sf.K2*x[dynamo.IdxOmega1] +
		sf.Lam1*x[dynamo.IdxTheta2] +
		sf.Lam2*x[dynamo.IdxOmega2]
}

// SurfaceReporter is implemented by controllers that expose their last
// computed surface value for analysis and tests.
type SurfaceReporter interface {
	SurfaceValue(x dynamo.State) float64
}

// boundary is the continuous sign approximation used inside a boundary
// layer of width eps.
func boundary(s, eps float64) float64 {
	return math.Tanh(s / eps)
}

// signWidth is the fixed boundary width used where the algorithm calls for
// sign(s); a strict sign would re-introduce the chattering the variants
// exist to suppress.
const signWidth = 0.01

func softSign(s float64) float64 {
	return math.Tanh(s / signWidth)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// validInput reports whether the state is usable by a controller.
func validInput(x dynamo.State) bool {
	return len(x) >= dynamo.StateDim && x.IsValid()
}
