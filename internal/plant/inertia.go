package plant

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Conditioning thresholds for the inertia solve. Below CondDirect the mass
// matrix is inverted directly; between the two bounds a Tikhonov term
// proportional to kappa is added; at or above CondPseudo the solve goes
// through a truncated-SVD pseudo-inverse. Naive inversion near singular
// configurations (both links horizontal) silently produces divergent
// trajectories, so the fallback chain is not optional.
const (
	CondDirect = 1e3
	CondPseudo = 1e10

	// Singular values below svTruncate*sigmaMax are truncated in the
	// pseudo-inverse tier.
	svTruncate = 1e-10

	// Upper bound on the Tikhonov term relative to sigmaMax.
	maxTikhonov = 1e-4
)

// Regime identifies which tier of the inertia solver handled a solve.
type Regime int

const (
	RegimeDirect Regime = iota
	RegimeTikhonov
	RegimePseudo
)

func (r Regime) String() string {
	switch r {
	case RegimeDirect:
		return "direct"
	case RegimeTikhonov:
		return "tikhonov"
	default:
		return "pseudo"
	}
}

// SolveInertia solves M*qdd = rhs for a symmetric positive-definite (in the
// admissible region) mass matrix, selecting the tier from the condition
// number of M. The returned slice is freshly allocated and always finite
// unless rhs itself is not.
func SolveInertia(m *mat.Dense, rhs []float64) ([]float64, Regime) {
	n := len(rhs)

	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDThin); !ok {
		return pseudoSolve(nil, m, rhs), RegimePseudo
	}
	sv := svd.Values(nil)
	sigmaMax := sv[0]
	sigmaMin := sv[len(sv)-1]

	kappa := math.Inf(1)
	if sigmaMin > 0 {
		kappa = sigmaMax / sigmaMin
	}

	switch {
	case kappa < CondDirect:
		if out, ok := directSolve(m, rhs); ok {
			return out, RegimeDirect
		}
		return pseudoSolve(&svd, m, rhs), RegimePseudo

	case kappa < CondPseudo:
		lambda := sigmaMax * kappa / CondPseudo
		if cap := sigmaMax * maxTikhonov; lambda > cap {
			lambda = cap
		}
		reg := mat.NewDense(n, n, nil)
		reg.Copy(m)
		for i := 0; i < n; i++ {
			reg.Set(i, i, reg.At(i, i)+lambda)
		}
		if out, ok := directSolve(reg, rhs); ok {
			return out, RegimeTikhonov
		}
		return pseudoSolve(&svd, m, rhs), RegimePseudo

	default:
		return pseudoSolve(&svd, m, rhs), RegimePseudo
	}
}

// Cond returns the 2-norm condition number of m.
func Cond(m *mat.Dense) float64 {
	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDNone); !ok {
		return math.Inf(1)
	}
	sv := svd.Values(nil)
	if sv[len(sv)-1] <= 0 {
		return math.Inf(1)
	}
	return sv[0] / sv[len(sv)-1]
}

func directSolve(m *mat.Dense, rhs []float64) ([]float64, bool) {
	b := mat.NewVecDense(len(rhs), rhs)
	var x mat.VecDense
	if err := x.SolveVec(m, b); err != nil {
		return nil, false
	}
	out := make([]float64, len(rhs))
	for i := range out {
		out[i] = x.AtVec(i)
	}
	return out, true
}

// pseudoSolve computes V * Sigma^+ * U^T * rhs, truncating singular values
// below svTruncate*sigmaMax.
func pseudoSolve(svd *mat.SVD, m *mat.Dense, rhs []float64) []float64 {
	n := len(rhs)
	out := make([]float64, n)

	if svd == nil {
		var fresh mat.SVD
		if ok := fresh.Factorize(m, mat.SVDThin); !ok {
			return out
		}
		svd = &fresh
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	sv := svd.Values(nil)
	if len(sv) == 0 || sv[0] == 0 {
		return out
	}
	tol := sv[0] * svTruncate

	// out = sum_i (u_i . rhs) / sigma_i * v_i over retained singular values.
	for i, sigma := range sv {
		if sigma <= tol {
			continue
		}
		dot := 0.0
		for r := 0; r < n; r++ {
			dot += u.At(r, i) * rhs[r]
		}
		scale := dot / sigma
		for r := 0; r < n; r++ {
			out[r] += scale * v.At(r, i)
		}
	}
	return out
}
