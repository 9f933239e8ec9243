package integrators

import (
	"math"

	"github.com/theSadeQ/dip-smc-pso/internal/dynamo"
)

// Dormand-Prince 5(4) coefficients.
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

// order of the propagating solution; the PI controller exponents are
// expressed in terms of it.
const rk45Order = 5.0

// RK45 is the embedded Dormand-Prince 5(4) pair with a PI step-size
// controller and FSAL reuse. One instance per trial: the controller memory
// (previous error ratio) and the cached FSAL stage are per-run state.
type RK45 struct {
	safety   float64
	minScale float64
	maxScale float64
	minDt    float64
	maxDt    float64

	// FSAL cache: derivative at the end of the last accepted step.
	fsal      dynamo.State
	fsalState dynamo.State
	fsalT     float64
	fsalU     float64

	// previous accepted error ratio for the PI update
	errPrev float64
}

func NewRK45() *RK45 {
	return &RK45{
		safety:   0.9,
		minScale: 0.2,
		maxScale: 5.0,
		minDt:    1e-8,
		maxDt:    0.01,
		errPrev:  1.0,
	}
}

// SetStepBounds clamps the step sizes the controller may propose.
func (r *RK45) SetStepBounds(minDt, maxDt float64) {
	r.minDt = minDt
	r.maxDt = maxDt
}

// Reset clears the FSAL cache and controller memory between runs.
func (r *RK45) Reset() {
	r.fsal = nil
	r.fsalState = nil
	r.errPrev = 1.0
}

// Step satisfies the fixed-step contract by taking a single trial step and
// keeping the result regardless of the embedded error estimate.
func (r *RK45) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	newX, _, _, _ := r.StepAdaptive(dyn, x, u, t, dt, 1e-6)
	return newX
}

func (r *RK45) StepAdaptive(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt, tol float64) (dynamo.State, float64, bool, error) {
	n := len(x)

	// FSAL: the 7th stage of the previous accepted step is the first stage
	// here whenever we resume from exactly where that step ended.
	var k1 dynamo.State
	if r.fsal != nil && r.fsalT == t && r.fsalU == u.Force() && sameState(r.fsalState, x) {
		k1 = r.fsal
	} else {
		k1 = dyn.Derive(x, u, t).Clone()
	}

	x2 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x2[i] = x[i] + dt*b21*k1[i]
	}
	k2 := dyn.Derive(x2, u, t+a2*dt).Clone()

	x3 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x3[i] = x[i] + dt*(b31*k1[i]+b32*k2[i])
	}
	k3 := dyn.Derive(x3, u, t+a3*dt).Clone()

	x4 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x4[i] = x[i] + dt*(b41*k1[i]+b42*k2[i]+b43*k3[i])
	}
	k4 := dyn.Derive(x4, u, t+a4*dt).Clone()

	x5 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x5[i] = x[i] + dt*(b51*k1[i]+b52*k2[i]+b53*k3[i]+b54*k4[i])
	}
	k5 := dyn.Derive(x5, u, t+a5*dt).Clone()

	x6 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x6[i] = x[i] + dt*(b61*k1[i]+b62*k2[i]+b63*k3[i]+b64*k4[i]+b65*k5[i])
	}
	k6 := dyn.Derive(x6, u, t+dt).Clone()

	xNew := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		xNew[i] = x[i] + dt*(c1*k1[i]+c3*k3[i]+c4*k4[i]+c5*k5[i]+c6*k6[i])
	}

	k7 := dyn.Derive(xNew, u, t+dt).Clone()

	// Scaled max-norm of the difference between the 5th- and embedded
	// 4th-order solutions.
	errMax := 0.0
	for i := 0; i < n; i++ {
		errEst := dt * (dc1*k1[i] + dc3*k3[i] + dc4*k4[i] + dc5*k5[i] + dc6*k6[i] + dc7*k7[i])
		scale := math.Abs(x[i]) + math.Abs(dt*k1[i]) + 1e-10
		errMax = math.Max(errMax, math.Abs(errEst)/scale)
	}

	errRatio := errMax / tol
	if math.IsNaN(errRatio) || math.IsInf(errRatio, 0) {
		errRatio = math.Inf(1)
	}

	if errRatio <= 1 {
		// Accept. PI update: dt * (tol/e)^(0.7/p) * (e_prev/e)^(0.4/p).
		scale := r.maxScale
		if errRatio > 0 {
			scale = r.safety *
				math.Pow(errRatio, -0.7/rk45Order) *
				math.Pow(r.errPrev/errRatio, 0.4/rk45Order)
		}
		scale = clampScale(scale, r.minScale, r.maxScale)
		dtNext := math.Min(dt*scale, r.maxDt)
		if errRatio > 0 {
			r.errPrev = errRatio
		}

		r.fsal = k7
		r.fsalState = xNew.Clone()
		r.fsalT = t + dt
		r.fsalU = u.Force()

		return xNew, dtNext, true, nil
	}

	// Reject: shrink and retry from (x, t).
	scale := clampScale(r.safety*math.Pow(errRatio, -1.0/rk45Order), r.minScale, 1.0)
	dtNext := dt * scale
	if dtNext < r.minDt {
		return x, dtNext, false, dynamo.ErrStepTooSmall
	}
	return x, dtNext, false, nil
}

func clampScale(s, lo, hi float64) float64 {
	if math.IsNaN(s) || s < lo {
		return lo
	}
	if s > hi {
		return hi
	}
	return s
}

func sameState(a, b dynamo.State) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
