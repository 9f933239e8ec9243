// Package cost converts a closed-loop trajectory into a scalar fitness
// value for the optimizer.
package cost

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"github.com/theSadeQ/dip-smc-pso/internal/dynamo"
)

// Sentinel is the worst-finite cost assigned to fatally unstable trials.
// Every particle must produce a finite, comparable cost every iteration;
// +Inf or NaN would break swarm ranking.
const Sentinel = 1e12

// Weights for the fitness components. Violation is a fixed magnitude per
// non-fatal violation count, not scaled by severity or duration.
type Weights struct {
	Tracking   float64 `yaml:"tracking"`
	Effort     float64 `yaml:"effort"`
	Chattering float64 `yaml:"chattering"`
	Violation  float64 `yaml:"violation"`
}

func DefaultWeights() Weights {
	return Weights{
		Tracking:   50.0,
		Effort:     0.1,
		Chattering: 1.0,
		Violation:  100.0,
	}
}

// Breakdown reports the cost with its diagnostic components.
type Breakdown struct {
	Tracking   float64
	Effort     float64
	Chattering float64
	Penalty    float64
	Total      float64
	Fatal      bool
}

// Evaluator scores trajectories. ChatterCutoffHz separates legitimate
// control action from the high-frequency band counted as chattering.
type Evaluator struct {
	W               Weights
	ChatterCutoffHz float64
}

func NewEvaluator(w Weights) *Evaluator {
	return &Evaluator{W: w, ChatterCutoffHz: 10.0}
}

// Evaluate maps a run result to a finite cost. dt is the control period
// the trajectory was sampled at.
func (e *Evaluator) Evaluate(res *dynamo.Result, dt float64) Breakdown {
	if res == nil || res.Status != dynamo.StatusCompleted {
		return Breakdown{Total: Sentinel, Fatal: true}
	}

	traj := res.Trajectory
	var iae, effort float64
	for _, x := range traj.States {
		if len(x) < dynamo.StateDim {
			continue
		}
		iae += (math.Abs(x[dynamo.IdxTheta1]) + math.Abs(x[dynamo.IdxTheta2])) * dt
	}
	forces := make([]float64, len(traj.Controls))
	for i, u := range traj.Controls {
		f := u.Force()
		forces[i] = f
		effort += f * f * dt
	}

	chat := e.chatterPower(forces, dt)
	penalty := e.W.Violation * float64(nonFatalCount(res))

	b := Breakdown{
		Tracking:   e.W.Tracking * iae,
		Effort:     e.W.Effort * effort,
		Chattering: e.W.Chattering * chat,
		Penalty:    penalty,
	}
	b.Total = b.Tracking + b.Effort + b.Chattering + b.Penalty
	if math.IsNaN(b.Total) || math.IsInf(b.Total, 0) || b.Total > Sentinel {
		b.Total = Sentinel
		b.Fatal = true
	}
	return b
}

// chatterPower is the mean spectral power of the control signal above the
// cutoff frequency. Short records fall back to squared differencing, which
// measures the same high-frequency energy without the spectral resolution.
func (e *Evaluator) chatterPower(u []float64, dt float64) float64 {
	if len(u) < 2 || dt <= 0 {
		return 0
	}
	if len(u) < 16 {
		return diffPower(u, dt)
	}

	n := nextPow2(len(u))
	padded := make([]float64, n)
	copy(padded, u)

	spectrum := fft.FFTReal(padded)

	cutoffBin := int(e.ChatterCutoffHz * float64(n) * dt)
	if cutoffBin < 1 {
		cutoffBin = 1
	}
	if cutoffBin >= n/2 {
		return 0
	}

	power := 0.0
	for k := cutoffBin; k < n/2; k++ {
		mag := cmplx.Abs(spectrum[k])
		power += mag * mag
	}
	return power / float64(n*len(u))
}

func diffPower(u []float64, dt float64) float64 {
	sum := 0.0
	for i := 1; i < len(u); i++ {
		d := (u[i] - u[i-1]) / dt
		sum += d * d
	}
	return sum / float64(len(u)-1)
}

func nonFatalCount(res *dynamo.Result) int {
	n := 0
	for _, v := range res.Violations {
		if v.Severity != dynamo.SeverityFatal {
			n++
		}
	}
	return n
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
