package dynamo

import (
	"fmt"
	"math"
)

// State index layout for the double inverted pendulum:
// [cart position, cart velocity, theta1, omega1, theta2, omega2].
// Angles are measured counterclockwise from the upright vertical, in
// radians, unwrapped.
const (
	IdxCartPos = 0
	IdxCartVel = 1
	IdxTheta1  = 2
	IdxOmega1  = 3
	IdxTheta2  = 4
	IdxOmega2  = 5

	StateDim = 6
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

type Control []float64

// Force returns the scalar cart force carried by a control sample.
func (c Control) Force() float64 {
	if len(c) == 0 {
		return 0
	}
	return c[0]
}

type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

// Hamiltonian is implemented by systems that expose total mechanical energy.
type Hamiltonian interface {
	Energy(x State) float64
}

type Integrator interface {
	Step(dyn System, x State, u Control, t float64, dt float64) State
}

// AdaptiveIntegrator extends Integrator with an accept/reject trial step.
// StepAdaptive returns the proposed state, the step size to try next, and
// whether the step met the error tolerance. A rejected step leaves the
// caller at (x, t) with a smaller dt to retry. The error return is reserved
// for step-size collapse (ErrStepTooSmall).
type AdaptiveIntegrator interface {
	Integrator
	StepAdaptive(dyn System, x State, u Control, t, dt, tol float64) (next State, dtNext float64, accepted bool, err error)
}

type Controller interface {
	Compute(x State, t float64) Control
	Reset()
}

// Configurable is implemented by plants and controllers that support live
// parameter adjustment.
type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

// Severity of a safety-guard violation.
type Severity int

const (
	SeverityWarn Severity = iota
	SeverityFatal
)

func (s Severity) String() string {
	if s == SeverityFatal {
		return "fatal"
	}
	return "warn"
}

// Violation records a safety-guard breach at one step of a run.
type Violation struct {
	Step     int
	Time     float64
	Kind     string
	Severity Severity
	Message  string
}

func (v Violation) String() string {
	return fmt.Sprintf("step %d (t=%.4f) [%s/%s]: %s", v.Step, v.Time, v.Kind, v.Severity, v.Message)
}

// Status is the terminal status of a simulation run.
type Status int

const (
	StatusCompleted Status = iota
	StatusFatalViolation
	StatusIntegrationFailure
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusFatalViolation:
		return "fatal_violation"
	case StatusIntegrationFailure:
		return "integration_failure"
	default:
		return "unknown"
	}
}

// Config holds the per-run numerical settings shared by the runner.
type Config struct {
	Dt        float64 // control period
	Duration  float64
	Seed      int64
	Tolerance float64 // adaptive error tolerance
	MaxDt     float64
	MinDt     float64
	Adaptive  bool
	Substeps  int // fixed-step subdivisions per control period
}

func DefaultConfig() Config {
	return Config{
		Dt:        0.01,
		Duration:  10.0,
		Tolerance: 1e-6,
		MaxDt:     0.01,
		MinDt:     1e-8,
		Adaptive:  false,
		Substeps:  1,
	}
}

func (c Config) Validate() error {
	if c.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %f", c.Dt)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %f", c.Duration)
	}
	if c.Adaptive && c.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive for adaptive stepping")
	}
	if c.Adaptive && (c.MinDt <= 0 || c.MaxDt < c.MinDt) {
		return fmt.Errorf("adaptive step bounds invalid: min=%g max=%g", c.MinDt, c.MaxDt)
	}
	if c.Substeps < 0 {
		return fmt.Errorf("substeps must be non-negative, got %d", c.Substeps)
	}
	return nil
}

// Trajectory is the (t, x, u) record of one run. Immutable once the run
// ends; batch evaluation discards it after cost extraction.
type Trajectory struct {
	Times    []float64
	States   []State
	Controls []Control
}

// Result bundles a trajectory with its terminal status and fault records.
type Result struct {
	Trajectory  Trajectory
	Status      Status
	FatalKind   string // guard kind for StatusFatalViolation
	Violations  []Violation
	StepsTaken  int
	EnergyDrift float64
	Err         error // underlying error for StatusIntegrationFailure
}
