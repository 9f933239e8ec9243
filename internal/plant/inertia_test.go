package plant

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestSolveInertiaDirect(t *testing.T) {
	m := mat.NewDense(3, 3, []float64{
		4, 1, 0,
		1, 3, 0,
		0, 0, 2,
	})
	rhs := []float64{5, 4, 2}

	out, regime := SolveInertia(m, rhs)

	if regime != RegimeDirect {
		t.Errorf("expected direct regime, got %v", regime)
	}
	// exact solution: x = [1, 1, 1]
	for i, want := range []float64{1, 1, 1} {
		if math.Abs(out[i]-want) > 1e-10 {
			t.Errorf("out[%d] = %g, want %g", i, out[i], want)
		}
	}
}

func TestSolveInertiaTikhonov(t *testing.T) {
	// condition number 1e6: between the direct and pseudo thresholds
	m := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1e-6,
	})
	rhs := []float64{1, 1, 1e-6}

	out, regime := SolveInertia(m, rhs)

	if regime != RegimeTikhonov {
		t.Errorf("expected tikhonov regime, got %v", regime)
	}
	for i, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("non-finite solution component %d", i)
		}
	}
	// well-scaled components stay accurate despite the regularization
	if math.Abs(out[0]-1) > 1e-3 || math.Abs(out[1]-1) > 1e-3 {
		t.Errorf("regularized solve too far off: %v", out)
	}
}

func TestSolveInertiaPseudo(t *testing.T) {
	// exactly singular
	m := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 0,
	})
	rhs := []float64{2, 3, 1}

	out, regime := SolveInertia(m, rhs)

	if regime != RegimePseudo {
		t.Errorf("expected pseudo regime, got %v", regime)
	}
	for i, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("non-finite pseudo-inverse component %d", i)
		}
	}
	// the solvable components come back exactly, the null direction is dropped
	if math.Abs(out[0]-2) > 1e-9 || math.Abs(out[1]-3) > 1e-9 {
		t.Errorf("pseudo-inverse wrong on row space: %v", out)
	}
	if math.Abs(out[2]) > 1e-9 {
		t.Errorf("null-space component should be zero, got %g", out[2])
	}
}

func TestCond(t *testing.T) {
	eye := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	if k := Cond(eye); math.Abs(k-1) > 1e-12 {
		t.Errorf("identity condition number = %g, want 1", k)
	}

	sing := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 0})
	if k := Cond(sing); !math.IsInf(k, 1) {
		t.Errorf("singular matrix condition number = %g, want +Inf", k)
	}
}

func TestRegimeString(t *testing.T) {
	cases := map[Regime]string{
		RegimeDirect:   "direct",
		RegimeTikhonov: "tikhonov",
		RegimePseudo:   "pseudo",
	}
	for regime, want := range cases {
		if regime.String() != want {
			t.Errorf("Regime(%d).String() = %q, want %q", regime, regime.String(), want)
		}
	}
}
