package control

import (
	"fmt"

	"github.com/theSadeQ/dip-smc-pso/internal/dynamo"
	"github.com/theSadeQ/dip-smc-pso/internal/plant"
)

// Type tags the closed set of controller variants.
type Type string

const (
	TypeClassical     Type = "classical"
	TypeSuperTwisting Type = "sta"
	TypeAdaptive      Type = "adaptive"
	TypeHybrid        Type = "hybrid"
)

// DefaultMaxForce is the actuator saturation used when the caller does not
// configure one.
const DefaultMaxForce = 100.0

// Types lists every known controller type.
func Types() []Type {
	return []Type{TypeClassical, TypeSuperTwisting, TypeAdaptive, TypeHybrid}
}

// GainCount returns the expected gain-vector length for a type.
func GainCount(t Type) (int, error) {
	switch t {
	case TypeClassical, TypeSuperTwisting, TypeAdaptive, TypeHybrid:
		return 6, nil
	default:
		return 0, fmt.Errorf("unknown controller type: %q", t)
	}
}

// New builds a controller of the given type from a gain vector and the
// plant parameters its model-based term reads. This is the optimizer's
// integration point: every PSO fitness evaluation goes through here with
// a candidate gain vector.
func New(t Type, gains []float64, uMax float64, p plant.Params) (dynamo.Controller, error) {
	want, err := GainCount(t)
	if err != nil {
		return nil, err
	}
	if len(gains) != want {
		return nil, fmt.Errorf("%w: controller %q expects %d gains, got %d",
			dynamo.ErrGainCount, t, want, len(gains))
	}
	for i, g := range gains {
		if g <= 0 {
			return nil, fmt.Errorf("%w: gain %d must be positive, got %g",
				dynamo.ErrParameterBounds, i, g)
		}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if uMax <= 0 {
		uMax = DefaultMaxForce
	}

	switch t {
	case TypeClassical:
		return NewClassical(gains, uMax, p), nil
	case TypeSuperTwisting:
		return NewSuperTwisting(gains, uMax, p), nil
	case TypeAdaptive:
		return NewAdaptive(gains, uMax, p), nil
	default:
		return NewHybrid(gains, uMax, p), nil
	}
}
