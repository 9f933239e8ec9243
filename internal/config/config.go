// Package config loads, validates and materializes run configuration.
// Validation happens before any simulation starts; the core packages never
// see malformed parameters.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/theSadeQ/dip-smc-pso/internal/control"
	"github.com/theSadeQ/dip-smc-pso/internal/cost"
	"github.com/theSadeQ/dip-smc-pso/internal/dynamo"
	"github.com/theSadeQ/dip-smc-pso/internal/faults"
	"github.com/theSadeQ/dip-smc-pso/internal/integrators"
	"github.com/theSadeQ/dip-smc-pso/internal/plant"
	"github.com/theSadeQ/dip-smc-pso/internal/pso"
)

const (
	DefaultDt       = 0.01
	DefaultDuration = 10.0
	DefaultTheta    = 0.1
)

type Config struct {
	Model      string    `yaml:"model"`      // full | linear | lowrank
	Integrator string    `yaml:"integrator"` // euler | rk4 | rk45
	Controller string    `yaml:"controller"` // classical | sta | adaptive | hybrid
	Gains      []float64 `yaml:"gains"`
	MaxForce   float64   `yaml:"max_force"`

	Dt        float64 `yaml:"dt"`
	Duration  float64 `yaml:"duration"`
	Seed      int64   `yaml:"seed"`
	Adaptive  bool    `yaml:"adaptive"`
	Tolerance float64 `yaml:"tolerance"`
	MinDt     float64 `yaml:"min_dt"`
	MaxDt     float64 `yaml:"max_dt"`
	Substeps  int     `yaml:"substeps"`

	InitState InitStateConfig         `yaml:"init_state"`
	Plant     PlantConfig             `yaml:"plant"`
	Guards    GuardConfig             `yaml:"guards"`
	Cost      cost.Weights            `yaml:"cost"`
	PSO       pso.Options             `yaml:"pso"`
	Bounds    map[string]BoundsConfig `yaml:"gain_bounds"`
	Faults    FaultsConfig            `yaml:"faults"`
}

type InitStateConfig struct {
	Pos    float64 `yaml:"pos"`
	Vel    float64 `yaml:"vel"`
	Theta1 float64 `yaml:"theta1"`
	Omega1 float64 `yaml:"omega1"`
	Theta2 float64 `yaml:"theta2"`
	Omega2 float64 `yaml:"omega2"`
}

type PlantConfig struct {
	CartMass       float64 `yaml:"cart_mass"`
	Mass1          float64 `yaml:"mass1"`
	Mass2          float64 `yaml:"mass2"`
	Length1        float64 `yaml:"length1"`
	Length2        float64 `yaml:"length2"`
	Gravity        float64 `yaml:"gravity"`
	CartFriction   float64 `yaml:"cart_friction"`
	Joint1Friction float64 `yaml:"joint1_friction"`
	Joint2Friction float64 `yaml:"joint2_friction"`
}

type GuardConfig struct {
	MaxCartPos float64 `yaml:"max_cart_pos"`
	MaxCartVel float64 `yaml:"max_cart_vel"`
	MaxAngular float64 `yaml:"max_angular"`
	EnergyEps  float64 `yaml:"energy_eps"`
	Fatal      bool    `yaml:"fatal"`
}

type BoundsConfig struct {
	Lo []float64 `yaml:"lo"`
	Hi []float64 `yaml:"hi"`
}

type FaultsConfig struct {
	Sensor   []faults.Spec `yaml:"sensor"`
	Actuator []faults.Spec `yaml:"actuator"`
}

func DefaultConfig() *Config {
	p := plant.DefaultParams()
	return &Config{
		Model:      "full",
		Integrator: "rk4",
		Controller: "classical",
		Gains:      []float64{4, 1, 48, 3, 12, 0.3},
		MaxForce:   control.DefaultMaxForce,
		Dt:         DefaultDt,
		Duration:   DefaultDuration,
		Tolerance:  1e-6,
		MinDt:      1e-8,
		MaxDt:      DefaultDt,
		Substeps:   1,
		InitState:  InitStateConfig{Theta1: DefaultTheta, Theta2: DefaultTheta},
		Plant: PlantConfig{
			CartMass:       p.CartMass,
			Mass1:          p.Mass1,
			Mass2:          p.Mass2,
			Length1:        p.Length1,
			Length2:        p.Length2,
			Gravity:        p.Gravity,
			CartFriction:   p.CartFriction,
			Joint1Friction: p.Joint1Friction,
			Joint2Friction: p.Joint2Friction,
		},
		Guards: GuardConfig{
			MaxCartPos: 10.0,
			MaxCartVel: 20.0,
			MaxAngular: 50.0,
			EnergyEps:  5.0,
			Fatal:      false,
		},
		Cost:   cost.DefaultWeights(),
		PSO:    pso.DefaultOptions(),
		Bounds: DefaultGainBounds(),
	}
}

// DefaultGains returns a stabilizing gain vector for the given controller
// type, nil when the type is unknown. The surface weights put most of the
// authority on the second link; a surface that weights the first link
// harder has an unstable zero through the cart coupling and cannot be
// stabilized no matter the switching gain.
func DefaultGains(ctrl string) []float64 {
	switch control.Type(ctrl) {
	case control.TypeClassical:
		return []float64{4, 1, 48, 3, 12, 0.3}
	case control.TypeSuperTwisting:
		return []float64{4, 1, 48, 3, 6, 10}
	case control.TypeAdaptive:
		return []float64{4, 1, 48, 3, 5, 0.3}
	case control.TypeHybrid:
		return []float64{4, 1, 48, 3, 4, 1}
	default:
		return nil
	}
}

// DefaultGainBounds is the documented search box per controller type.
// Order matches the factory gain order for each variant.
func DefaultGainBounds() map[string]BoundsConfig {
	wide := BoundsConfig{
		Lo: []float64{0.05, 0.05, 0.05, 0.05, 0.5, 0.05},
		Hi: []float64{50, 50, 50, 50, 100, 10},
	}
	adaptive := BoundsConfig{
		Lo: []float64{0.05, 0.05, 0.05, 0.05, 0.1, 0.05},
		Hi: []float64{50, 50, 50, 50, 20, 10},
	}
	return map[string]BoundsConfig{
		string(control.TypeClassical):     wide,
		string(control.TypeSuperTwisting): {Lo: wide.Lo, Hi: []float64{50, 50, 50, 50, 50, 20}},
		string(control.TypeAdaptive):      adaptive,
		string(control.TypeHybrid):        adaptive,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if err := c.SimConfig().Validate(); err != nil {
		return err
	}
	if err := c.PlantParams().Validate(); err != nil {
		return err
	}
	switch c.Model {
	case "full", "linear", "lowrank":
	default:
		return fmt.Errorf("unknown model: %q", c.Model)
	}
	switch c.Integrator {
	case "euler", "rk4", "rk45":
	default:
		return fmt.Errorf("unknown integrator: %q", c.Integrator)
	}
	want, err := control.GainCount(control.Type(c.Controller))
	if err != nil {
		return err
	}
	if len(c.Gains) != want {
		return fmt.Errorf("%w: controller %q expects %d gains, got %d",
			dynamo.ErrGainCount, c.Controller, want, len(c.Gains))
	}
	if b, ok := c.Bounds[c.Controller]; ok {
		if len(b.Lo) != want || len(b.Hi) != want {
			return fmt.Errorf("gain bounds for %q must have %d entries", c.Controller, want)
		}
		for i := range b.Lo {
			if b.Lo[i] >= b.Hi[i] {
				return fmt.Errorf("gain bound %d for %q is empty: [%g, %g]", i, c.Controller, b.Lo[i], b.Hi[i])
			}
		}
	}
	if c.PSO.SwarmSize > 0 {
		if err := c.PSO.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) SimConfig() dynamo.Config {
	return dynamo.Config{
		Dt:        c.Dt,
		Duration:  c.Duration,
		Seed:      c.Seed,
		Tolerance: c.Tolerance,
		MaxDt:     c.MaxDt,
		MinDt:     c.MinDt,
		Adaptive:  c.Adaptive,
		Substeps:  c.Substeps,
	}
}

func (c *Config) PlantParams() plant.Params {
	p := plant.Params{
		CartMass:       c.Plant.CartMass,
		Mass1:          c.Plant.Mass1,
		Mass2:          c.Plant.Mass2,
		Length1:        c.Plant.Length1,
		Length2:        c.Plant.Length2,
		Gravity:        c.Plant.Gravity,
		CartFriction:   c.Plant.CartFriction,
		Joint1Friction: c.Plant.Joint1Friction,
		Joint2Friction: c.Plant.Joint2Friction,
	}
	p.Com1 = p.Length1 / 2
	p.Com2 = p.Length2 / 2
	p.Inertia1 = p.Mass1 * p.Length1 * p.Length1 / 12
	p.Inertia2 = p.Mass2 * p.Length2 * p.Length2 / 12
	return p
}

func (c *Config) InitStateVector() dynamo.State {
	return dynamo.State{
		c.InitState.Pos, c.InitState.Vel,
		c.InitState.Theta1, c.InitState.Omega1,
		c.InitState.Theta2, c.InitState.Omega2,
	}
}

// BuildPlant constructs the configured dynamics model.
func (c *Config) BuildPlant() (dynamo.System, error) {
	p := c.PlantParams()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	switch c.Model {
	case "linear":
		return plant.NewLinear(p), nil
	case "lowrank":
		return plant.NewLowRank(p), nil
	default:
		return plant.NewFull(p), nil
	}
}

// BuildIntegrator constructs the configured stepper.
func (c *Config) BuildIntegrator() (dynamo.Integrator, error) {
	switch c.Integrator {
	case "euler":
		return integrators.NewEuler(), nil
	case "rk4":
		return integrators.NewRK4(), nil
	case "rk45":
		r := integrators.NewRK45()
		if c.MinDt > 0 && c.MaxDt > 0 {
			r.SetStepBounds(c.MinDt, c.MaxDt)
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown integrator: %q", c.Integrator)
	}
}

// BuildController constructs the configured controller with the given
// gains (or the configured gains when nil), wrapped with fault injection
// when a fault scenario is configured.
func (c *Config) BuildController(gains []float64) (dynamo.Controller, error) {
	if gains == nil {
		gains = c.Gains
	}
	ctrl, err := control.New(control.Type(c.Controller), gains, c.MaxForce, c.PlantParams())
	if err != nil {
		return nil, err
	}
	if len(c.Faults.Sensor) == 0 && len(c.Faults.Actuator) == 0 {
		return ctrl, nil
	}
	var sensor *faults.SensorInjector
	var act *faults.ActuatorInjector
	if len(c.Faults.Sensor) > 0 {
		sensor = faults.NewSensorInjector(c.Faults.Sensor, c.Seed)
	}
	if len(c.Faults.Actuator) > 0 {
		act = faults.NewActuatorInjector(c.Faults.Actuator)
	}
	return faults.Wrap(ctrl, sensor, act), nil
}

// GainBounds returns the PSO search box for the configured controller.
func (c *Config) GainBounds() (pso.Bounds, error) {
	b, ok := c.Bounds[c.Controller]
	if !ok {
		b, ok = DefaultGainBounds()[c.Controller]
		if !ok {
			return pso.Bounds{}, fmt.Errorf("no gain bounds for controller %q", c.Controller)
		}
	}
	return pso.Bounds{Lo: b.Lo, Hi: b.Hi}, nil
}

func (c *Config) GuardSeverity() dynamo.Severity {
	if c.Guards.Fatal {
		return dynamo.SeverityFatal
	}
	return dynamo.SeverityWarn
}
