package config

import (
	"github.com/theSadeQ/dip-smc-pso/internal/dynamo"
	"github.com/theSadeQ/dip-smc-pso/internal/faults"
)

// preset builds a named scenario on top of the defaults.
func preset(mutate func(*Config)) *Config {
	cfg := DefaultConfig()
	mutate(cfg)
	return cfg
}

var Presets = map[string]*Config{
	// classical controller, small initial tilt
	"stabilize": preset(func(c *Config) {}),

	// larger initial tilt, still inside the attraction region. The surface
	// carries no cart terms, so recovering from a big tilt leaves the cart
	// with residual velocity; the horizon stays short of the track bound.
	"disturbed": preset(func(c *Config) {
		c.InitState = InitStateConfig{Theta1: 0.2, Theta2: 0.15}
		c.Duration = 10.0
	}),

	// adaptive step size with the Dormand-Prince pair
	"adaptive-step": preset(func(c *Config) {
		c.Integrator = "rk45"
		c.Adaptive = true
		c.Tolerance = 1e-7
	}),

	"sta": preset(func(c *Config) {
		c.Controller = "sta"
		c.Gains = DefaultGains("sta")
	}),

	"adaptive-gain": preset(func(c *Config) {
		c.Controller = "adaptive"
		c.Gains = DefaultGains("adaptive")
	}),

	"hybrid": preset(func(c *Config) {
		c.Controller = "hybrid"
		c.Gains = DefaultGains("hybrid")
	}),

	// noisy angle sensors from t=2s onward
	"sensor-noise": preset(func(c *Config) {
		c.Faults.Sensor = []faults.Spec{
			{Kind: faults.KindNoise, Magnitude: 0.01, Onset: 2.0, Channel: dynamo.IdxTheta1},
			{Kind: faults.KindNoise, Magnitude: 0.01, Onset: 2.0, Channel: dynamo.IdxTheta2},
		}
	}),

	// actuator delay of 40ms for the middle of the run
	"actuator-delay": preset(func(c *Config) {
		c.Faults.Actuator = []faults.Spec{
			{Kind: faults.KindDelay, Magnitude: 0.04, Onset: 2.0, Duration: 4.0},
		}
	}),
}

// ListPresets returns the preset names in no particular order.
func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	return names
}

// GetPreset returns a copy of the named preset, nil when unknown. Slices
// and maps are copied too: callers mutate the result without corrupting
// the registry entry for later lookups.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	out := *cfg
	out.Gains = append([]float64(nil), cfg.Gains...)
	out.Faults.Sensor = append([]faults.Spec(nil), cfg.Faults.Sensor...)
	out.Faults.Actuator = append([]faults.Spec(nil), cfg.Faults.Actuator...)
	if cfg.Bounds != nil {
		out.Bounds = make(map[string]BoundsConfig, len(cfg.Bounds))
		for name, b := range cfg.Bounds {
			out.Bounds[name] = BoundsConfig{
				Lo: append([]float64(nil), b.Lo...),
				Hi: append([]float64(nil), b.Hi...),
			}
		}
	}
	return &out
}
