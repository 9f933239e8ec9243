package config

import (
	"path/filepath"
	"testing"

	"github.com/theSadeQ/dip-smc-pso/internal/faults"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default configuration invalid: %v", err)
	}
}

func TestAllPresetsValidate(t *testing.T) {
	names := ListPresets()
	if len(names) == 0 {
		t.Fatal("no presets registered")
	}
	for _, name := range names {
		cfg := GetPreset(name)
		if cfg == nil {
			t.Fatalf("listed preset %q not retrievable", name)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("preset %q invalid: %v", name, err)
		}
	}
}

func TestGetPresetUnknown(t *testing.T) {
	if cfg := GetPreset("no-such-preset"); cfg != nil {
		t.Error("unknown preset should return nil")
	}
}

func TestGetPresetReturnsCopy(t *testing.T) {
	a := GetPreset("stabilize")
	a.Duration = 999
	b := GetPreset("stabilize")
	if b.Duration == 999 {
		t.Error("preset mutation leaked into the registry")
	}

	// element-level writes must not reach the registry either
	a.Gains[0] = -1
	if b2 := GetPreset("stabilize"); b2.Gains[0] == -1 {
		t.Error("gain slice aliases the registry")
	}

	a.Bounds["classical"].Lo[0] = -1
	if b2 := GetPreset("stabilize"); b2.Bounds["classical"].Lo[0] == -1 {
		t.Error("bounds map aliases the registry")
	}

	n := GetPreset("sensor-noise")
	n.Faults.Sensor[0].Magnitude = 42
	if b2 := GetPreset("sensor-noise"); b2.Faults.Sensor[0].Magnitude == 42 {
		t.Error("fault spec slice aliases the registry")
	}
}

func TestValidateRejectsBadEnums(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"model", func(c *Config) { c.Model = "quantum" }},
		{"integrator", func(c *Config) { c.Integrator = "verlet" }},
		{"controller", func(c *Config) { c.Controller = "pid" }},
		{"gain count", func(c *Config) { c.Gains = []float64{1, 2, 3} }},
		{"negative dt", func(c *Config) { c.Dt = -0.01 }},
		{"negative mass", func(c *Config) { c.Plant.Mass1 = -1 }},
		{"empty bound interval", func(c *Config) {
			b := c.Bounds["classical"]
			b.Lo = []float64{5, 0.05, 0.05, 0.05, 0.5, 0.05}
			b.Hi = []float64{5, 50, 50, 50, 100, 10}
			c.Bounds["classical"] = b
		}},
		{"bound dims", func(c *Config) {
			c.Bounds["classical"] = BoundsConfig{Lo: []float64{1}, Hi: []float64{2}}
		}},
	}

	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestLoadSaveRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")

	orig := DefaultConfig()
	orig.Controller = "sta"
	orig.Gains = []float64{10, 5, 8, 3, 12, 6}
	orig.Duration = 7.5
	orig.InitState.Theta1 = 0.25
	orig.Faults.Actuator = []faults.Spec{
		{Kind: faults.KindDelay, Magnitude: 0.04, Onset: 2},
	}

	if err := Save(path, orig); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if loaded.Controller != "sta" || loaded.Duration != 7.5 {
		t.Errorf("scalar fields lost: %+v", loaded)
	}
	if loaded.InitState.Theta1 != 0.25 {
		t.Errorf("init state lost: %g", loaded.InitState.Theta1)
	}
	if len(loaded.Gains) != 6 || loaded.Gains[4] != 12 {
		t.Errorf("gains lost: %v", loaded.Gains)
	}
	if len(loaded.Faults.Actuator) != 1 || loaded.Faults.Actuator[0].Kind != faults.KindDelay {
		t.Errorf("fault specs lost: %+v", loaded.Faults)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	cfg := DefaultConfig()
	cfg.Gains = []float64{1}
	// Save does not validate; Load must
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected validation error on load")
	}
}

func TestPlantParamsDerived(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Plant.Length1 = 2.0
	cfg.Plant.Mass1 = 3.0

	p := cfg.PlantParams()
	if p.Com1 != 1.0 {
		t.Errorf("Com1 = %g, want half the length", p.Com1)
	}
	if want := 3.0 * 2.0 * 2.0 / 12; p.Inertia1 != want {
		t.Errorf("Inertia1 = %g, want %g", p.Inertia1, want)
	}
}

func TestBuildPlantVariants(t *testing.T) {
	for _, model := range []string{"full", "linear", "lowrank"} {
		cfg := DefaultConfig()
		cfg.Model = model
		sys, err := cfg.BuildPlant()
		if err != nil {
			t.Fatalf("%s: %v", model, err)
		}
		if sys.StateDim() != 6 {
			t.Errorf("%s: state dim %d", model, sys.StateDim())
		}
	}
}

func TestBuildIntegratorUnknown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Integrator = "verlet"
	if _, err := cfg.BuildIntegrator(); err == nil {
		t.Error("expected error for unknown integrator")
	}
}

func TestBuildControllerWrapsFaults(t *testing.T) {
	cfg := DefaultConfig()
	plain, err := cfg.BuildController(nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, wrapped := plain.(*faults.Wrapped); wrapped {
		t.Error("fault-free config must not wrap the controller")
	}

	cfg.Faults.Sensor = []faults.Spec{
		{Kind: faults.KindNoise, Magnitude: 0.01, Onset: 1, Channel: -1},
	}
	faulty, err := cfg.BuildController(nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, wrapped := faulty.(*faults.Wrapped); !wrapped {
		t.Error("configured faults must wrap the controller")
	}
}

func TestGainBoundsFallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bounds = nil // explicit bounds removed: defaults apply

	b, err := cfg.GainBounds()
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Lo) != 6 || len(b.Hi) != 6 {
		t.Errorf("default bounds wrong shape: %d/%d", len(b.Lo), len(b.Hi))
	}
	if err := b.Validate(); err != nil {
		t.Errorf("default bounds invalid: %v", err)
	}
}

func TestInitStateVector(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitState = InitStateConfig{Pos: 1, Vel: 2, Theta1: 3, Omega1: 4, Theta2: 5, Omega2: 6}

	x := cfg.InitStateVector()
	for i, want := range []float64{1, 2, 3, 4, 5, 6} {
		if x[i] != want {
			t.Errorf("component %d = %g, want %g", i, x[i], want)
		}
	}
}
