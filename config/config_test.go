package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Simulation.DT != 0.005 {
		t.Errorf("dt = %v, want 0.005", cfg.Simulation.DT)
	}
	if cfg.Particles.Count != 1024 {
		t.Errorf("count = %d, want 1024", cfg.Particles.Count)
	}
	if cfg.Active.RotationDiff != 0.1 {
		t.Errorf("rotation_diff = %v, want 0.1", cfg.Active.RotationDiff)
	}
	if !cfg.Derived.Surface.Zero() {
		t.Error("defaults carry a constraint surface")
	}
}

func TestDerivedValues(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	want := math.Sqrt(2 * 0.1 * 0.005)
	if cfg.Derived.RotationConst != want {
		t.Errorf("RotationConst = %v, want %v", cfg.Derived.RotationConst, want)
	}
	if cfg.Derived.CutoffSq != cfg.Active.Cutoff*cfg.Active.Cutoff {
		t.Errorf("CutoffSq = %v", cfg.Derived.CutoffSq)
	}
}

func TestLoadMergesUserFile(t *testing.T) {
	path := writeConfig(t, `
simulation:
  dt: 0.01
constraint:
  center: [0, 0, 0]
  radii: [5, 5, 5]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Simulation.DT != 0.01 {
		t.Errorf("dt = %v, want 0.01", cfg.Simulation.DT)
	}
	// untouched keys keep their defaults
	if cfg.Particles.Count != 1024 {
		t.Errorf("count = %d, want default 1024", cfg.Particles.Count)
	}
	if cfg.Derived.Surface.Zero() || cfg.Derived.Surface.RX != 5 {
		t.Errorf("surface not derived: %+v", cfg.Derived.Surface)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero dt", "simulation:\n  dt: 0\n"},
		{"negative count", "particles:\n  count: -1\n"},
		{"zero force magnitude", "particles:\n  force_magnitude: 0\n"},
		{"negative diffusion", "active:\n  rotation_diff: -0.5\n"},
		{"coupling without cutoff", "active:\n  coupling: 1\n  cutoff: 0\n"},
		{"bad box", "box:\n  lx: -10\n"},
		{"partial constraint center", "constraint:\n  center: [1, 2]\n"},
		{"negative radius", "constraint:\n  radii: [1, -1, 1]\n"},
		{"zero stats window", "telemetry:\n  stats_window: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Error("invalid config accepted")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatal(err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if back.Simulation != cfg.Simulation || back.Active != cfg.Active {
		t.Errorf("round trip changed config: %+v vs %+v", back, cfg)
	}
}
