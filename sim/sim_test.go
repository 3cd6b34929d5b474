package sim

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/devitrification/hoomd-blue/config"
)

func loadConfig(t *testing.T, body string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

const smallRun = `
particles:
  count: 64
telemetry:
  stats_window: 10
`

func TestNewRejectsInvalidConfig(t *testing.T) {
	if _, err := New(&config.Config{}, Options{}); err == nil {
		t.Fatal("zero-value config accepted")
	}

	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Telemetry.StatsWindow = 0
	if _, err := New(cfg, Options{}); err == nil {
		t.Fatal("zero stats window accepted")
	}
}

func TestRunAdvancesTicks(t *testing.T) {
	s, err := New(loadConfig(t, smallRun), Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Run(25); err != nil {
		t.Fatal(err)
	}
	if s.Tick() != 25 {
		t.Errorf("Tick = %d, want 25", s.Tick())
	}
	if o := s.Order(); o < 0 || o > 1 {
		t.Errorf("Order = %v, outside [0, 1]", o)
	}
}

func TestRunKeepsParticlesInBox(t *testing.T) {
	s, err := New(loadConfig(t, smallRun), Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Run(50); err != nil {
		t.Fatal(err)
	}
	box := s.Box()
	for _, tag := range s.Store().Tags() {
		p, _ := s.Store().Position(tag)
		if math.Abs(p.X) > box.LX/2 || math.Abs(p.Y) > box.LY/2 || math.Abs(p.Z) > box.LZ/2 {
			t.Errorf("tag %d left the box: %v", tag, p)
		}
	}
}

func TestSameSeedSameTrajectory(t *testing.T) {
	run := func() []r3.Vec {
		s, err := New(loadConfig(t, smallRun), Options{Seed: 1234})
		if err != nil {
			t.Fatal(err)
		}
		defer s.Close()
		if err := s.Run(20); err != nil {
			t.Fatal(err)
		}
		var out []r3.Vec
		for _, tag := range s.Store().Tags() {
			p, _ := s.Store().Position(tag)
			out = append(out, p)
		}
		return s.Engine().ForceVecs(out)
	}

	a := run()
	b := run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("trajectories diverged at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestTwoDStaysPlanar(t *testing.T) {
	cfg := loadConfig(t, `
particles:
  count: 32
active:
  two_d: true
telemetry:
  stats_window: 10
`)
	s, err := New(cfg, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Run(30); err != nil {
		t.Fatal(err)
	}
	for _, tag := range s.Store().Tags() {
		p, _ := s.Store().Position(tag)
		if p.Z != 0 {
			t.Errorf("tag %d left the plane: z = %v", tag, p.Z)
		}
		st, _ := s.Engine().StateOf(tag)
		if st.ForceVec.Z != 0 {
			t.Errorf("tag %d force vector out of plane: %v", tag, st.ForceVec)
		}
	}
}

func TestConstrainedRunStaysOnSurface(t *testing.T) {
	cfg := loadConfig(t, `
particles:
  count: 32
constraint:
  center: [0, 0, 0]
  radii: [5, 5, 5]
telemetry:
  stats_window: 10
`)
	s, err := New(cfg, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Run(30); err != nil {
		t.Fatal(err)
	}
	for _, tag := range s.Store().Tags() {
		p, _ := s.Store().Position(tag)
		if r := r3.Norm(p); math.Abs(r-5) > 1e-9 {
			t.Errorf("tag %d off the sphere: radius %v", tag, r)
		}
		// advection moved the particle after the last projection, so the
		// normal has drifted by at most speed*dt/radius
		d, err := s.Engine().Tangency(tag)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(d) > 2*s.cfg.Particles.Speed*s.cfg.Simulation.DT/5 {
			t.Errorf("tag %d force not tangent: %v", tag, d)
		}
	}
}

func TestMigrateIsTransparent(t *testing.T) {
	cfg := loadConfig(t, smallRun)

	s1, err := New(cfg, Options{Seed: 7})
	if err != nil {
		t.Fatal(err)
	}
	defer s1.Close()
	s2, err := New(cfg, Options{Seed: 7})
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	if err := s1.Run(10); err != nil {
		t.Fatal(err)
	}
	if err := s2.Run(10); err != nil {
		t.Fatal(err)
	}

	// reverse the second sim's index order mid-run
	n := s2.Store().N()
	perm := make([]int, n)
	for i := range perm {
		perm[i] = n - 1 - i
	}
	if err := s2.Migrate(perm); err != nil {
		t.Fatal(err)
	}

	if err := s1.Run(10); err != nil {
		t.Fatal(err)
	}
	if err := s2.Run(10); err != nil {
		t.Fatal(err)
	}

	// results are keyed by tag, so the permutation must not show up
	for _, tag := range s1.Store().Tags() {
		a, _ := s1.Engine().StateOf(tag)
		b, ok := s2.Engine().StateOf(tag)
		if !ok || a != b {
			t.Fatalf("tag %d diverged after migration: %+v vs %+v", tag, a, b)
		}
		pa, _ := s1.Store().Position(tag)
		pb, _ := s2.Store().Position(tag)
		if pa != pb {
			t.Fatalf("tag %d position diverged after migration: %v vs %v", tag, pa, pb)
		}
	}
}

func TestOutputFilesWritten(t *testing.T) {
	dir := t.TempDir()
	s, err := New(loadConfig(t, smallRun), Options{OutputDir: dir})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Run(20); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"config.yaml", "telemetry.csv", "perf.csv"} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Errorf("%s missing: %v", name, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("%s is empty", name)
		}
	}
}
