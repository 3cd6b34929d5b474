// Package sim wires the particle store, neighbor grid, active-force engine,
// and telemetry into a runnable simulation loop. It plays the role of the
// external driver: position advection, neighbor-list refresh cadence, and
// migration live here, not in the engine.
package sim

import (
	"fmt"
	"math"
	"path/filepath"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/devitrification/hoomd-blue/active"
	"github.com/devitrification/hoomd-blue/components"
	"github.com/devitrification/hoomd-blue/config"
	"github.com/devitrification/hoomd-blue/neighbor"
	"github.com/devitrification/hoomd-blue/rng"
	"github.com/devitrification/hoomd-blue/store"
	"github.com/devitrification/hoomd-blue/telemetry"
)

// initDraws is the timestep key reserved for construction-time draws so
// they never collide with timestep 0 of the run.
const initDraws = ^uint64(0)

// Options holds run options not covered by the config file.
type Options struct {
	Seed      uint32 // overrides config seed when nonzero
	OutputDir string
	LogStats  bool
}

// Sim owns one simulation run.
type Sim struct {
	cfg  *config.Config
	opts Options

	store  *store.Store
	grid   *neighbor.Grid
	engine *active.Engine

	perf      *telemetry.PerfCollector
	collector *telemetry.Collector
	output    *telemetry.OutputManager

	tick     uint64
	remapErr error

	vecScratch []r3.Vec
}

// New builds a simulation from the config: particles placed deterministically
// from the seed, active vectors drawn per tag, engine constructed and, when a
// constraint surface is configured, initial vectors projected onto it.
func New(cfg *config.Config, opts Options) (*Sim, error) {
	// configs from Load are already validated; hand-built ones may not be
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seed := cfg.Simulation.Seed
	if opts.Seed != 0 {
		seed = opts.Seed
	}

	s := &Sim{
		cfg:       cfg,
		opts:      opts,
		store:     store.NewStore(),
		perf:      telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		collector: telemetry.NewCollector(),
	}

	box := neighbor.Box{LX: cfg.Box.LX, LY: cfg.Box.LY, LZ: cfg.Box.LZ}
	surface := cfg.Derived.Surface

	group := make([]store.Tag, 0, cfg.Particles.Count)
	forces := make([]r3.Vec, 0, cfg.Particles.Count)
	torques := make([]r3.Vec, 0, cfg.Particles.Count)

	for i := 0; i < cfg.Particles.Count; i++ {
		stream := rng.NewStream(uint32(i), initDraws, seed)

		pos := r3.Vec{
			X: stream.UniformRange(-box.LX/2, box.LX/2),
			Y: stream.UniformRange(-box.LY/2, box.LY/2),
			Z: stream.UniformRange(-box.LZ/2, box.LZ/2),
		}
		if cfg.Active.TwoD {
			pos.Z = 0
		}
		if !surface.Zero() {
			pos = surface.Project(pos)
		}

		dir := randomUnit(&stream, cfg.Active.TwoD)
		tag := s.store.AddParticle(pos, components.Identity())

		group = append(group, tag)
		forces = append(forces, r3.Scale(cfg.Particles.ForceMagnitude, dir))
		torques = append(torques, r3.Scale(cfg.Particles.TorqueMagnitude, dir))
	}

	params := active.Params{
		Seed:                   seed,
		RotationDiff:           cfg.Active.RotationDiff,
		DT:                     cfg.Simulation.DT,
		TwoD:                   cfg.Active.TwoD,
		OrientationLink:        cfg.Active.OrientationLink,
		ReverseOrientationLink: cfg.Active.ReverseOrientationLink,
		Coupling:               cfg.Active.Coupling,
		Cutoff:                 cfg.Active.Cutoff,
	}
	eng, err := active.NewEngine(s.store, group, forces, torques, params)
	if err != nil {
		return nil, err
	}
	s.engine = eng

	if !surface.Zero() {
		if err := eng.AddManifold(surface); err != nil {
			return nil, err
		}
		// establish tangency before the first step
		if err := eng.EnforceConstraint(); err != nil {
			return nil, err
		}
	}

	if cfg.Active.Coupling != 0 {
		s.grid = neighbor.NewGrid(box, cfg.Neighbor.CellSize)
		eng.SetNeighborSource(s.grid)
	}

	// keep the engine's tag-ordered arena in step with migrations
	s.store.OnRemap(func() {
		if err := s.engine.Reindex(s.store.Tags()); err != nil {
			s.remapErr = err
		}
	})

	om, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		eng.Close()
		return nil, err
	}
	s.output = om
	if om != nil {
		if err := cfg.WriteYAML(filepath.Join(om.Dir(), "config.yaml")); err != nil {
			Logf("sim: could not write config snapshot: %v", err)
		}
	}

	return s, nil
}

// Step runs one simulation tick.
func (s *Sim) Step() error {
	if s.remapErr != nil {
		return s.remapErr
	}

	s.perf.StartTick()

	if s.grid != nil {
		s.perf.StartPhase(telemetry.PhaseNeighborGrid)
		s.grid.Rebuild(s.store)
	}

	s.perf.StartPhase(telemetry.PhaseForces)
	if err := s.engine.Compute(s.tick); err != nil {
		return err
	}

	if s.cfg.Particles.Speed != 0 {
		s.perf.StartPhase(telemetry.PhaseAdvection)
		if err := s.advect(); err != nil {
			return err
		}
	}

	s.perf.StartPhase(telemetry.PhaseTelemetry)
	s.sample()

	s.perf.EndTick()
	s.tick++
	return nil
}

// Run executes n steps.
func (s *Sim) Run(n int) error {
	for i := 0; i < n; i++ {
		if err := s.Step(); err != nil {
			return fmt.Errorf("sim: step %d: %w", s.tick, err)
		}
	}
	return nil
}

// advect moves particles overdamped along their force slots. This is the
// driver-side stand-in for a real integrator, which is outside this module.
func (s *Sim) advect() error {
	cfg := s.cfg
	box := neighbor.Box{LX: cfg.Box.LX, LY: cfg.Box.LY, LZ: cfg.Box.LZ}
	mob := cfg.Particles.Speed * cfg.Simulation.DT
	surface := cfg.Derived.Surface

	for _, tag := range s.store.Tags() {
		pos, ok := s.store.Position(tag)
		if !ok {
			return fmt.Errorf("sim: tag %d vanished from the store", tag)
		}
		f, _ := s.store.Force(tag)
		pos = box.Wrap(r3.Add(pos, r3.Scale(mob, f)))
		if !surface.Zero() {
			pos = surface.Project(pos)
		}
		s.store.SetPosition(tag, pos)
	}
	return nil
}

func (s *Sim) sample() {
	s.vecScratch = s.engine.ForceVecs(s.vecScratch[:0])
	s.collector.Record(telemetry.PolarOrder(s.vecScratch))

	window := uint64(s.cfg.Telemetry.StatsWindow)
	if (s.tick+1)%window == 0 {
		ws := s.collector.Flush(s.tick, float64(s.tick)*s.cfg.Simulation.DT, s.vecScratch)
		if s.opts.LogStats {
			ws.LogStats()
			s.perf.Stats().LogStats()
		}
		if err := s.output.WriteTelemetry(ws); err != nil {
			Logf("sim: %v", err)
		}
		if err := s.output.WritePerf(s.perf.Stats(), s.tick); err != nil {
			Logf("sim: %v", err)
		}
	}
}

// Migrate permutes the store's index order, simulating a decomposition
// change. The engine's arena follows via the remap hook.
func (s *Sim) Migrate(perm []int) error {
	if err := s.store.Permute(perm); err != nil {
		return err
	}
	return s.remapErr
}

// Tick returns the current timestep.
func (s *Sim) Tick() uint64 { return s.tick }

// Order returns the instantaneous polar order parameter.
func (s *Sim) Order() float64 {
	s.vecScratch = s.engine.ForceVecs(s.vecScratch[:0])
	return telemetry.PolarOrder(s.vecScratch)
}

// Store exposes the particle store, e.g. for rendering.
func (s *Sim) Store() *store.Store { return s.store }

// Engine exposes the active-force engine.
func (s *Sim) Engine() *active.Engine { return s.engine }

// Box returns the periodic box.
func (s *Sim) Box() neighbor.Box {
	return neighbor.Box{LX: s.cfg.Box.LX, LY: s.cfg.Box.LY, LZ: s.cfg.Box.LZ}
}

// Close stops workers and flushes output files.
func (s *Sim) Close() error {
	s.engine.Close()
	return s.output.Close()
}

// randomUnit draws a uniformly random unit vector, in-plane when twoD.
func randomUnit(stream *rng.Stream, twoD bool) r3.Vec {
	if twoD {
		theta := stream.UniformRange(0, 2*math.Pi)
		return r3.Vec{X: math.Cos(theta), Y: math.Sin(theta)}
	}
	az := stream.UniformRange(0, 2*math.Pi)
	pol := math.Acos(2*stream.Uniform() - 1)
	return r3.Vec{
		X: math.Sin(pol) * math.Cos(az),
		Y: math.Sin(pol) * math.Sin(az),
		Z: math.Cos(pol),
	}
}
