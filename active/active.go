// Package active computes self-propulsion forces and torques for a group of
// active particles and evolves their orientation vectors by rotational
// diffusion, optional neighbor alignment, and constraint-surface projection.
//
// The engine owns one State per group member, addressed by stable tag. Per
// timestep the driver calls Compute, which writes the group's force and
// torque slots from the current active vectors, then (when diffusion is
// enabled) perturbs the vectors and re-projects them onto the constraint
// manifold. Per-particle updates are pure functions of the particle's own
// state, its position and orientation, its neighbors' prior-step vectors,
// and a random stream keyed by (tag, timestep, seed), so results are
// identical no matter how the group is chunked across workers.
package active

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/devitrification/hoomd-blue/manifold"
	"github.com/devitrification/hoomd-blue/neighbor"
	"github.com/devitrification/hoomd-blue/store"
)

const (
	// normEps is the smallest vector norm treated as nonzero; anything
	// below is a degenerate-input failure.
	normEps = 1e-12

	// tangentEps bounds the projected-tangent underflow fallback.
	tangentEps = 1e-6
)

// State is the per-particle active force and torque state.
// ForceVec and TorqueVec stay unit length after every mutation.
type State struct {
	ForceVec  r3.Vec
	ForceMag  float64
	TorqueVec r3.Vec
	TorqueMag float64
}

// Params configures an Engine.
type Params struct {
	Seed uint32

	// RotationDiff is the rotational diffusion constant. Zero disables
	// the diffusion step in Compute.
	RotationDiff float64

	// DT is the integration timestep of the surrounding simulation.
	DT float64

	// TwoD confines diffusion to in-plane rotations. The flag is
	// authoritative; it is never inferred from the constraint geometry.
	TwoD bool

	// OrientationLink rotates forces and torques from the particle body
	// frame into the world frame before writing them.
	OrientationLink bool

	// ReverseOrientationLink overwrites each particle's orientation from
	// its active force vector during SetForces. This writes shared
	// particle state; see SetForces.
	ReverseOrientationLink bool

	// Coupling is the Vicsek neighbor-alignment strength. Zero disables
	// the coupling term.
	Coupling float64

	// Cutoff is the neighbor-interaction distance for the coupling term.
	Cutoff float64
}

// ParticleData is the view of the particle store the engine needs. The
// boolean results report tag resolution; an unresolved tag means the caller
// skipped a reindex and is treated as fatal by the engine.
type ParticleData interface {
	Position(tag store.Tag) (r3.Vec, bool)
	Orientation(tag store.Tag) (r3.Rotation, bool)
	SetOrientation(tag store.Tag, q r3.Rotation) bool
	SetForce(tag store.Tag, f r3.Vec) bool
	SetTorque(tag store.Tag, t r3.Vec) bool
}

// NeighborSource supplies neighbors within a cutoff of a position. Results
// must reflect a snapshot that is stable for the duration of one engine
// call.
type NeighborSource interface {
	QueryRadiusInto(dst []neighbor.Neighbor, p r3.Vec, radius float64, exclude store.Tag) []neighbor.Neighbor
}

// snapshot is the read-only per-particle input captured before a parallel
// pass. The force and torque fields double as the prior-step backup buffer
// that the Vicsek term reads, which keeps updates order-independent.
type snapshot struct {
	tag    store.Tag
	pos    r3.Vec
	orient r3.Rotation
	force  r3.Vec
	torque r3.Vec
	fmag   float64
	tmag   float64
}

// intent is the computed per-particle output applied after a parallel pass.
type intent struct {
	force      r3.Vec
	torque     r3.Vec
	orient     r3.Rotation
	setOrient  bool
	degenerate bool
}

// Engine evolves the active-particle group.
type Engine struct {
	data   ParticleData
	nsrc   NeighborSource
	params Params

	// rotConst is the per-step Gaussian width sqrt(2*RotationDiff*DT).
	rotConst   float64
	couplingDT float64

	group []store.Tag
	state []State
	slot  map[store.Tag]int

	surface    manifold.Ellipsoid
	constraint bool

	pool    *pool
	snaps   []snapshot
	intents []intent
}

// NewEngine creates an engine for the given ordered group of tags. The
// initial active force and torque of each member are taken from forces[i]
// and torques[i]: the vector's norm is the magnitude, its direction the
// active vector. Force vectors must be nonzero and finite; a zero torque
// vector means zero torque magnitude.
func NewEngine(data ParticleData, group []store.Tag, forces, torques []r3.Vec, params Params) (*Engine, error) {
	if data == nil {
		return nil, fmt.Errorf("active: nil particle data")
	}
	if len(forces) != len(group) || len(torques) != len(group) {
		return nil, fmt.Errorf("active: got %d force and %d torque vectors for a group of %d", len(forces), len(torques), len(group))
	}
	if params.DT <= 0 || math.IsNaN(params.DT) {
		return nil, fmt.Errorf("active: integration timestep must be positive, got %g", params.DT)
	}
	if params.RotationDiff < 0 || math.IsNaN(params.RotationDiff) {
		return nil, fmt.Errorf("active: rotation diffusion constant must be non-negative, got %g", params.RotationDiff)
	}
	if params.Coupling != 0 && params.Cutoff <= 0 {
		return nil, fmt.Errorf("active: neighbor coupling requires a positive cutoff, got %g", params.Cutoff)
	}

	e := &Engine{
		data:       data,
		params:     params,
		rotConst:   math.Sqrt(2 * params.RotationDiff * params.DT),
		couplingDT: params.Coupling * params.DT,
		group:      make([]store.Tag, len(group)),
		state:      make([]State, len(group)),
		slot:       make(map[store.Tag]int, len(group)),
		pool:       newPool(),
	}
	copy(e.group, group)

	for i, tag := range e.group {
		if _, dup := e.slot[tag]; dup {
			return nil, fmt.Errorf("active: duplicate tag %d in group", tag)
		}
		e.slot[tag] = i

		f := forces[i]
		fmag := r3.Norm(f)
		if !finiteVec(f) || fmag <= normEps {
			return nil, fmt.Errorf("active: initial force for tag %d must be finite and nonzero, got (%g, %g, %g)", tag, f.X, f.Y, f.Z)
		}
		t := torques[i]
		tmag := r3.Norm(t)
		if !finiteVec(t) {
			return nil, fmt.Errorf("active: initial torque for tag %d must be finite, got (%g, %g, %g)", tag, t.X, t.Y, t.Z)
		}
		tvec := r3.Vec{X: 1}
		if tmag > normEps {
			tvec = r3.Scale(1/tmag, t)
		} else {
			tmag = 0
		}

		e.state[i] = State{
			ForceVec:  r3.Scale(1/fmag, f),
			ForceMag:  fmag,
			TorqueVec: tvec,
			TorqueMag: tmag,
		}
	}
	return e, nil
}

// SetNeighborSource installs the neighbor provider used by the Vicsek
// coupling term. Required before diffusion when Coupling is nonzero.
func (e *Engine) SetNeighborSource(src NeighborSource) { e.nsrc = src }

// AddManifold installs a constraint surface. A Zero descriptor removes the
// constraint.
func (e *Engine) AddManifold(s manifold.Ellipsoid) error {
	if err := s.Validate(); err != nil {
		return err
	}
	e.surface = s
	e.constraint = !s.Zero()
	return nil
}

// Constrained reports whether a constraint surface is active.
func (e *Engine) Constrained() bool { return e.constraint }

// Group returns the engine's ordered tags. The slice is owned by the engine.
func (e *Engine) Group() []store.Tag { return e.group }

// StateOf returns the active state for a tag.
func (e *Engine) StateOf(tag store.Tag) (State, bool) {
	i, ok := e.slot[tag]
	if !ok {
		return State{}, false
	}
	return e.state[i], true
}

// ForceVecs appends the current active force unit vectors in group order.
func (e *Engine) ForceVecs(dst []r3.Vec) []r3.Vec {
	for i := range e.state {
		dst = append(dst, e.state[i].ForceVec)
	}
	return dst
}

// Reindex re-lays-out the per-tag state to a new ordering of the same tag
// set. Call after every group membership remap; per-tag state is preserved.
func (e *Engine) Reindex(group []store.Tag) error {
	if len(group) != len(e.group) {
		return fmt.Errorf("active: reindex group size %d does not match %d", len(group), len(e.group))
	}
	newState := make([]State, len(group))
	newSlot := make(map[store.Tag]int, len(group))
	for i, tag := range group {
		j, ok := e.slot[tag]
		if !ok {
			return fmt.Errorf("active: reindex tag %d is not a group member", tag)
		}
		if _, dup := newSlot[tag]; dup {
			return fmt.Errorf("active: duplicate tag %d in reindex group", tag)
		}
		newState[i] = e.state[j]
		newSlot[tag] = i
	}
	e.group = append(e.group[:0], group...)
	e.state = newState
	e.slot = newSlot
	return nil
}

// Compute runs one timestep: write forces and torques from the current
// active vectors, apply rotational diffusion when enabled, then re-project
// onto the constraint surface when one is active.
func (e *Engine) Compute(timestep uint64) error {
	if err := e.SetForces(); err != nil {
		return err
	}
	if e.params.RotationDiff != 0 {
		if err := e.RotationalDiffusion(timestep); err != nil {
			return err
		}
	}
	if e.constraint {
		if err := e.EnforceConstraint(); err != nil {
			return err
		}
	}
	return nil
}

// Close stops the engine's worker pool.
func (e *Engine) Close() { e.pool.stop() }

// snapshotGroup captures read-only inputs for every group member.
func (e *Engine) snapshotGroup() error {
	e.snaps = e.snaps[:0]
	for i, tag := range e.group {
		pos, ok := e.data.Position(tag)
		if !ok {
			return fmt.Errorf("active: tag %d not resolvable in particle data; missing reindex after a remap", tag)
		}
		orient, ok := e.data.Orientation(tag)
		if !ok {
			return fmt.Errorf("active: tag %d has no orientation", tag)
		}
		st := &e.state[i]
		e.snaps = append(e.snaps, snapshot{
			tag:    tag,
			pos:    pos,
			orient: orient,
			force:  st.ForceVec,
			torque: st.TorqueVec,
			fmag:   st.ForceMag,
			tmag:   st.TorqueMag,
		})
	}
	if cap(e.intents) < len(e.snaps) {
		e.intents = make([]intent, len(e.snaps))
	}
	e.intents = e.intents[:len(e.snaps)]
	for i := range e.intents {
		e.intents[i] = intent{}
	}
	return nil
}

// applyVectors writes diffusion or projection results back into the state
// arena. Nothing is applied if any particle came out degenerate; NaN state
// must never reach the arena.
func (e *Engine) applyVectors(op string) error {
	for i := range e.intents {
		if e.intents[i].degenerate {
			return fmt.Errorf("active: %s produced a degenerate vector for tag %d", op, e.snaps[i].tag)
		}
	}
	for i := range e.intents {
		st := &e.state[i]
		st.ForceVec = e.intents[i].force
		st.TorqueVec = e.intents[i].torque
	}
	return nil
}

func finiteVec(v r3.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0) &&
		!math.IsNaN(v.Z) && !math.IsInf(v.Z, 0)
}
