package active

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/devitrification/hoomd-blue/store"
)

// EnforceConstraint projects every group member's active force and torque
// vectors onto the tangent plane of the constraint surface at the
// particle's position and renormalizes them to unit length. No-op when no
// constraint surface is set.
//
// When a vector is nearly parallel to the surface normal the projection
// underflows; the vector then falls back to a deterministic tangent (the
// normal crossed with the coordinate axis of its smallest component) rather
// than dividing by a vanishing norm.
func (e *Engine) EnforceConstraint() error {
	if !e.constraint {
		return nil
	}
	if err := e.snapshotGroup(); err != nil {
		return err
	}

	e.pool.run(len(e.snaps), e.constrainChunk)

	return e.applyVectors("constraint projection")
}

func (e *Engine) constrainChunk(i0, i1 int, _ *scratch) {
	for i := i0; i < i1; i++ {
		snap := &e.snaps[i]
		out := &e.intents[i]

		normal := e.surface.Normal(snap.pos)
		if !finiteVec(normal) {
			out.degenerate = true
			continue
		}
		out.force = projectTangent(snap.force, normal)
		out.torque = projectTangent(snap.torque, normal)
		if !finiteVec(out.force) || !finiteVec(out.torque) {
			out.degenerate = true
		}
	}
}

// projectTangent returns the unit projection of v onto the plane orthogonal
// to the unit normal n, with the underflow fallback described on
// EnforceConstraint.
func projectTangent(v, n r3.Vec) r3.Vec {
	t := r3.Sub(v, r3.Scale(r3.Dot(v, n), n))
	norm := r3.Norm(t)
	if norm > tangentEps {
		return r3.Scale(1/norm, t)
	}
	return orthogonal(n)
}

// Tangency returns the dot product of a tag's active force vector with the
// surface normal at its position; zero means tangent. Diagnostic accessor.
func (e *Engine) Tangency(tag store.Tag) (float64, error) {
	i, ok := e.slot[tag]
	if !ok {
		return 0, fmt.Errorf("active: tag %d is not a group member", tag)
	}
	if !e.constraint {
		return 0, nil
	}
	pos, ok := e.data.Position(tag)
	if !ok {
		return 0, fmt.Errorf("active: tag %d not resolvable in particle data", tag)
	}
	n := e.surface.Normal(pos)
	if math.IsNaN(n.X) {
		return 0, fmt.Errorf("active: surface normal undefined at tag %d", tag)
	}
	return r3.Dot(e.state[i].ForceVec, n), nil
}
