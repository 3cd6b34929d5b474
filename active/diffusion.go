package active

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/devitrification/hoomd-blue/rng"
)

// RotationalDiffusion perturbs every group member's active force vector by
// a stochastic rotation with Gaussian width sqrt(2*rotationDiff*dt), and
// co-rotates the torque vector so the angle between the two stays fixed.
//
// In 2D the force angle takes an in-plane Gaussian step. In 3D without a
// constraint the vector is kicked about a uniformly random axis. With a
// constraint surface the rotation is confined to the tangent plane at the
// particle's position. When neighbor coupling is enabled, the vector is
// first blended toward the mean prior-step vector of in-range neighbors;
// coupling and diffusion compose on the same state within one call.
//
// Random draws are keyed by (tag, timestep, seed), and the coupling term
// reads only the snapshot taken at call entry, so the outcome is identical
// for any batching of the group across workers.
func (e *Engine) RotationalDiffusion(timestep uint64) error {
	if e.params.Coupling != 0 && e.nsrc == nil {
		return fmt.Errorf("active: neighbor coupling is enabled but no neighbor source is set")
	}
	if err := e.snapshotGroup(); err != nil {
		return err
	}

	e.pool.run(len(e.snaps), func(i0, i1 int, sc *scratch) {
		e.diffuseChunk(i0, i1, sc, timestep)
	})

	return e.applyVectors("rotational diffusion")
}

func (e *Engine) diffuseChunk(i0, i1 int, sc *scratch, timestep uint64) {
	coupled := e.params.Coupling != 0 && e.nsrc != nil
	constrained := e.constraint && !e.params.TwoD

	for i := i0; i < i1; i++ {
		snap := &e.snaps[i]
		out := &e.intents[i]

		f0 := snap.force
		f := f0

		if coupled {
			sc.neighbors = e.nsrc.QueryRadiusInto(sc.neighbors[:0], snap.pos, e.params.Cutoff, snap.tag)
			// fixed accumulation order keeps the sum bit-identical
			// across index layouts
			sort.Slice(sc.neighbors, func(a, b int) bool {
				return sc.neighbors[a].Tag < sc.neighbors[b].Tag
			})
			var sum r3.Vec
			count := 0
			for _, nb := range sc.neighbors {
				j, ok := e.slot[nb.Tag]
				if !ok {
					// neighbor outside the active group
					continue
				}
				// prior-step snapshot, never the in-progress update
				sum = r3.Add(sum, e.snaps[j].force)
				count++
			}
			if count > 0 && r3.Norm(sum) > normEps {
				mean := r3.Unit(sum)
				f = r3.Add(f, r3.Scale(e.couplingDT, r3.Sub(mean, f)))
				n := r3.Norm(f)
				if !(n > normEps) {
					out.degenerate = true
					continue
				}
				f = r3.Scale(1/n, f)
			}
		}

		stream := rng.NewStream(uint32(snap.tag), timestep, e.params.Seed)
		switch {
		case e.params.TwoD:
			theta := math.Atan2(f.Y, f.X) + stream.Gaussian(e.rotConst)
			f = r3.Vec{X: math.Cos(theta), Y: math.Sin(theta)}
		case constrained:
			normal := e.surface.Normal(snap.pos)
			aux := r3.Cross(f, normal)
			dtheta := stream.Gaussian(e.rotConst)
			f = r3.Add(r3.Scale(math.Cos(dtheta), f), r3.Scale(math.Sin(dtheta), aux))
		default:
			az := 2 * math.Pi * stream.Uniform()
			pol := math.Acos(2*stream.Uniform() - 1)
			axis := r3.Vec{
				X: math.Sin(pol) * math.Cos(az),
				Y: math.Sin(pol) * math.Sin(az),
				Z: math.Cos(pol),
			}
			m := stream.Gaussian(e.rotConst)
			f = r3.Add(f, r3.Scale(m, r3.Cross(f, axis)))
		}

		n := r3.Norm(f)
		if !(n > normEps) || math.IsNaN(n) {
			out.degenerate = true
			continue
		}
		f = r3.Scale(1/n, f)

		t := rotateMatching(f0, f, snap.torque)
		tn := r3.Norm(t)
		if !(tn > normEps) || math.IsNaN(tn) {
			out.degenerate = true
			continue
		}

		out.force = f
		out.torque = r3.Scale(1/tn, t)
	}
}
