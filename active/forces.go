package active

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// SetForces writes force = forceMag*forceVec and torque = torqueMag*torqueVec
// into the group's slots of the global force and torque arrays, overwriting
// whatever was there. Slots of non-group particles are untouched; composing
// multiple force contributors is the driver's job.
//
// With OrientationLink the vectors are rotated from the particle's body
// frame into the world frame by its orientation quaternion first.
//
// With ReverseOrientationLink each particle's orientation is additionally
// OVERWRITTEN with the rotation aligning the x axis to its active force
// vector. That is a write to shared particle state as a side effect of a
// force computation: any other component reading orientations sees the
// change. Useful for logging the active vector through the orientation
// channel; not recommended for anisotropic particles.
func (e *Engine) SetForces() error {
	if err := e.snapshotGroup(); err != nil {
		return err
	}

	e.pool.run(len(e.snaps), e.setForcesChunk)

	for i := range e.snaps {
		tag := e.snaps[i].tag
		out := &e.intents[i]
		if !e.data.SetForce(tag, out.force) {
			return fmt.Errorf("active: tag %d lost its force slot; missing reindex after a remap", tag)
		}
		if !e.data.SetTorque(tag, out.torque) {
			return fmt.Errorf("active: tag %d lost its torque slot; missing reindex after a remap", tag)
		}
		if out.setOrient {
			if !e.data.SetOrientation(tag, out.orient) {
				return fmt.Errorf("active: tag %d lost its orientation slot; missing reindex after a remap", tag)
			}
		}
	}
	return nil
}

func (e *Engine) setForcesChunk(i0, i1 int, _ *scratch) {
	for i := i0; i < i1; i++ {
		snap := &e.snaps[i]
		out := &e.intents[i]

		f := r3.Scale(snap.fmag, snap.force)
		t := r3.Scale(snap.tmag, snap.torque)
		if e.params.OrientationLink {
			f = snap.orient.Rotate(f)
			t = snap.orient.Rotate(t)
		}
		out.force = f
		out.torque = t

		if e.params.ReverseOrientationLink {
			out.orient = rotationBetween(r3.Vec{X: 1}, snap.force)
			out.setOrient = true
		}
	}
}
