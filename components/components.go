// Package components defines the per-particle data attached to store entities.
package components

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Position is a particle's location in the simulation box.
type Position struct {
	Vec r3.Vec
}

// Orientation is a particle's body-frame rotation as a unit quaternion.
type Orientation struct {
	Quat r3.Rotation
}

// Force is the particle's slot in the global per-particle force array.
// Many force contributors may share the array; each contributor owns only
// the slots of its own group for the duration of one call.
type Force struct {
	Vec r3.Vec
}

// Torque is the particle's slot in the global per-particle torque array.
type Torque struct {
	Vec r3.Vec
}

// Identity returns the identity rotation.
// The zero value of r3.Rotation is not a valid quaternion.
func Identity() r3.Rotation {
	return r3.Rotation(quat.Number{Real: 1})
}
