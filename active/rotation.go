package active

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// alignEps is the cross-product norm below which two unit vectors are
// treated as parallel or antiparallel.
const alignEps = 1e-12

func identityRotation() r3.Rotation {
	return r3.Rotation(quat.Number{Real: 1})
}

// rotationBetween returns the rotation taking unit vector from to unit
// vector to. Antiparallel inputs rotate by pi about a deterministic axis
// orthogonal to from.
func rotationBetween(from, to r3.Vec) r3.Rotation {
	axis := r3.Cross(from, to)
	s := r3.Norm(axis)
	c := r3.Dot(from, to)
	if s <= alignEps {
		if c >= 0 {
			return identityRotation()
		}
		return r3.NewRotation(math.Pi, orthogonal(from))
	}
	return r3.NewRotation(math.Atan2(s, c), axis)
}

// rotateMatching applies to v the rotation that took from to to. Used to
// co-rotate torque vectors with force vectors so their relative angle stays
// fixed.
func rotateMatching(from, to, v r3.Vec) r3.Vec {
	return rotationBetween(from, to).Rotate(v)
}

// orthogonal returns a deterministic unit vector orthogonal to n: n crossed
// with the coordinate axis of n's smallest component.
func orthogonal(n r3.Vec) r3.Vec {
	ax, ay, az := math.Abs(n.X), math.Abs(n.Y), math.Abs(n.Z)
	basis := r3.Vec{X: 1}
	small := ax
	if ay < small {
		basis = r3.Vec{Y: 1}
		small = ay
	}
	if az < small {
		basis = r3.Vec{Z: 1}
	}
	return r3.Unit(r3.Cross(n, basis))
}
