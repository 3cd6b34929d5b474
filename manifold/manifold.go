// Package manifold evaluates constraint surfaces that particle orientations
// are confined to.
package manifold

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Ellipsoid is an implicit-surface descriptor
//
//	(x-cx)²/rx² + (y-cy)²/ry² + (z-cz)²/rz² = 1.
//
// The zero value (all radii zero) is the "no constraint" sentinel; callers
// check Zero before evaluating.
type Ellipsoid struct {
	Center r3.Vec
	RX     float64
	RY     float64
	RZ     float64
}

// Sphere returns an ellipsoid with equal radii.
func Sphere(center r3.Vec, radius float64) Ellipsoid {
	return Ellipsoid{Center: center, RX: radius, RY: radius, RZ: radius}
}

// Zero reports whether e is the no-constraint sentinel.
func (e Ellipsoid) Zero() bool {
	return e.RX == 0 && e.RY == 0 && e.RZ == 0
}

// Validate checks that the descriptor is usable as a constraint surface.
// The zero sentinel is valid.
func (e Ellipsoid) Validate() error {
	if e.Zero() {
		return nil
	}
	for _, r := range []float64{e.RX, e.RY, e.RZ} {
		if math.IsNaN(r) || math.IsInf(r, 0) || r <= 0 {
			return fmt.Errorf("manifold: ellipsoid radii must be finite and positive, got (%g, %g, %g)", e.RX, e.RY, e.RZ)
		}
	}
	return nil
}

// Normal returns the unit outward normal of the surface at p, which is
// assumed on or near the surface. With a zero radius the result is
// degenerate (NaN components); callers skip manifold logic for the Zero
// sentinel instead of relying on the output here.
func (e Ellipsoid) Normal(p r3.Vec) r3.Vec {
	d := r3.Sub(p, e.Center)
	g := r3.Vec{
		X: 2 * d.X / (e.RX * e.RX),
		Y: 2 * d.Y / (e.RY * e.RY),
		Z: 2 * d.Z / (e.RZ * e.RZ),
	}
	return r3.Unit(g)
}

// Project maps p radially onto the surface. Used by drivers that advect
// particle positions and need to keep them on the manifold.
func (e Ellipsoid) Project(p r3.Vec) r3.Vec {
	d := r3.Sub(p, e.Center)
	s := d.X*d.X/(e.RX*e.RX) + d.Y*d.Y/(e.RY*e.RY) + d.Z*d.Z/(e.RZ*e.RZ)
	if s <= 0 || math.IsNaN(s) {
		return p
	}
	return r3.Add(e.Center, r3.Scale(1/math.Sqrt(s), d))
}
