package manifold

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

const tol = 1e-9

func vecNear(a, b r3.Vec, tol float64) bool {
	return math.Abs(a.X-b.X) < tol && math.Abs(a.Y-b.Y) < tol && math.Abs(a.Z-b.Z) < tol
}

func TestZeroSentinel(t *testing.T) {
	var e Ellipsoid
	if !e.Zero() {
		t.Error("zero value must be the no-constraint sentinel")
	}
	if err := e.Validate(); err != nil {
		t.Errorf("sentinel must validate: %v", err)
	}

	s := Sphere(r3.Vec{}, 1)
	if s.Zero() {
		t.Error("unit sphere is not the sentinel")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		e       Ellipsoid
		wantErr bool
	}{
		{"sphere", Sphere(r3.Vec{}, 2), false},
		{"ellipsoid", Ellipsoid{RX: 1, RY: 2, RZ: 3}, false},
		{"negative radius", Ellipsoid{RX: 1, RY: -2, RZ: 3}, true},
		{"partial zero", Ellipsoid{RX: 1, RY: 0, RZ: 3}, true},
		{"nan radius", Ellipsoid{RX: math.NaN(), RY: 1, RZ: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.e.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSphereNormal(t *testing.T) {
	s := Sphere(r3.Vec{}, 1)

	tests := []struct {
		name string
		pos  r3.Vec
		want r3.Vec
	}{
		{"x pole", r3.Vec{X: 1}, r3.Vec{X: 1}},
		{"y pole", r3.Vec{Y: 1}, r3.Vec{Y: 1}},
		{"negative z pole", r3.Vec{Z: -1}, r3.Vec{Z: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Normal(tt.pos); !vecNear(got, tt.want, tol) {
				t.Errorf("Normal(%v) = %v, want %v", tt.pos, got, tt.want)
			}
		})
	}
}

func TestEllipsoidNormalUnit(t *testing.T) {
	e := Ellipsoid{Center: r3.Vec{X: 1, Y: -2}, RX: 2, RY: 1, RZ: 3}

	// points on the surface along the principal axes
	points := []r3.Vec{
		{X: 3, Y: -2, Z: 0},
		{X: 1, Y: -1, Z: 0},
		{X: 1, Y: -2, Z: 3},
	}
	for _, p := range points {
		n := e.Normal(p)
		if math.Abs(r3.Norm(n)-1) > tol {
			t.Errorf("|Normal(%v)| = %v, want 1", p, r3.Norm(n))
		}
		// axis points have axis-aligned normals
		out := r3.Sub(p, e.Center)
		if math.Abs(r3.Cos(n, out)-1) > tol {
			t.Errorf("Normal(%v) = %v does not point outward along %v", p, n, out)
		}
	}
}

func TestProject(t *testing.T) {
	s := Sphere(r3.Vec{}, 2)
	p := s.Project(r3.Vec{X: 5, Y: 5, Z: 0})
	if math.Abs(r3.Norm(p)-2) > tol {
		t.Errorf("|Project| = %v, want 2", r3.Norm(p))
	}
}
