package rng

import (
	"math"
	"testing"
)

func TestStreamReproducible(t *testing.T) {
	a := NewStream(7, 123, 42)
	b := NewStream(7, 123, 42)

	for i := 0; i < 100; i++ {
		if got, want := a.Uniform(), b.Uniform(); got != want {
			t.Fatalf("draw %d: %v != %v", i, got, want)
		}
	}
}

func TestStreamKeysIndependent(t *testing.T) {
	base := NewStream(7, 123, 42)
	baseVal := base.Uniform()

	tests := []struct {
		name   string
		stream Stream
	}{
		{"different tag", NewStream(8, 123, 42)},
		{"different timestep", NewStream(7, 124, 42)},
		{"different seed", NewStream(7, 123, 43)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.stream
			if got := s.Uniform(); got == baseVal {
				t.Errorf("first draw %v collides with base stream", got)
			}
		})
	}
}

func TestUniformRange(t *testing.T) {
	s := NewStream(1, 0, 1)
	for i := 0; i < 10000; i++ {
		u := s.Uniform()
		if u < 0 || u >= 1 {
			t.Fatalf("draw %d: %v outside [0, 1)", i, u)
		}
	}

	s = NewStream(1, 0, 1)
	for i := 0; i < 1000; i++ {
		u := s.UniformRange(-2, 3)
		if u < -2 || u >= 3 {
			t.Fatalf("draw %d: %v outside [-2, 3)", i, u)
		}
	}
}

func TestGaussianZeroStd(t *testing.T) {
	s := NewStream(3, 9, 42)
	for i := 0; i < 10; i++ {
		if g := s.Gaussian(0); g != 0 {
			t.Fatalf("draw %d: Gaussian(0) = %v, want 0", i, g)
		}
	}
}

func TestGaussianMoments(t *testing.T) {
	s := NewStream(11, 5, 42)
	const n = 50000

	var sum, sumSq float64
	for i := 0; i < n; i++ {
		g := s.Gaussian(1)
		sum += g
		sumSq += g * g
	}
	mean := sum / n
	variance := sumSq/n - mean*mean

	if math.Abs(mean) > 0.02 {
		t.Errorf("mean = %v, want ~0", mean)
	}
	if math.Abs(variance-1) > 0.05 {
		t.Errorf("variance = %v, want ~1", variance)
	}
}

func TestGaussianConsumesTwoDraws(t *testing.T) {
	// streams must stay position-aligned whatever mix of draw kinds a
	// code path uses
	a := NewStream(2, 2, 2)
	b := NewStream(2, 2, 2)

	a.Gaussian(1)
	b.Uniform()
	b.Uniform()

	if got, want := a.Uniform(), b.Uniform(); got != want {
		t.Fatalf("after Gaussian vs two Uniforms: %v != %v", got, want)
	}
}

func TestStreamPinnedValues(t *testing.T) {
	// pinned output of this generator; any change to the key mixing or
	// the output function shows up here
	s := NewStream(7, 123, 42)
	want := []float64{
		0.7455407889004371,
		0.36502867245498316,
		0.7806949404131474,
		0.2272202553324163,
	}
	for i, w := range want {
		if got := s.Uniform(); got != w {
			t.Errorf("draw %d = %v, want %v", i, got, w)
		}
	}
}
