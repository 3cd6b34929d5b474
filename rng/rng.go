// Package rng provides deterministic per-particle random streams.
//
// A Stream is keyed by (tag, timestep, seed). Draws depend only on the key
// and the position within the stream, never on which worker produced them or
// in what order particles were processed. This is what makes simulation
// results bit-identical across different particle decompositions, which the
// regression tests rely on. The randomness is simulation-statistics quality,
// not cryptographic.
package rng

import "math"

// Stream is a small counter-based generator (PCG-XSH-RR output over a
// 64-bit LCG state, keys mixed with splitmix64).
type Stream struct {
	state uint64
	inc   uint64
}

const (
	pcgMult = 6364136223846793005
)

// splitmix64 is the standard 64-bit finalizing mixer.
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// NewStream returns the stream for the given (tag, timestep, seed) triple.
func NewStream(tag uint32, timestep uint64, seed uint32) Stream {
	key := splitmix64(uint64(seed)<<32 | uint64(tag))
	ctr := splitmix64(timestep ^ uint64(seed)*0x9e3779b97f4a7c15)
	s := Stream{
		state: key,
		inc:   ctr<<1 | 1,
	}
	// settle the state so the first output already depends on both words
	s.next32()
	s.next32()
	return s
}

func (s *Stream) next32() uint32 {
	old := s.state
	s.state = old*pcgMult + s.inc
	xorshifted := uint32(((old >> 18) ^ old) >> 27)
	rot := uint32(old >> 59)
	return (xorshifted >> rot) | (xorshifted << ((-rot) & 31))
}

// Uniform returns the next draw in [0, 1) with 53 bits of precision.
func (s *Stream) Uniform() float64 {
	hi := uint64(s.next32())
	lo := uint64(s.next32())
	return float64((hi<<32|lo)>>11) / (1 << 53)
}

// UniformRange returns the next draw in [lo, hi).
func (s *Stream) UniformRange(lo, hi float64) float64 {
	return lo + (hi-lo)*s.Uniform()
}

// Gaussian returns a normal draw with mean zero and the given standard
// deviation, via Box-Muller. Every call consumes exactly two uniform draws,
// so stream positions stay aligned across code paths.
func (s *Stream) Gaussian(std float64) float64 {
	u := s.Uniform()
	v := s.Uniform()
	r := math.Sqrt(-2 * math.Log(1-u))
	return std * r * math.Cos(2*math.Pi*v)
}
