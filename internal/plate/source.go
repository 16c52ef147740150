package plate

import (
	"math/rand/v2"
)

// Source supplies the uniform random numbers that drive a walk. A Source is
// owned by a single goroutine; the estimator creates one per worker.
// *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	// Float64 returns a uniformly distributed value in [0, 1).
	Float64() float64
}

// SourceFactory creates an independent Source for the given seed and stream.
// Two calls with the same arguments must produce identical sequences.
type SourceFactory func(seed, stream uint64) Source

// NewPCGSource is the default SourceFactory. Each stream is a separate PCG
// sequence, so workers seeded from the same seed do not overlap.
func NewPCGSource(seed, stream uint64) Source {
	return rand.New(rand.NewPCG(seed, mixSeed(stream, 0x9e3779b97f4a7c15)))
}

// randomSeed draws a fresh seed from the runtime's concurrency-safe source.
func randomSeed() uint64 {
	for {
		if s := rand.Uint64(); s != 0 {
			return s
		}
	}
}

// mixSeed derives a well-spread 64-bit value from a and b (splitmix64
// finaliser). It is used to derive per-stream and per-fork seeds.
func mixSeed(a, b uint64) uint64 {
	z := a + b*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
