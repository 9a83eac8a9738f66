// Package energy implements the per-tick dispatch and balancing computation
// for the campus microgrid: generation and load sampling, the battery
// decision, grid allocation, alert evaluation and the hourly projection.
//
// Everything in this package is pure in-memory arithmetic. Randomness comes
// exclusively from an injected Source so that a seeded run is reproducible.
package energy

import (
	"math/rand/v2"
	"time"
)

// Source supplies uniformly distributed values in [0, 1).
// *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	Float64() float64
}

// NewSource returns a deterministic PCG-backed source for the given seed.
func NewSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewTimeSource returns a source seeded from the wall clock.
func NewTimeSource() *rand.Rand {
	return NewSource(uint64(time.Now().UnixNano()))
}

// uniform draws from [lo, hi).
func uniform(src Source, lo, hi float64) float64 {
	return lo + src.Float64()*(hi-lo)
}

// jitter draws from [center-spread, center+spread).
func jitter(src Source, center, spread float64) float64 {
	return uniform(src, center-spread, center+spread)
}

// constSource always returns the same value. Used to pin draws in tests and
// by callers that want the midpoint of every band.
type constSource float64

func (c constSource) Float64() float64 { return float64(c) }

// Fixed returns a Source that yields v on every draw. v must be in [0, 1).
func Fixed(v float64) Source {
	return constSource(v)
}
