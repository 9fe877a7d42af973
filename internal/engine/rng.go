package engine

import (
	"math"
	"math/rand"
	"time"
)

// newRand constructs the engine's single seedable PRNG. A configured seed
// of 0 means "unseeded" — the engine draws its own seed from the clock so
// separate runs diverge, while a nonzero seed makes a run reproducible
// for tests, per spec.md §9 ("single seedable PRNG... seed it from
// configuration").
func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// noise multiplies value by (1 + N(0, sigmaPct)), the Gaussian jitter
// used throughout per-bottle station processing.
func noise(rng *rand.Rand, value, sigmaPct float64) float64 {
	return value * (1 + rng.NormFloat64()*sigmaPct)
}

// uniform draws from U(lo, hi).
func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

// expovariate draws an exponential inter-arrival time with the given
// mean, matching Python's random.expovariate(1/mean).
func expovariate(rng *rand.Rand, mean float64) float64 {
	return -mean * math.Log(1-rng.Float64())
}
