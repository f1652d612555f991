package engine

import (
	"math"
	"math/rand/v2"
)

// ptrsThreshold is the mean above which transformed rejection replaces
// Knuth's multiplication method.
const ptrsThreshold = 10

// poisson draws from Poisson(lambda). lambda <= 0 always yields 0.
func poisson(rng *rand.Rand, lambda float64) int64 {
	switch {
	case lambda <= 0 || math.IsNaN(lambda):
		return 0
	case lambda < ptrsThreshold:
		return poissonKnuth(rng, lambda)
	default:
		return poissonPTRS(rng, lambda)
	}
}

func poissonKnuth(rng *rand.Rand, lambda float64) int64 {
	l := math.Exp(-lambda)
	var k int64
	p := 1.0
	for {
		p *= rng.Float64()
		if p <= l {
			return k
		}
		k++
	}
}

// poissonPTRS is Hörmann's transformed rejection with squeeze (1993).
func poissonPTRS(rng *rand.Rand, lambda float64) int64 {
	slam := math.Sqrt(lambda)
	loglam := math.Log(lambda)
	b := 0.931 + 2.53*slam
	a := -0.059 + 0.02483*b
	invAlpha := 1.1239 + 1.1328/(b-3.4)
	vr := 0.9277 - 3.6224/(b-2)

	for {
		u := rng.Float64() - 0.5
		v := rng.Float64()
		us := 0.5 - math.Abs(u)
		k := math.Floor((2*a/us+b)*u + lambda + 0.43)
		if us >= 0.07 && v <= vr {
			return int64(k)
		}
		if k < 0 || (us < 0.013 && v > us) {
			continue
		}
		lg, _ := math.Lgamma(k + 1)
		if math.Log(v)+math.Log(invAlpha)-math.Log(a/(us*us)+b) <= -lambda+k*loglam-lg {
			return int64(k)
		}
	}
}

// splitmix64 scrambles a counter into a well-distributed 64-bit value.
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// trialRNG returns the generator for one trial of one stream. Every (seed, trial,
// stream) triple maps to its own PCG sequence, so results do not depend on
// which goroutine runs the trial.
func trialRNG(seed uint64, trial, stream int) *rand.Rand {
	hi := splitmix64(seed ^ splitmix64(uint64(stream)))
	lo := splitmix64(hi ^ uint64(trial))
	return rand.New(rand.NewPCG(hi, lo))
}
