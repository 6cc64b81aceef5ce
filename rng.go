package linesim

import (
	"math/rand/v2"
)

// rng is the run's single randomness source. Work durations and quality
// checks both draw from it, so a fixed seed plus the cooperative
// scheduler's fixed interleaving reproduces a run exactly.
type rng struct {
	r *rand.Rand
}

// newRNG seeds from the given value, or from entropy when seed is nil.
func newRNG(seed *int64) *rng {
	if seed == nil {
		return &rng{r: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
	}
	s := uint64(*seed)
	return &rng{r: rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))}
}

// duration samples a task duration from N(mu, sigma²) clamped to a
// minimum of one minute. Zero sigma degenerates to the nominal value,
// still clamped.
func (g *rng) duration(mu, sigma float64) float64 {
	d := mu
	if sigma > 0 {
		d = g.r.NormFloat64()*sigma + mu
	}
	if d < 1 {
		return 1
	}
	return d
}

// bernoulli draws a rework decision with probability p.
func (g *rng) bernoulli(p float64) bool {
	if p <= 0 {
		return false
	}
	return g.r.Float64() < p
}
