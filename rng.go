package popsimgo

import (
	"hash/fnv"
	"math"
)

// RNG is a seedable 32-bit xorshift generator. All stochastic draws made
// during a simulation come from an RNG or one of its named children, so a
// run is fully determined by its seed and the derivation names used.
type RNG struct {
	state uint32
}

// NewRNG creates a new generator from a 32-bit seed.
// A zero seed is remapped to one to avoid the degenerate all-zero state.
func NewRNG(seed uint32) *RNG {
	if seed == 0 {
		seed = 1
	}
	return &RNG{state: seed}
}

// next advances the xorshift state and returns the raw 32-bit value.
// The state is never zero, so next never returns zero.
func (r *RNG) next() uint32 {
	x := r.state
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	r.state = x
	return x
}

// Uint32 returns the next raw draw. Used to derive sub-seeds for modules.
func (r *RNG) Uint32() uint32 {
	return r.next()
}

// Uniform returns a draw in the open interval (0,1).
// The raw draw is at least 1, so the result is never exactly 0 or 1.
func (r *RNG) Uniform() float64 {
	return float64(r.next()) / 4294967296.0
}

// Normal returns a normally distributed draw with the given mean and
// standard deviation using a Box-Muller pair of uniform draws.
func (r *RNG) Normal(mean, sd float64) float64 {
	u1 := r.Uniform()
	u2 := r.Uniform()
	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	return mean + sd*z
}

// Expo returns an exponentially distributed waiting time for the given
// rate. A non-positive rate returns positive infinity.
func (r *RNG) Expo(rate float64) float64 {
	if rate <= 0 {
		return math.Inf(1)
	}
	u := r.Uniform()
	return -math.Log(1-u) / rate
}

// Logistic returns a draw from a logistic distribution with the given
// location and scale, via the inverse CDF.
func (r *RNG) Logistic(location, scale float64) float64 {
	u := r.Uniform()
	return location + scale*math.Log(u/(1-u))
}

// Child derives a new generator by mixing the current state with a stable
// hash of the namespace string. The parent state is not advanced by the
// derivation, so two children derived with the same namespace from an
// identically seeded parent produce identical streams, and sibling
// namespaces do not perturb each other.
func (r *RNG) Child(namespace string) *RNG {
	h := fnv.New32a()
	h.Write([]byte(namespace))
	return NewRNG(r.state ^ h.Sum32())
}
