package popsimgo

import (
	"math"
	"testing"
)

func TestRNG_UniformOpenInterval(t *testing.T) {
	rng := NewRNG(42)
	for i := 0; i < 100000; i++ {
		u := rng.Uniform()
		if u <= 0 || u >= 1 {
			t.Fatalf(InvalidFloatParameterError, "uniform draw", u, "must lie in (0,1)")
		}
	}
}

func TestRNG_Deterministic(t *testing.T) {
	a := NewRNG(12345)
	b := NewRNG(12345)
	for i := 0; i < 1000; i++ {
		if x, y := a.Uniform(), b.Uniform(); x != y {
			t.Errorf(UnequalFloatParameterError, "draw", x, y)
		}
	}
}

func TestRNG_ZeroSeedRemapped(t *testing.T) {
	a := NewRNG(0)
	b := NewRNG(1)
	for i := 0; i < 100; i++ {
		if x, y := a.Uniform(), b.Uniform(); x != y {
			t.Errorf(UnequalFloatParameterError, "draw", x, y)
		}
	}
}

func TestRNG_ExpoNonPositiveRate(t *testing.T) {
	rng := NewRNG(7)
	if v := rng.Expo(0); !math.IsInf(v, 1) {
		t.Errorf(UnequalFloatParameterError, "waiting time", math.Inf(1), v)
	}
	if v := rng.Expo(-1); !math.IsInf(v, 1) {
		t.Errorf(UnequalFloatParameterError, "waiting time", math.Inf(1), v)
	}
}

func TestRNG_ExpoFinitePositive(t *testing.T) {
	rng := NewRNG(7)
	for i := 0; i < 1000; i++ {
		v := rng.Expo(0.5)
		if v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			t.Fatalf(InvalidFloatParameterError, "waiting time", v, "must be finite and positive")
		}
	}
}

func TestRNG_NormalMoments(t *testing.T) {
	rng := NewRNG(99)
	n := 100000
	sum := 0.0
	sumSq := 0.0
	for i := 0; i < n; i++ {
		v := rng.Normal(10, 2)
		sum += v
		sumSq += v * v
	}
	mean := sum / float64(n)
	sd := math.Sqrt(sumSq/float64(n) - mean*mean)
	if math.Abs(mean-10) > 0.1 {
		t.Errorf(UnequalFloatParameterError, "mean", 10.0, mean)
	}
	if math.Abs(sd-2) > 0.1 {
		t.Errorf(UnequalFloatParameterError, "standard deviation", 2.0, sd)
	}
}

// Drawing from one child must not change the sequence produced by a
// sibling, and children derived with equal names from the same parent
// state must be identical.
func TestRNG_ChildIsolation(t *testing.T) {
	parent := NewRNG(42)
	first := parent.Child("A")
	var reference []float64
	for i := 0; i < 100; i++ {
		reference = append(reference, first.Uniform())
	}

	sibling := parent.Child("B")
	for i := 0; i < 1000; i++ {
		sibling.Uniform()
	}

	second := parent.Child("A")
	for i := 0; i < 100; i++ {
		if v := second.Uniform(); v != reference[i] {
			t.Fatalf(UnequalFloatParameterError, "child draw", reference[i], v)
		}
	}
}

func TestRNG_ChildLeavesParentUnchanged(t *testing.T) {
	a := NewRNG(42)
	b := NewRNG(42)
	a.Child("anything")
	for i := 0; i < 100; i++ {
		if x, y := a.Uniform(), b.Uniform(); x != y {
			t.Errorf(UnequalFloatParameterError, "draw", y, x)
		}
	}
}

func TestRNG_ChildrenDiffer(t *testing.T) {
	parent := NewRNG(42)
	a := parent.Child("A")
	b := parent.Child("B")
	same := 0
	for i := 0; i < 100; i++ {
		if a.Uniform() == b.Uniform() {
			same++
		}
	}
	if same == 100 {
		t.Errorf("children derived with different names produced identical streams")
	}
}
