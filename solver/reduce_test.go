package solver

import (
	"math"
	"math/rand"
	"testing"
)

func testData(n int) []float32 {
	rng := rand.New(rand.NewSource(7))
	data := make([]float32, n)
	for i := range data {
		data[i] = float32(rng.NormFloat64())
	}
	return data
}

// The two-stage max-abs reduction must match a plain serial scan exactly,
// not just within tolerance: max never loses precision to reordering.
func TestReduceMaxAbsBitIdentical(t *testing.T) {
	data := testData(1000)

	var serial float32
	for _, v := range data {
		if a := abs32(v); a > serial {
			serial = a
		}
	}

	got := reduceMaxAbs(data)
	if got != serial {
		t.Fatalf("two-stage max-abs %v != serial %v", got, serial)
	}
}

func TestReduceMinMaxLayoutAndValues(t *testing.T) {
	data := testData(1000)
	groups := numGroups(len(data))
	partials := reduceMinMaxPartials(data, groups, reduceGroupSize)

	if len(partials) != 2*groups {
		t.Fatalf("partials length %d, want %d", len(partials), 2*groups)
	}
	// Minima occupy the first half, maxima the second.
	for g := 0; g < groups; g++ {
		if partials[g] > partials[groups+g] {
			t.Errorf("group %d: min %v > max %v", g, partials[g], partials[groups+g])
		}
	}

	var lo, hi float32 = data[0], data[0]
	for _, v := range data {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	r := finishMinMax(partials)
	if r.Min != lo || r.Max != hi {
		t.Errorf("range {%v %v}, want {%v %v}", r.Min, r.Max, lo, hi)
	}
}

func TestReduceSumCloseToSerial(t *testing.T) {
	data := testData(1000)

	var serial float64
	for _, v := range data {
		serial += float64(v)
	}

	partials := reduceSumPartials(data, numGroups(len(data)), reduceGroupSize)
	got := float64(finishSum(partials))
	if math.Abs(got-serial) > 1e-3 {
		t.Errorf("two-stage sum %v, serial %v", got, serial)
	}
}

func TestNumGroups(t *testing.T) {
	cases := []struct {
		n, want int
	}{
		{1, 1},
		{128, 1},
		{129, 2},
		{1000, 8},
		{1 << 20, 64}, // capped
	}
	for _, c := range cases {
		if got := numGroups(c.n); got != c.want {
			t.Errorf("numGroups(%d) = %d, want %d", c.n, got, c.want)
		}
	}
}
