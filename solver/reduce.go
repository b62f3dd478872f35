package solver

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Reductions run in two stages, matching the device kernels: work groups
// of reduceGroupSize items produce one partial per group (two for min/max)
// and the host finishes over the small partial array. The CPU mirrors
// below replay the grid-stride accumulation and the in-group combine order
// exactly, so both backends reduce to bit-identical results.

const reduceGroupSize = 128

// numGroups picks the first-stage group count for n elements, capped so
// the partial readback stays small on large grids.
func numGroups(n int) int {
	g := (n + reduceGroupSize - 1) / reduceGroupSize
	if g > 64 {
		g = 64
	}
	if g < 1 {
		g = 1
	}
	return g
}

// reduceMaxAbsPartials mirrors the reduce_max_abs kernel: each work item
// accumulates over a grid stride, then the group combines pairwise by
// halving strides in local memory.
func reduceMaxAbsPartials(data []float32, groups, local int) []float32 {
	global := groups * local
	partials := make([]float32, groups)
	scratch := make([]float32, local)

	for g := 0; g < groups; g++ {
		for l := 0; l < local; l++ {
			var acc float32
			for i := g*local + l; i < len(data); i += global {
				if a := abs32(data[i]); a > acc {
					acc = a
				}
			}
			scratch[l] = acc
		}
		for stride := local / 2; stride > 0; stride /= 2 {
			for l := 0; l < stride; l++ {
				if scratch[l+stride] > scratch[l] {
					scratch[l] = scratch[l+stride]
				}
			}
		}
		partials[g] = scratch[0]
	}
	return partials
}

func reduceSumPartials(data []float32, groups, local int) []float32 {
	global := groups * local
	partials := make([]float32, groups)
	scratch := make([]float32, local)

	for g := 0; g < groups; g++ {
		for l := 0; l < local; l++ {
			var acc float32
			for i := g*local + l; i < len(data); i += global {
				acc += data[i]
			}
			scratch[l] = acc
		}
		for stride := local / 2; stride > 0; stride /= 2 {
			for l := 0; l < stride; l++ {
				scratch[l] += scratch[l+stride]
			}
		}
		partials[g] = scratch[0]
	}
	return partials
}

// reduceMinMaxPartials produces 2*groups values: all group minima first,
// then all group maxima, matching the device buffer layout.
func reduceMinMaxPartials(data []float32, groups, local int) []float32 {
	global := groups * local
	partials := make([]float32, 2*groups)
	mins := make([]float32, local)
	maxs := make([]float32, local)

	for g := 0; g < groups; g++ {
		for l := 0; l < local; l++ {
			lo := float32(math.Inf(1))
			hi := float32(math.Inf(-1))
			for i := g*local + l; i < len(data); i += global {
				if data[i] < lo {
					lo = data[i]
				}
				if data[i] > hi {
					hi = data[i]
				}
			}
			mins[l], maxs[l] = lo, hi
		}
		for stride := local / 2; stride > 0; stride /= 2 {
			for l := 0; l < stride; l++ {
				if mins[l+stride] < mins[l] {
					mins[l] = mins[l+stride]
				}
				if maxs[l+stride] > maxs[l] {
					maxs[l] = maxs[l+stride]
				}
			}
		}
		partials[g] = mins[0]
		partials[groups+g] = maxs[0]
	}
	return partials
}

// reduceMaxAbs is the full host-side max-abs reduction used for the
// adaptive time step on the CPU backend.
func reduceMaxAbs(data []float32) float32 {
	return finishMax(reduceMaxAbsPartials(data, numGroups(len(data)), reduceGroupSize))
}

// The finish helpers fold the per-group partials on the host. The arrays
// are tiny, so the float64 round trip through gonum costs nothing and
// keeps the summation order independent of the group count.

func finishMax(partials []float32) float32 {
	return float32(floats.Max(toF64(partials)))
}

func finishSum(partials []float32) float32 {
	return float32(floats.Sum(toF64(partials)))
}

func finishMinMax(partials []float32) Range {
	wide := toF64(partials)
	groups := len(partials) / 2
	return Range{
		Min: float32(floats.Min(wide[:groups])),
		Max: float32(floats.Max(wide[groups:])),
	}
}

func toF64(src []float32) []float64 {
	dst := make([]float64, len(src))
	for i, v := range src {
		dst[i] = float64(v)
	}
	return dst
}
