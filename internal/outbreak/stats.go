package outbreak

import (
	"math"
	"slices"

	"cropradar/internal/types"
)

// LowerMedian returns the order statistic at index floor((n-1)/2) of the
// sorted counts, which is the lower of the two middle values when n is even.
// The input is not modified. Returns 0 for an empty series.
func LowerMedian(counts []int) float64 {
	if len(counts) == 0 {
		return 0
	}
	sorted := slices.Clone(counts)
	slices.Sort(sorted)
	return float64(sorted[(len(sorted)-1)/2])
}

// PopulationStdDev returns the population standard deviation of counts.
// Returns 0 for an empty series.
func PopulationStdDev(counts []int) float64 {
	n := len(counts)
	if n == 0 {
		return 0
	}

	// Welford's update keeps the sum of squares numerically stable.
	var mean, m2 float64
	for i, c := range counts {
		x := float64(c)
		delta := x - mean
		mean += delta / float64(i+1)
		m2 += delta * (x - mean)
	}
	if m2 < 0 {
		m2 = 0
	}
	return math.Sqrt(m2 / float64(n))
}

// ComputeBaseline derives the baseline of one cell from its per-day counts.
// Sigma is floored so the classifier stays defined for flat histories.
// Returns false when the cell has no observed days.
func ComputeBaseline(geohash5 string, counts []int, sigmaFloor float64) (types.BaselineStat, bool) {
	if len(counts) == 0 {
		return types.BaselineStat{}, false
	}
	return types.BaselineStat{
		Geohash5: geohash5,
		Median:   LowerMedian(counts),
		Sigma:    math.Max(PopulationStdDev(counts), sigmaFloor),
	}, true
}
