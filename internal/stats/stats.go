// Package stats computes percentile and aggregate summaries over duration
// samples measured in seconds.
package stats

import (
	"math"
	"sort"

	mstats "github.com/montanaflynn/stats"
)

// Percentile returns the value at p (in [0,1]) of an ascending-sorted slice,
// using linear interpolation between the closest ranks. An empty slice yields
// 0 and a single-element slice yields that element for any p.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := float64(len(sorted)-1) * p
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo]*(float64(hi)-rank) + sorted[hi]*(rank-float64(lo))
}

// Summary aggregates a set of duration samples, all figures in seconds.
type Summary struct {
	Count int
	Avg   float64
	P50   float64
	P90   float64
	Min   float64
	Max   float64
}

// Summarize computes a Summary over the given samples. The input is not
// modified; an empty input produces a zero Summary.
func Summarize(samples []float64) Summary {
	if len(samples) == 0 {
		return Summary{}
	}
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	// Mean cannot fail on non-empty input.
	avg, _ := mstats.Mean(sorted)
	return Summary{
		Count: len(sorted),
		Avg:   avg,
		P50:   Percentile(sorted, 0.5),
		P90:   Percentile(sorted, 0.9),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
	}
}
