package fsrs

import (
	"math"
	"math/rand/v2"
)

var fuzzRanges = []struct {
	start, end, factor float64
}{
	{2.5, 7.0, 0.15},
	{7.0, 20.0, 0.10},
	{20.0, math.Inf(1), 0.05},
}

// fuzz spreads an interval of at least 3 days over a small window so cards
// learned together do not stay due together.
func fuzz(interval, maxInterval int, rng *rand.Rand) int {
	ivl := float64(interval)
	if ivl < 2.5 {
		return interval
	}
	delta := 1.0
	for _, r := range fuzzRanges {
		delta += r.factor * math.Max(math.Min(ivl, r.end)-r.start, 0)
	}
	hi := min(int(math.Round(ivl+delta)), maxInterval)
	lo := min(max(2, int(math.Round(ivl-delta))), hi)
	return min(lo+rng.IntN(hi-lo+1), maxInterval)
}
