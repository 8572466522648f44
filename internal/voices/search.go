package voices

import "sort"

// upperBound returns the first index whose tick is strictly greater than t.
// Both scrub directions and the rebuild path share it.
func upperBound(ticks []int64, t float64) int {
	return sort.Search(len(ticks), func(i int) bool {
		return float64(ticks[i]) > t
	})
}
