package peaks

import "sort"

// FindPeaks returns the indices of strict local maxima of x whose value is at
// least height, keeping only peaks at least distance indices apart.
//
// A strict local maximum is greater than both immediate neighbours, so
// endpoints and plateaus never qualify. When two peaks are closer than
// distance, the larger survives; on equal values the later index wins.
// Indices are returned in ascending order.
func FindPeaks(x []float64, height float64, distance int) []int {
	var candidates []int
	for i := 1; i < len(x)-1; i++ {
		if x[i] > x[i-1] && x[i] > x[i+1] && x[i] >= height {
			candidates = append(candidates, i)
		}
	}
	if distance <= 1 || len(candidates) < 2 {
		return candidates
	}

	// Visit by priority: larger value first, later index on ties.
	byPriority := make([]int, len(candidates))
	copy(byPriority, candidates)
	sort.Slice(byPriority, func(i, j int) bool {
		a, b := byPriority[i], byPriority[j]
		if x[a] != x[b] {
			return x[a] > x[b]
		}
		return a > b
	})

	removed := make(map[int]bool, len(candidates))
	for _, p := range byPriority {
		if removed[p] {
			continue
		}
		for _, q := range candidates {
			if q != p && !removed[q] && abs(q-p) < distance {
				removed[q] = true
			}
		}
	}

	kept := make([]int, 0, len(candidates))
	for _, c := range candidates {
		if !removed[c] {
			kept = append(kept, c)
		}
	}
	return kept
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
