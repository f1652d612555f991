package engine

import (
	"fmt"
	"math"
)

// maxGridPoints bounds SimplexGrid so a tiny step over many strategies cannot
// exhaust memory.
const maxGridPoints = 1_000_000

// gridSize returns C(k+n-1, n-1), saturating at maxGridPoints+1.
func gridSize(n, k int) int {
	size := 1.0
	for i := 1; i < n; i++ {
		size = size * float64(k+i) / float64(i)
		if size > maxGridPoints {
			return maxGridPoints + 1
		}
	}
	return int(math.Round(size))
}

// SimplexGrid enumerates every allocation of n proportions that are multiples of
// 1/K, K = floor(1/step), and sum to exactly 1. Order is lexicographic with the
// first proportion varying slowest, so for n = 3 it visits (0,0,1), (0,0.1,0.9), ...
func SimplexGrid(n int, step float64) ([][]float64, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: simplex needs at least one dimension, got %d", ErrInvalidParameter, n)
	}
	if !(step > 0 && step <= 1) {
		return nil, fmt.Errorf("%w: step must be in (0,1], got %v", ErrInvalidParameter, step)
	}
	k := int(math.Floor(1/step + 1e-9))
	if size := gridSize(n, k); size > maxGridPoints {
		return nil, fmt.Errorf("%w: %d strategies at step %v exceed %d grid points", ErrInvalidParameter, n, step, maxGridPoints)
	}

	out := make([][]float64, 0, gridSize(n, k))
	parts := make([]int, n)
	var walk func(i, remaining int)
	walk = func(i, remaining int) {
		if i == n-1 {
			parts[i] = remaining
			point := make([]float64, n)
			for j, p := range parts {
				point[j] = float64(p) / float64(k)
			}
			out = append(out, point)
			return
		}
		for p := 0; p <= remaining; p++ {
			parts[i] = p
			walk(i+1, remaining-p)
		}
	}
	walk(0, k)
	return out, nil
}
