package segment

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// rbfCost evaluates the kernel cost of signal slices in constant time using a
// 2D prefix sum over the Gram matrix.
type rbfCost struct {
	n      int
	prefix []float64 // (n+1)*(n+1)
}

// newRBFCost builds the Gram matrix exp(-d²/median(d²)) with the scaled
// distances clipped to [1e-2, 1e2].
func newRBFCost(signal [][]float64) *rbfCost {
	n := len(signal)
	sq := make([]float64, n*n)
	pairs := make([]float64, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := floats.Distance(signal[i], signal[j], 2)
			d *= d
			sq[i*n+j] = d
			sq[j*n+i] = d
			pairs = append(pairs, d)
		}
	}
	scale := 1.0
	if len(pairs) > 0 {
		sort.Float64s(pairs)
		if median := stat.Quantile(0.5, stat.Empirical, pairs, nil); median > 0 {
			scale = median
		}
	}

	stride := n + 1
	prefix := make([]float64, stride*stride)
	for i := 0; i < n; i++ {
		rowSum := 0.0
		for j := 0; j < n; j++ {
			k := 1.0
			if i != j {
				scaled := math.Min(math.Max(sq[i*n+j]/scale, 1e-2), 1e2)
				k = math.Exp(-scaled)
			}
			rowSum += k
			prefix[(i+1)*stride+j+1] = prefix[i*stride+j+1] + rowSum
		}
	}
	return &rbfCost{n: n, prefix: prefix}
}

// cost returns the kernel cost of signal[start:end].
func (c *rbfCost) cost(start, end int) float64 {
	length := end - start
	if length <= 0 {
		return 0
	}
	stride := c.n + 1
	block := c.prefix[end*stride+end] - c.prefix[start*stride+end] - c.prefix[end*stride+start] + c.prefix[start*stride+start]
	return float64(length) - block/float64(length)
}

// pelt runs Pruned Exact Linear Time change-point detection and returns the
// sorted segment end positions (exclusive), always ending with len(signal).
func pelt(signal [][]float64, penalty float64, minSize int) []int {
	n := len(signal)
	if n == 0 {
		return nil
	}
	if minSize < 1 {
		minSize = 1
	}
	if n < 2*minSize {
		return []int{n}
	}
	c := newRBFCost(signal)

	best := make([]float64, n+1)
	last := make([]int, n+1)
	reached := make([]bool, n+1)
	reached[0] = true
	var admissible []int

	candidates := make([]int, 0, n)
	for k := minSize; k < n; k++ {
		candidates = append(candidates, k)
	}
	candidates = append(candidates, n)

	for _, end := range candidates {
		admissible = append(admissible, end-minSize)
		type sub struct {
			start int
			total float64
		}
		subs := make([]sub, 0, len(admissible))
		bestTotal, bestStart := math.Inf(1), -1
		for _, start := range admissible {
			if !reached[start] {
				continue
			}
			total := best[start] + c.cost(start, end) + penalty
			subs = append(subs, sub{start: start, total: total})
			if total < bestTotal {
				bestTotal, bestStart = total, start
			}
		}
		if bestStart < 0 {
			continue
		}
		best[end], last[end], reached[end] = bestTotal, bestStart, true

		pruned := admissible[:0]
		for _, s := range subs {
			if s.total <= bestTotal+penalty {
				pruned = append(pruned, s.start)
			}
		}
		admissible = pruned
	}

	var bkps []int
	for end := n; end > 0; end = last[end] {
		bkps = append(bkps, end)
	}
	sort.Ints(bkps)
	return bkps
}
