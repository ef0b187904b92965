package diffabund

import "sort"

// BenjaminiHochberg returns the FDR-adjusted p-values for pvals, in the
// same order. Each adjusted value is p * n / rank, capped at 1 and made
// monotone from the largest p downwards.
func BenjaminiHochberg(pvals []float64) []float64 {
	n := len(pvals)
	if n == 0 {
		return nil
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return pvals[idx[a]] < pvals[idx[b]] })

	adjusted := make([]float64, n)
	minP := 1.0
	for i := n - 1; i >= 0; i-- {
		p := pvals[idx[i]] * float64(n) / float64(i+1)
		if p > 1 {
			p = 1
		}
		if p < minP {
			minP = p
		}
		adjusted[idx[i]] = minP
	}
	return adjusted
}
