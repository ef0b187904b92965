// Package lowess implements locally weighted scatterplot smoothing
// (Cleveland 1979): at every query point a weighted linear regression is
// fitted to the nearest span fraction of the data with tricube weights.
package lowess

import (
	"errors"
	"math"
	"sort"
)

var ErrTooFewPoints = errors.New("lowess: need at least two points")

// DefaultSpan is the fraction of points in each local window.
const DefaultSpan = 0.7

// Fit smooths y as a function of x and returns the fitted value at every
// input point, in input order. x need not be sorted.
func Fit(x, y []float64, span float64) ([]float64, error) {
	return FitAt(x, y, x, span)
}

// FitAt smooths y as a function of x and evaluates the smooth at the query
// points xq.
func FitAt(x, y, xq []float64, span float64) ([]float64, error) {
	if len(x) != len(y) {
		return nil, errors.New("lowess: x and y lengths differ")
	}
	if len(x) < 2 {
		return nil, ErrTooFewPoints
	}
	if span <= 0 || span > 1 {
		span = DefaultSpan
	}

	n := len(x)
	// Sort a copy of the points by x; the window search assumes order.
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return x[idx[a]] < x[idx[b]] })
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, j := range idx {
		xs[i] = x[j]
		ys[i] = y[j]
	}

	window := int(math.Ceil(span * float64(n)))
	if window < 2 {
		window = 2
	}
	if window > n {
		window = n
	}

	out := make([]float64, len(xq))
	for i, q := range xq {
		lo, hi := windowAround(xs, q, window)
		out[i] = fitLocal(xs[lo:hi], ys[lo:hi], q)
	}
	return out, nil
}

// windowAround returns the half-open range [lo,hi) of the window nearest
// points around q in the sorted xs.
func windowAround(xs []float64, q float64, window int) (int, int) {
	n := len(xs)
	lo := sort.SearchFloat64s(xs, q) - window/2
	if lo < 0 {
		lo = 0
	}
	if lo+window > n {
		lo = n - window
	}
	hi := lo + window
	// Slide towards q while the far edge is further away than the next
	// point outside the window.
	for lo > 0 && xs[hi-1]-q > q-xs[lo-1] {
		lo--
		hi--
	}
	for hi < n && q-xs[lo] > xs[hi]-q {
		lo++
		hi++
	}
	return lo, hi
}

// fitLocal fits a tricube-weighted straight line through the window points
// and evaluates it at q.
func fitLocal(xs, ys []float64, q float64) float64 {
	dmax := 0.0
	for _, v := range xs {
		if d := math.Abs(v - q); d > dmax {
			dmax = d
		}
	}
	var sw, swx, swy, swxx, swxy float64
	for i, v := range xs {
		w := 1.0
		if dmax > 0 {
			u := math.Abs(v-q) / dmax
			if u >= 1 {
				w = 0
			} else {
				c := 1 - u*u*u
				w = c * c * c
			}
		}
		sw += w
		swx += w * v
		swy += w * ys[i]
		swxx += w * v * v
		swxy += w * v * ys[i]
	}
	if sw == 0 {
		return math.NaN()
	}
	den := sw*swxx - swx*swx
	if math.Abs(den) < 1e-12*sw*sw {
		// Degenerate x spread, fall back to the weighted mean.
		return swy / sw
	}
	slope := (sw*swxy - swx*swy) / den
	intercept := (swy - slope*swx) / sw
	return intercept + slope*q
}
