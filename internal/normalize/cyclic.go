// Package normalize removes systematic per-sample scale and shape
// differences from a dense log-intensity matrix with fast cyclic loess:
// every pair of samples is adjusted towards the smoothed trend of their
// differences, repeatedly, until the samples agree to first order.
package normalize

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"lfqstat/internal/abundance"
	"lfqstat/internal/lowess"
)

// ErrAbsentValues is returned when the input still contains absent
// entries; normalization runs after imputation.
var ErrAbsentValues = errors.New("normalize: input contains absent values")

// Options configure the cyclic loess pass.
type Options struct {
	Cycles     int     // full passes over all sample pairs, default 3
	Span       float64 // lowess span, default lowess.DefaultSpan
	Subsample  float64 // fraction of points used as smoother anchors, default 0.1
	MinAnchors int     // never subsample below this many points, default 100
}

// DefaultOptions returns the reference policy.
func DefaultOptions() Options {
	return Options{Cycles: 3, Span: lowess.DefaultSpan, Subsample: 0.1, MinAnchors: 100}
}

// CyclicLoess returns a normalized copy of data (rows = entities,
// columns = samples). For each ordered pair of columns the lowess smooth of
// M = xi - xj against A = (xi + xj)/2 is computed and half of the fitted
// bias is subtracted from xi and added to xj. The fast variant fits the
// smoother on an evenly spaced (by A) subset of the points and linearly
// interpolates between the fits.
func CyclicLoess(data [][]float64, opt Options) ([][]float64, error) {
	if opt.Cycles <= 0 {
		opt.Cycles = 3
	}
	if opt.Span <= 0 || opt.Span > 1 {
		opt.Span = lowess.DefaultSpan
	}
	if opt.MinAnchors <= 0 {
		opt.MinAnchors = 100
	}

	nRows := len(data)
	if nRows == 0 {
		return nil, errors.New("normalize: empty matrix")
	}
	nCols := len(data[0])
	out := make([][]float64, nRows)
	for i, row := range data {
		if len(row) != nCols {
			return nil, fmt.Errorf("normalize: row %d has %d values, expected %d", i, len(row), nCols)
		}
		for _, v := range row {
			if abundance.IsAbsent(v) {
				return nil, ErrAbsentValues
			}
		}
		out[i] = make([]float64, nCols)
		copy(out[i], row)
	}

	a := make([]float64, nRows)
	m := make([]float64, nRows)
	for cycle := 0; cycle < opt.Cycles; cycle++ {
		for i := 0; i < nCols-1; i++ {
			for j := i + 1; j < nCols; j++ {
				for r := 0; r < nRows; r++ {
					a[r] = (out[r][i] + out[r][j]) / 2
					m[r] = out[r][i] - out[r][j]
				}
				fit, err := smooth(a, m, opt)
				if err != nil {
					return nil, fmt.Errorf("normalize: samples %d/%d: %w", i, j, err)
				}
				for r := 0; r < nRows; r++ {
					out[r][i] -= fit[r] / 2
					out[r][j] += fit[r] / 2
				}
			}
		}
	}
	return out, nil
}

// smooth evaluates the lowess fit of m against a at every point, using all
// points when there are few and an evenly spaced anchor subset otherwise.
func smooth(a, m []float64, opt Options) ([]float64, error) {
	n := len(a)
	anchors := n
	if opt.Subsample > 0 && opt.Subsample < 1 {
		anchors = int(opt.Subsample * float64(n))
	}
	if anchors < opt.MinAnchors {
		anchors = opt.MinAnchors
	}
	if anchors >= n {
		return lowess.Fit(a, m, opt.Span)
	}

	// Pick anchors evenly spaced over the A-sorted points, fit the
	// smoother there and interpolate the remaining points.
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(x, y int) bool { return a[idx[x]] < a[idx[y]] })

	ax := make([]float64, anchors)
	ay := make([]float64, anchors)
	step := float64(n-1) / float64(anchors-1)
	for k := 0; k < anchors; k++ {
		i := idx[int(math.Round(float64(k)*step))]
		ax[k] = a[i]
		ay[k] = m[i]
	}
	fitAnchor, err := lowess.Fit(ax, ay, opt.Span)
	if err != nil {
		return nil, err
	}

	out := make([]float64, n)
	for i := range a {
		out[i] = interpolate(ax, fitAnchor, a[i])
	}
	return out, nil
}

// interpolate evaluates the piecewise linear curve through (xs, ys) at q,
// extending the end values flat beyond the range. xs is ascending.
func interpolate(xs, ys []float64, q float64) float64 {
	n := len(xs)
	if q <= xs[0] {
		return ys[0]
	}
	if q >= xs[n-1] {
		return ys[n-1]
	}
	hi := sort.SearchFloat64s(xs, q)
	lo := hi - 1
	if xs[hi] == xs[lo] {
		return (ys[lo] + ys[hi]) / 2
	}
	t := (q - xs[lo]) / (xs[hi] - xs[lo])
	return ys[lo] + t*(ys[hi]-ys[lo])
}
