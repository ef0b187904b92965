// Package impute fills absent entries of a log-intensity matrix using
// k-nearest-neighbour imputation over rows with correlated abundance
// profiles.
package impute

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"lfqstat/internal/abundance"
)

var (
	// ErrNoInformativeNeighbors is returned when none of the selected
	// neighbours has a present value for a column that must be imputed.
	ErrNoInformativeNeighbors = errors.New("no informative neighbors")
	// ErrAllAbsent is returned for rows without a single present value;
	// there is no profile to match neighbours against.
	ErrAllAbsent = errors.New("row has no present values")
)

// Options configure the imputation.
type Options struct {
	K          int  // number of neighbour rows, default 10
	MinOverlap int  // minimum shared present columns for a distance, default 3
	DropRows   bool // drop rows that cannot be imputed instead of failing
}

// DefaultOptions returns the reference policy.
func DefaultOptions() Options {
	return Options{K: 10, MinOverlap: 3}
}

type neighbor struct {
	row  int
	dist float64
}

// KNN returns a dense copy of data with every absent entry filled in, plus
// the indices of rows that could not be imputed. On a fully dense input the
// output equals the input exactly.
//
// Imputed values are always computed from the original data, never from
// previously imputed cells, so the result does not depend on row order.
// If a row cannot be imputed the call fails with ErrNoInformativeNeighbors
// or ErrAllAbsent unless DropRows is set, in which case the row index is
// reported in dropped and the caller is expected to remove it.
func KNN(data [][]float64, opt Options) (imputed [][]float64, dropped []int, err error) {
	if opt.K <= 0 {
		opt.K = 10
	}
	if opt.MinOverlap <= 0 {
		opt.MinOverlap = 1
	}

	out := make([][]float64, len(data))
	for i, row := range data {
		out[i] = make([]float64, len(row))
		copy(out[i], row)
	}

	for i, row := range data {
		absent := absentColumns(row)
		if len(absent) == 0 {
			continue
		}
		if len(absent) == len(row) {
			if err := handleOrphan(i, ErrAllAbsent, opt, &dropped); err != nil {
				return nil, nil, err
			}
			continue
		}

		nn := nearest(data, i, opt)
		rowErr := error(nil)
		for _, j := range absent {
			v, ok := neighborMean(data, nn, j, opt.K)
			if !ok {
				rowErr = fmt.Errorf("%w: row %d column %d", ErrNoInformativeNeighbors, i, j)
				break
			}
			out[i][j] = v
		}
		if rowErr != nil {
			if err := handleOrphan(i, rowErr, opt, &dropped); err != nil {
				return nil, nil, err
			}
		}
	}
	return out, dropped, nil
}

func handleOrphan(row int, cause error, opt Options, dropped *[]int) error {
	if !opt.DropRows {
		return cause
	}
	*dropped = append(*dropped, row)
	return nil
}

func absentColumns(row []float64) []int {
	var cols []int
	for j, v := range row {
		if abundance.IsAbsent(v) {
			cols = append(cols, j)
		}
	}
	return cols
}

// nearest returns all candidate neighbours of row i sorted by ascending
// pairwise-complete distance. Ties are broken by row index so the result is
// deterministic.
func nearest(data [][]float64, i int, opt Options) []neighbor {
	var nn []neighbor
	for j := range data {
		if j == i {
			continue
		}
		d, ok := distance(data[i], data[j], opt.MinOverlap)
		if !ok {
			continue
		}
		nn = append(nn, neighbor{row: j, dist: d})
	}
	sort.Slice(nn, func(a, b int) bool {
		if nn[a].dist != nn[b].dist {
			return nn[a].dist < nn[b].dist
		}
		return nn[a].row < nn[b].row
	})
	return nn
}

// distance is the root-mean-square difference between x and y over the
// columns present in both, so that distances remain comparable between
// pairs with different overlap. Pairs with fewer than minOverlap shared
// columns have no usable distance.
func distance(x, y []float64, minOverlap int) (float64, bool) {
	var sum float64
	shared := 0
	for j := range x {
		if abundance.IsAbsent(x[j]) || abundance.IsAbsent(y[j]) {
			continue
		}
		d := x[j] - y[j]
		sum += d * d
		shared++
	}
	if shared < minOverlap {
		return 0, false
	}
	return math.Sqrt(sum / float64(shared)), true
}

// neighborMean averages column j over the k nearest neighbours that have a
// present value there. Fewer than k contributors is acceptable; zero is
// not.
func neighborMean(data [][]float64, nn []neighbor, j, k int) (float64, bool) {
	var sum float64
	used, n := 0, 0
	for _, cand := range nn {
		if used == k {
			break
		}
		used++
		if v := data[cand.row][j]; !abundance.IsAbsent(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
