// Package variance separates technical from biological variance with a
// mean-variance trend and ranks proteins by a standardized effect size
// (Hedges' g) as a feature-selection signal independent of the moderated
// statistics.
package variance

import (
	"errors"
	"fmt"

	"github.com/montanaflynn/stats"

	"lfqstat/internal/abundance"
	"lfqstat/internal/lowess"
)

var ErrTooFewRows = errors.New("variance: need at least two rows")

// Decomposition holds the per-protein variance split. Technical variance is
// the fitted mean-variance trend at the protein's mean intensity;
// biological variance is the remainder and may be negative, which signals
// the absence of detectable biological variation.
type Decomposition struct {
	Mean       []float64
	Total      []float64
	Technical  []float64
	Biological []float64
}

// Decompose fits a lowess trend of per-protein total variance against
// per-protein mean intensity over all rows of data and splits each row's
// variance accordingly. Absent entries are excluded from the per-row
// moments.
func Decompose(data [][]float64, span float64) (Decomposition, error) {
	if len(data) < 2 {
		return Decomposition{}, ErrTooFewRows
	}
	n := len(data)
	dec := Decomposition{
		Mean:       make([]float64, n),
		Total:      make([]float64, n),
		Technical:  make([]float64, n),
		Biological: make([]float64, n),
	}
	for i, row := range data {
		var present []float64
		for _, v := range row {
			if !abundance.IsAbsent(v) {
				present = append(present, v)
			}
		}
		if len(present) < 2 {
			return Decomposition{}, fmt.Errorf("variance: row %d has fewer than two present values", i)
		}
		mean, err := stats.Mean(present)
		if err != nil {
			return Decomposition{}, fmt.Errorf("variance: row %d: %w", i, err)
		}
		total, err := stats.SampleVariance(present)
		if err != nil {
			return Decomposition{}, fmt.Errorf("variance: row %d: %w", i, err)
		}
		dec.Mean[i] = mean
		dec.Total[i] = total
	}

	trend, err := lowess.Fit(dec.Mean, dec.Total, span)
	if err != nil {
		return Decomposition{}, fmt.Errorf("variance: trend fit: %w", err)
	}
	for i := range trend {
		dec.Technical[i] = trend[i]
		dec.Biological[i] = dec.Total[i] - trend[i]
	}
	return dec, nil
}
