package variance

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"lfqstat/internal/abundance"
)

// EffectSize is the standardized mean difference of one protein in one
// treatment-versus-reference contrast.
type EffectSize struct {
	Protein  string
	Contrast string
	G        float64 // Hedges' g, bias corrected
	Selected bool    // |G| above the configured threshold
}

// HedgesG computes the bias-corrected standardized mean difference for
// every protein and every treatment group against the reference group:
//
//	g = J * (mean_T - mean_C) / sqrt((s2_T + s2_C) / 2)
//	J = 1 - 3 / (4*(n_T+n_C) - 9)
//
// Absent entries are excluded from the group moments; groups need at least
// two present values on each side, otherwise the effect size is NaN and
// never selected.
func HedgesG(data [][]float64, rows []abundance.Row, samples []abundance.Sample,
	reference string, threshold float64) ([]EffectSize, error) {

	control := groupColumns(samples, reference)
	if len(control) == 0 {
		return nil, fmt.Errorf("hedges: no samples in reference group %q", reference)
	}
	var contrasts []string
	seen := map[string]bool{reference: true}
	for _, s := range samples {
		if !seen[s.Group] {
			seen[s.Group] = true
			contrasts = append(contrasts, s.Group)
		}
	}

	var out []EffectSize
	for _, group := range contrasts {
		treat := groupColumns(samples, group)
		for i, row := range data {
			g := effectSize(row, treat, control)
			out = append(out, EffectSize{
				Protein:  rows[i].ID,
				Contrast: group,
				G:        g,
				Selected: !math.IsNaN(g) && math.Abs(g) > threshold,
			})
		}
	}
	return out, nil
}

func groupColumns(samples []abundance.Sample, group string) []int {
	var cols []int
	for j, s := range samples {
		if s.Group == group {
			cols = append(cols, j)
		}
	}
	return cols
}

func effectSize(row []float64, treat, control []int) float64 {
	xt := presentValues(row, treat)
	xc := presentValues(row, control)
	if len(xt) < 2 || len(xc) < 2 {
		return math.NaN()
	}
	mt, _ := stats.Mean(xt)
	mc, _ := stats.Mean(xc)
	vt, _ := stats.SampleVariance(xt)
	vc, _ := stats.SampleVariance(xc)
	pooled := math.Sqrt((vt + vc) / 2)
	if pooled == 0 {
		if mt == mc {
			return 0
		}
		return math.NaN()
	}
	n := float64(len(xt) + len(xc))
	j := 1 - 3/(4*n-9)
	return j * (mt - mc) / pooled
}

func presentValues(row []float64, cols []int) []float64 {
	var vals []float64
	for _, j := range cols {
		if v := row[j]; !abundance.IsAbsent(v) {
			vals = append(vals, v)
		}
	}
	return vals
}
