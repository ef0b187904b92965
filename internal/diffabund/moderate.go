package diffabund

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Result is one immutable (protein, contrast) differential-abundance
// record.
type Result struct {
	Protein  string
	Contrast string  // treatment group tested against the reference
	Log2FC   float64 // estimated log2 fold-change, NaN when not estimable
	T        float64 // moderated t statistic
	P        float64 // raw two-sided p-value
	Q        float64 // Benjamini-Hochberg adjusted p-value within the contrast
	Df       float64 // total degrees of freedom of the reference distribution
	Method   string  // analysis tag, e.g. "lfqstat" or "reference"
}

// Moderate computes the moderated t statistic, p-value and FDR-adjusted
// q-value for every protein and contrast. Proteins with zero residual
// degrees of freedom, and proteins whose fit was not estimable, get p = 1:
// they carry no evidence either way. FDR adjustment runs within each
// contrast independently.
func Moderate(fits []ProteinFit, d *Design, prior Prior, method string) []Result {
	results := make([]Result, 0, len(fits)*len(d.Contrasts))
	for c, group := range d.Contrasts {
		col := c + 1 // column 0 is the intercept
		pvals := make([]float64, 0, len(fits))
		start := len(results)
		for _, fit := range fits {
			r := Result{Protein: fit.Protein, Contrast: group, Method: method,
				Log2FC: math.NaN(), T: math.NaN(), P: 1}
			if fit.Estimable {
				r.Log2FC = fit.Coef[col]
				r.Df = fit.Df + prior.D0
				if fit.Df > 0 && fit.V[col] > 0 {
					s2 := prior.PosteriorVariance(fit.Sigma2, fit.Df)
					r.T = fit.Coef[col] / math.Sqrt(s2*fit.V[col])
					tdist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: r.Df}
					r.P = 2 * tdist.CDF(-math.Abs(r.T))
				}
			}
			pvals = append(pvals, r.P)
			results = append(results, r)
		}
		for i, q := range BenjaminiHochberg(pvals) {
			results[start+i].Q = q
		}
	}
	return results
}
