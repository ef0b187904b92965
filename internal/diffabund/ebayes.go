package diffabund

import (
	"math"

	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// Prior holds the empirical-Bayes prior for the residual variances:
// 1/sigma^2 is modelled as a scaled chi-squared with D0 degrees of freedom
// around S02. D0 == 0 means no shrinkage.
type Prior struct {
	D0       float64
	S02      float64
	Fallback bool // true when the moment equation had no positive solution
}

// EstimatePrior fits (D0, S02) to the residual variances of all proteins by
// the method of moments on the log variances: with
//
//	e_g = log s2_g - digamma(d_g/2) + log(d_g/2)
//
// the mean of e_g estimates log s02 - digamma(D0/2) + log(D0/2) and its
// variance exceeds the mean of trigamma(d_g/2) by trigamma(D0/2). The
// resulting trigamma equation is solved numerically. Proteins with zero
// residual degrees of freedom carry no variance information and are
// ignored. When the moment equation has no positive solution the prior
// falls back to D0 = 0, i.e. no shrinkage.
func EstimatePrior(fits []ProteinFit) Prior {
	var e, tg []float64
	for _, f := range fits {
		if !f.Estimable || f.Df <= 0 || math.IsNaN(f.Sigma2) || f.Sigma2 <= 0 {
			continue
		}
		half := f.Df / 2
		e = append(e, math.Log(f.Sigma2)-mathext.Digamma(half)+math.Log(half))
		tg = append(tg, trigamma(half))
	}
	if len(e) < 2 {
		return Prior{Fallback: true}
	}

	ebar := stat.Mean(e, nil)
	target := stat.Variance(e, nil) - stat.Mean(tg, nil)
	if target <= 0 {
		return Prior{Fallback: true}
	}

	d0, ok := solveTrigamma(target)
	if !ok {
		return Prior{Fallback: true}
	}
	s02 := math.Exp(ebar + mathext.Digamma(d0/2) - math.Log(d0/2))
	return Prior{D0: d0, S02: s02}
}

// solveTrigamma finds d0 > 0 with trigamma(d0/2) == target. The equation is
// parameterized as d0 = exp(u) to keep the solution positive and minimized
// as a squared residual, the same gradient-free use of optimize.Minimize as
// the rest of the numerical code.
func solveTrigamma(target float64) (float64, bool) {
	problem := optimize.Problem{
		Func: func(u []float64) float64 {
			d0 := math.Exp(u[0])
			r := trigamma(d0/2) - target
			return r * r
		},
	}
	result, err := optimize.Minimize(problem, []float64{math.Log(4)}, nil, nil)
	if err != nil {
		return 0, false
	}
	d0 := math.Exp(result.X[0])
	if math.IsNaN(d0) || math.IsInf(d0, 0) || d0 <= 0 {
		return 0, false
	}
	// Reject spurious minima of the squared residual.
	if r := trigamma(d0/2) - target; math.Abs(r) > 1e-4*target {
		return 0, false
	}
	return d0, true
}

// trigamma is the derivative of the digamma function, computed with the
// usual recurrence to large arguments followed by the asymptotic series.
func trigamma(x float64) float64 {
	if x <= 0 {
		return math.NaN()
	}
	v := 0.0
	for x < 6 {
		v += 1 / (x * x)
		x++
	}
	t := 1 / x
	t2 := t * t
	v += t + t2/2 + t*t2/6 - t*t2*t2/30 + t*t2*t2*t2/42 - t*t2*t2*t2*t2/30
	return v
}

// PosteriorVariance shrinks one protein's residual variance towards the
// prior: (d0*s02 + d*s2) / (d0 + d).
func (p Prior) PosteriorVariance(s2, df float64) float64 {
	if p.D0 <= 0 {
		return s2
	}
	return (p.D0*p.S02 + df*s2) / (p.D0 + df)
}
