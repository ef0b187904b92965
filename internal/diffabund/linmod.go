package diffabund

import (
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"lfqstat/internal/abundance"
)

// ProteinFit holds the sufficient statistics of one per-protein ordinary
// least squares fit. Fits are independent of each other; everything shared
// across proteins happens later, in EstimatePrior.
type ProteinFit struct {
	Protein   string
	Coef      []float64 // estimated model coefficients
	V         []float64 // unscaled coefficient variances, diag of (X'X)^-1
	Sigma2    float64   // residual variance, NaN when Df == 0
	Df        float64   // residual degrees of freedom
	Estimable bool      // false when the present samples cannot support the design
}

// FitProteins fits the design to every row of data (one protein per row,
// columns aligned with the design's samples). Absent entries are allowed:
// the fit uses only the present samples of each row, so the residual
// degrees of freedom may vary per protein. Rows whose present samples leave
// the design rank deficient are marked not estimable.
//
// The per-protein fits are independent and are computed in parallel;
// results are written into a per-protein slot, so the output is identical
// to a sequential run.
func FitProteins(data [][]float64, rows []abundance.Row, d *Design) ([]ProteinFit, error) {
	fits := make([]ProteinFit, len(data))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range data {
		i := i
		g.Go(func() error {
			fits[i] = fitOne(data[i], rows[i], d)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return fits, nil
}

func fitOne(y []float64, row abundance.Row, d *Design) ProteinFit {
	fit := ProteinFit{Protein: row.ID, Sigma2: math.NaN()}

	var present []int
	for j, v := range y {
		if !abundance.IsAbsent(v) {
			present = append(present, j)
		}
	}
	p := d.NumCoef()
	if len(present) < p {
		return fit
	}

	xg := mat.NewDense(len(present), p, nil)
	yg := mat.NewVecDense(len(present), nil)
	for k, j := range present {
		for c := 0; c < p; c++ {
			xg.Set(k, c, d.X.At(j, c))
		}
		yg.SetVec(k, y[j])
	}

	var xtx, inv mat.Dense
	xtx.Mul(xg.T(), xg)
	if err := inv.Inverse(&xtx); err != nil {
		// Present samples do not cover every group.
		return fit
	}

	// coef = (X'X)^-1 X' y
	var xty, coef mat.VecDense
	xty.MulVec(xg.T(), yg)
	coef.MulVec(&inv, &xty)

	var fitted mat.VecDense
	fitted.MulVec(xg, &coef)
	rss := 0.0
	for k := 0; k < yg.Len(); k++ {
		r := yg.AtVec(k) - fitted.AtVec(k)
		rss += r * r
	}

	fit.Estimable = true
	fit.Coef = make([]float64, p)
	fit.V = make([]float64, p)
	for c := 0; c < p; c++ {
		fit.Coef[c] = coef.AtVec(c)
		fit.V[c] = inv.At(c, c)
	}
	fit.Df = float64(len(present) - p)
	if fit.Df > 0 {
		fit.Sigma2 = rss / fit.Df
	}
	return fit
}
