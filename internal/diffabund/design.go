// Package diffabund fits per-protein linear models against the treatment
// group design and computes empirical-Bayes moderated statistics: the
// per-protein residual variances are shrunk towards a prior estimated from
// all proteins at once, which buys power at small replicate counts.
//
// The shared state is an explicit two-phase protocol: FitProteins produces
// per-protein sufficient statistics independently, EstimatePrior is the
// single synchronization point over all of them, and Moderate redistributes
// the two prior scalars to finish each protein.
package diffabund

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"lfqstat/internal/abundance"
)

var (
	ErrSingularDesign   = errors.New("singular design matrix")
	ErrUnknownReference = errors.New("reference group not present in samples")
	ErrNoContrasts      = errors.New("need at least two treatment groups")
)

// Design is the one-way layout design matrix for a set of samples:
// an intercept column for the reference group and one indicator column per
// remaining treatment group. Column order of X matches sample order.
type Design struct {
	X         *mat.Dense // n x p
	Contrasts []string   // group label of indicator column c+1, c = 0..p-2
	Reference string
}

// NewDesign builds the design matrix from the sample annotations with the
// given reference (control) group. Non-reference groups appear in order of
// first occurrence.
func NewDesign(samples []abundance.Sample, reference string) (*Design, error) {
	groupCol := make(map[string]int)
	var contrasts []string
	haveRef := false
	for _, s := range samples {
		if s.Group == reference {
			haveRef = true
			continue
		}
		if _, ok := groupCol[s.Group]; !ok {
			groupCol[s.Group] = 1 + len(contrasts)
			contrasts = append(contrasts, s.Group)
		}
	}
	if !haveRef {
		return nil, fmt.Errorf("%w: %q", ErrUnknownReference, reference)
	}
	if len(contrasts) == 0 {
		return nil, ErrNoContrasts
	}

	p := 1 + len(contrasts)
	x := mat.NewDense(len(samples), p, nil)
	for i, s := range samples {
		x.Set(i, 0, 1)
		if c, ok := groupCol[s.Group]; ok {
			x.Set(i, c, 1)
		}
	}

	// Fail fast on a design that cannot be fitted at all.
	var xtx, inv mat.Dense
	xtx.Mul(x.T(), x)
	if err := inv.Inverse(&xtx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingularDesign, err)
	}

	return &Design{X: x, Contrasts: contrasts, Reference: reference}, nil
}

// NumCoef returns the number of model coefficients.
func (d *Design) NumCoef() int {
	_, p := d.X.Dims()
	return p
}
