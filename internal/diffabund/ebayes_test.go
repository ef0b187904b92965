package diffabund

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrigamma(t *testing.T) {
	// trigamma(1) = pi^2/6, trigamma(1/2) = pi^2/2.
	assert.InDelta(t, math.Pi*math.Pi/6, trigamma(1), 1e-10)
	assert.InDelta(t, math.Pi*math.Pi/2, trigamma(0.5), 1e-10)
	// Recurrence: trigamma(x+1) = trigamma(x) - 1/x^2.
	assert.InDelta(t, trigamma(2.5), trigamma(1.5)-1/(1.5*1.5), 1e-10)
	assert.True(t, math.IsNaN(trigamma(0)))
}

func TestSolveTrigammaRoundTrip(t *testing.T) {
	for _, d0 := range []float64{0.8, 3, 12, 40} {
		target := trigamma(d0 / 2)
		got, ok := solveTrigamma(target)
		require.True(t, ok, "d0=%v", d0)
		assert.InDelta(t, d0, got, 0.01*d0, "d0=%v", d0)
	}
}

// variedFits builds a population of fits whose residual variances scatter
// more than sampling alone explains, so a finite prior exists.
func variedFits(n int, df float64, logSD float64) []ProteinFit {
	rng := rand.New(rand.NewSource(11))
	fits := make([]ProteinFit, n)
	for i := range fits {
		fits[i] = ProteinFit{
			Protein:   "P",
			Estimable: true,
			Df:        df,
			Sigma2:    math.Exp(rng.NormFloat64() * logSD),
		}
	}
	return fits
}

func TestEstimatePriorShrinksTowardsCenter(t *testing.T) {
	fits := variedFits(50, 4, 1.5)
	prior := EstimatePrior(fits)
	require.False(t, prior.Fallback)
	require.Greater(t, prior.D0, 0.0)
	require.Greater(t, prior.S02, 0.0)

	// Extreme variances move towards the prior, never past it.
	var lo, hi ProteinFit
	lo.Sigma2 = math.Inf(1)
	for _, f := range fits {
		if f.Sigma2 < lo.Sigma2 {
			lo = f
		}
		if f.Sigma2 > hi.Sigma2 {
			hi = f
		}
	}
	postLo := prior.PosteriorVariance(lo.Sigma2, lo.Df)
	postHi := prior.PosteriorVariance(hi.Sigma2, hi.Df)
	assert.Greater(t, postLo, lo.Sigma2)
	assert.Less(t, postLo, prior.S02)
	assert.Less(t, postHi, hi.Sigma2)
	assert.Greater(t, postHi, prior.S02)
}

func TestEstimatePriorFallback(t *testing.T) {
	// Identical variances: nothing beyond sampling noise to explain.
	fits := make([]ProteinFit, 30)
	for i := range fits {
		fits[i] = ProteinFit{Estimable: true, Df: 4, Sigma2: 0.25}
	}
	prior := EstimatePrior(fits)
	assert.True(t, prior.Fallback)
	assert.Equal(t, 0.0, prior.D0)

	// Too few usable fits.
	prior = EstimatePrior([]ProteinFit{{Estimable: true, Df: 4, Sigma2: 1}})
	assert.True(t, prior.Fallback)

	// Zero-df fits carry no variance information.
	prior = EstimatePrior([]ProteinFit{
		{Estimable: true, Df: 0, Sigma2: math.NaN()},
		{Estimable: true, Df: 0, Sigma2: math.NaN()},
		{Estimable: false},
	})
	assert.True(t, prior.Fallback)
}

func TestPosteriorVarianceNoShrinkageWithoutPrior(t *testing.T) {
	p := Prior{D0: 0, Fallback: true}
	assert.Equal(t, 0.7, p.PosteriorVariance(0.7, 4))
}

func TestPosteriorVarianceWeights(t *testing.T) {
	p := Prior{D0: 2, S02: 1}
	// (2*1 + 4*4) / 6 = 3.
	assert.InDelta(t, 3.0, p.PosteriorVariance(4, 4), 1e-12)
}
