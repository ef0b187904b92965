package diffabund

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lfqstat/internal/abundance"
)

func testSamples(groups ...string) []abundance.Sample {
	var samples []abundance.Sample
	count := make(map[string]int)
	for _, g := range groups {
		count[g]++
		samples = append(samples, abundance.Sample{
			Name:      g,
			Group:     g,
			Replicate: count[g],
		})
	}
	return samples
}

func TestNewDesign(t *testing.T) {
	samples := testSamples("Control", "DrugA", "Control", "DrugB", "DrugA", "Control")
	d, err := NewDesign(samples, "Control")
	require.NoError(t, err)

	assert.Equal(t, []string{"DrugA", "DrugB"}, d.Contrasts)
	assert.Equal(t, 3, d.NumCoef())

	n, p := d.X.Dims()
	require.Equal(t, 6, n)
	require.Equal(t, 3, p)
	// Intercept everywhere, indicators only for the own group.
	for i := 0; i < n; i++ {
		assert.Equal(t, 1.0, d.X.At(i, 0), "row %d intercept", i)
	}
	assert.Equal(t, 1.0, d.X.At(1, 1)) // DrugA
	assert.Equal(t, 0.0, d.X.At(1, 2))
	assert.Equal(t, 1.0, d.X.At(3, 2)) // DrugB
	assert.Equal(t, 0.0, d.X.At(0, 1)) // Control row has no indicator
	assert.Equal(t, 0.0, d.X.At(0, 2))
}

func TestNewDesignErrors(t *testing.T) {
	_, err := NewDesign(testSamples("DrugA", "DrugB"), "Control")
	assert.ErrorIs(t, err, ErrUnknownReference)

	_, err = NewDesign(testSamples("Control", "Control"), "Control")
	assert.ErrorIs(t, err, ErrNoContrasts)
}
