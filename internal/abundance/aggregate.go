package abundance

import (
	"fmt"

	"github.com/montanaflynn/stats"
)

// RollupOptions control how child rows are aggregated into parents.
type RollupOptions struct {
	// CountPresentOnly makes the Children count of a parent reflect only
	// child rows that contributed at least one present value. The default
	// (false) counts every child row: the count then measures peptide
	// evidence, not data completeness.
	CountPresentOnly bool
}

// Rollup aggregates the rows of the named layer into one parent row per
// distinct grouping key. The parent value for a sample is the median of the
// non-absent child values for that sample; if all children are absent the
// parent value is absent. Parent metadata is copied from the first child of
// the group, with ID set to the grouping key and Children set to the number
// of child rows.
//
// Parents appear in order of first appearance of their key, so the result
// is deterministic. The input matrix is not modified.
func Rollup(m *Matrix, layer string, key func(Row) string, opt RollupOptions) (*Matrix, error) {
	data, err := m.Layer(layer)
	if err != nil {
		return nil, fmt.Errorf("rollup: %w", err)
	}

	groupIdx := make(map[string]int)
	var groups [][]int // child row indices per parent
	var keys []string
	for i, row := range m.Rows {
		k := key(row)
		gi, ok := groupIdx[k]
		if !ok {
			gi = len(groups)
			groupIdx[k] = gi
			groups = append(groups, nil)
			keys = append(keys, k)
		}
		groups[gi] = append(groups[gi], i)
	}

	nSamples := m.NumSamples()
	rows := make([]Row, len(groups))
	values := make([][]float64, len(groups))
	for gi, children := range groups {
		parent := m.Rows[children[0]]
		parent.ID = keys[gi]

		vals := make([]float64, nSamples)
		contributed := make([]bool, len(children))
		for j := 0; j < nSamples; j++ {
			var present []float64
			for ci, i := range children {
				if v := data[i][j]; !IsAbsent(v) {
					present = append(present, v)
					contributed[ci] = true
				}
			}
			if len(present) == 0 {
				vals[j] = Absent()
				continue
			}
			med, err := stats.Median(present)
			if err != nil {
				return nil, fmt.Errorf("rollup: median of group %q: %w", keys[gi], err)
			}
			vals[j] = med
		}

		if opt.CountPresentOnly {
			n := 0
			for _, c := range contributed {
				if c {
					n++
				}
			}
			parent.Children = n
		} else {
			parent.Children = len(children)
		}
		rows[gi] = parent
		values[gi] = vals
	}

	out := New(rows, m.Samples)
	if err := out.AddLayer(layer, values); err != nil {
		return nil, err
	}
	return out, nil
}
