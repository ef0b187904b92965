package abundance

import "fmt"

// FilterPolicy holds the quality thresholds for protein rows.
type FilterPolicy struct {
	MinChildren int     // rows with Children <= MinChildren are dropped
	MaxMissing  float64 // rows with an absent fraction >= MaxMissing are dropped
}

// Drop records why a row was removed by the quality filter.
type Drop struct {
	ID     string
	Reason string
}

// QualityFilter removes rows with insufficient peptide evidence
// (Children <= MinChildren) or too many absent entries (fraction >=
// MaxMissing) in the given layer. Both predicates are evaluated against the
// input rows, so the two criteria are order independent. The input matrix
// is left untouched; the removed rows and their reasons are returned for
// the audit trail.
func QualityFilter(m *Matrix, layer string, pol FilterPolicy) (*Matrix, []Drop, error) {
	keep := make([]bool, m.NumRows())
	var drops []Drop
	for i, row := range m.Rows {
		frac, err := m.MissingFraction(layer, i)
		if err != nil {
			return nil, nil, fmt.Errorf("quality filter: %w", err)
		}
		switch {
		case row.Children <= pol.MinChildren:
			drops = append(drops, Drop{ID: row.ID,
				Reason: fmt.Sprintf("%d peptides (minimum %d)", row.Children, pol.MinChildren+1)})
		case frac >= pol.MaxMissing:
			drops = append(drops, Drop{ID: row.ID,
				Reason: fmt.Sprintf("%.0f%% of samples absent (limit %.0f%%)", frac*100, pol.MaxMissing*100)})
		default:
			keep[i] = true
		}
	}
	out, err := m.Select(keep)
	if err != nil {
		return nil, nil, err
	}
	if out.NumRows() == 0 {
		return nil, drops, fmt.Errorf("quality filter: %w", ErrEmptyResult)
	}
	return out, drops, nil
}
