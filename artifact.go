package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"

	"lfqstat/internal/abundance"
	"lfqstat/internal/diffabund"
	"lfqstat/internal/variance"
)

// jsonCell is a matrix cell that survives JSON: absent values (NaN) are
// written as null, which encoding/json cannot do for a plain float64.
type jsonCell float64

func (c jsonCell) MarshalJSON() ([]byte, error) {
	if math.IsNaN(float64(c)) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(float64(c), 'g', -1, 64)), nil
}

func (c *jsonCell) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*c = jsonCell(math.NaN())
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*c = jsonCell(v)
	return nil
}

// matrixJSON is the serialized form of one layered matrix.
type matrixJSON struct {
	Samples    []abundance.Sample
	Rows       []abundance.Row
	LayerOrder []string
	Layers     map[string][][]jsonCell
}

// artifactJSON is the matrix artifact written per run: every aggregation
// level with all of its transformation layers, append-only provenance of
// the whole computation.
type artifactJSON struct {
	// Version of the artifact layout, used when loading artifacts
	// written by different versions of the software
	LfqStatVersion string
	Peptide        matrixJSON
	Protein        matrixJSON
	Filtered       matrixJSON
}

func toMatrixJSON(m *abundance.Matrix) (matrixJSON, error) {
	out := matrixJSON{
		Samples:    m.Samples,
		Rows:       m.Rows,
		LayerOrder: m.Layers(),
		Layers:     make(map[string][][]jsonCell),
	}
	for _, name := range out.LayerOrder {
		data, err := m.Layer(name)
		if err != nil {
			return matrixJSON{}, err
		}
		cells := make([][]jsonCell, len(data))
		for i, row := range data {
			cells[i] = make([]jsonCell, len(row))
			for j, v := range row {
				cells[i][j] = jsonCell(v)
			}
		}
		out.Layers[name] = cells
	}
	return out, nil
}

func writeMatrixArtifact(filename string, peptide, protein, filtered *abundance.Matrix) error {
	var artifact artifactJSON
	var err error
	artifact.LfqStatVersion = artifactFormatVersion
	if artifact.Peptide, err = toMatrixJSON(peptide); err != nil {
		return err
	}
	if artifact.Protein, err = toMatrixJSON(protein); err != nil {
		return err
	}
	if artifact.Filtered, err = toMatrixJSON(filtered); err != nil {
		return err
	}

	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	e := json.NewEncoder(f)
	e.SetIndent(``, `  `) // Make output easier to read for humans
	return e.Encode(artifact)
}

// reference is a previously computed log2 protein matrix with group
// labels, loaded for comparison only.
type reference struct {
	samples []abundance.Sample
	rows    []abundance.Row
	data    [][]float64
}

type referenceJSON struct {
	Samples  []abundance.Sample
	Proteins []string
	Log2     [][]jsonCell
}

func loadReference(filename string) (*reference, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var in referenceJSON
	d := json.NewDecoder(f)
	if err := d.Decode(&in); err != nil {
		return nil, err
	}
	if len(in.Proteins) != len(in.Log2) {
		return nil, fmt.Errorf("%d proteins but %d matrix rows", len(in.Proteins), len(in.Log2))
	}

	ref := &reference{samples: in.Samples}
	for i, id := range in.Proteins {
		if len(in.Log2[i]) != len(in.Samples) {
			return nil, fmt.Errorf("row %d has %d values but %d samples", i, len(in.Log2[i]), len(in.Samples))
		}
		ref.rows = append(ref.rows, abundance.Row{ID: id, Protein: id})
		row := make([]float64, len(in.Log2[i]))
		for j, v := range in.Log2[i] {
			row[j] = float64(v)
		}
		ref.data = append(ref.data, row)
	}
	return ref, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// writeResults writes the flat per-protein, per-contrast statistics table.
func writeResults(filename string, results []diffabund.Result) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = '\t'
	if err := w.Write([]string{"protein", "contrast", "log2fc", "t", "pvalue", "qvalue", "df", "method"}); err != nil {
		return err
	}
	for _, r := range results {
		err := w.Write([]string{
			r.Protein,
			r.Contrast,
			formatFloat(r.Log2FC),
			formatFloat(r.T),
			formatFloat(r.P),
			formatFloat(r.Q),
			formatFloat(r.Df),
			r.Method,
		})
		if err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// writeSelection writes the effect sizes and the per-protein variance
// decomposition. The decomposition is per protein, not per contrast; its
// columns repeat for every contrast of the same protein to keep the table
// flat.
func writeSelection(filename string, effects []variance.EffectSize,
	decomp variance.Decomposition, rows []abundance.Row) error {

	rowIdx := make(map[string]int, len(rows))
	for i, r := range rows {
		rowIdx[r.ID] = i
	}

	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = '\t'
	header := []string{"protein", "contrast", "hedges_g", "selected",
		"mean", "total_var", "technical_var", "biological_var"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, e := range effects {
		i, ok := rowIdx[e.Protein]
		if !ok {
			return fmt.Errorf("effect size for unknown protein %s", e.Protein)
		}
		err := w.Write([]string{
			e.Protein,
			e.Contrast,
			formatFloat(e.G),
			strconv.FormatBool(e.Selected),
			formatFloat(decomp.Mean[i]),
			formatFloat(decomp.Total[i]),
			formatFloat(decomp.Technical[i]),
			formatFloat(decomp.Biological[i]),
		})
		if err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
