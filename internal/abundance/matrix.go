// Package abundance provides the layered abundance matrix that carries
// quantitative values through the pipeline, together with the hierarchical
// aggregation and quality filtering steps that operate on it.
//
// A Matrix owns one row index and one sample (column) index, shared by any
// number of named data layers. Layers are append-only: a transformation adds
// a new layer (raw -> log2 -> imputed -> norm) and never modifies an
// existing one, so the provenance of every value can be reconstructed.
package abundance

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrLayerExists  = errors.New("layer already exists")
	ErrUnknownLayer = errors.New("unknown layer")
	ErrShape        = errors.New("layer shape does not match matrix")
	ErrEmptyResult  = errors.New("no rows left")
)

// Absent returns the marker for a cell with no measured value.
// Absent cells are NaN, never zero: a zero intensity is a measurement,
// a NaN is the lack of one.
func Absent() float64 { return math.NaN() }

// IsAbsent reports whether v is the absent marker.
func IsAbsent(v float64) bool { return math.IsNaN(v) }

// Sample describes one matrix column.
type Sample struct {
	Name      string // experiment label, e.g. "Ampicillin_2"
	Group     string // treatment group, e.g. "Ampicillin"
	Replicate int    // replicate index within the group, 0 if unknown
}

// Row describes one matrix row. The same type is used at PSM, peptide and
// protein level; fields that make no sense at a given level are simply
// carried along from the first child.
type Row struct {
	ID          string // unique entity identifier at this level
	Protein     string // leading protein accession
	ProteinGrp  string // protein group identifier
	ModSeq      string // modified peptide sequence
	Charge      int
	NumPeptides int // evidence rows sharing (experiment, modified sequence, protein), counted before pivoting
	Children    int // child rows merged into this row by the last rollup, 0 at PSM level
}

// Matrix is an abundance matrix with named, append-only data layers.
type Matrix struct {
	Rows    []Row
	Samples []Sample

	order  []string
	layers map[string][][]float64
}

// New creates a matrix with the given row and column index and no layers.
func New(rows []Row, samples []Sample) *Matrix {
	return &Matrix{
		Rows:    rows,
		Samples: samples,
		layers:  make(map[string][][]float64),
	}
}

func (m *Matrix) NumRows() int    { return len(m.Rows) }
func (m *Matrix) NumSamples() int { return len(m.Samples) }

// Layers returns the layer names in order of creation.
func (m *Matrix) Layers() []string {
	names := make([]string, len(m.order))
	copy(names, m.order)
	return names
}

func (m *Matrix) HasLayer(name string) bool {
	_, ok := m.layers[name]
	return ok
}

// AddLayer stores a copy of data under the given name. The data must have
// one slice per row and one value per sample. Layer names are unique;
// layers are never overwritten.
func (m *Matrix) AddLayer(name string, data [][]float64) error {
	if _, ok := m.layers[name]; ok {
		return fmt.Errorf("%w: %s", ErrLayerExists, name)
	}
	if len(data) != len(m.Rows) {
		return fmt.Errorf("%w: layer %s has %d rows, matrix has %d",
			ErrShape, name, len(data), len(m.Rows))
	}
	cp := make([][]float64, len(data))
	for i, r := range data {
		if len(r) != len(m.Samples) {
			return fmt.Errorf("%w: layer %s row %d has %d values, matrix has %d samples",
				ErrShape, name, i, len(r), len(m.Samples))
		}
		cp[i] = make([]float64, len(r))
		copy(cp[i], r)
	}
	m.layers[name] = cp
	m.order = append(m.order, name)
	return nil
}

// Layer returns the data stored under name. The returned slices are the
// layer itself, not a copy; callers must treat them as read-only.
func (m *Matrix) Layer(name string) ([][]float64, error) {
	data, ok := m.layers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLayer, name)
	}
	return data, nil
}

// Select returns a new matrix containing only the rows for which keep is
// true. All layers and the row metadata are filtered identically, so
// alignment between values and metadata is preserved. The receiver is not
// modified.
func (m *Matrix) Select(keep []bool) (*Matrix, error) {
	if len(keep) != len(m.Rows) {
		return nil, fmt.Errorf("%w: keep mask has %d entries, matrix has %d rows",
			ErrShape, len(keep), len(m.Rows))
	}
	n := 0
	for _, k := range keep {
		if k {
			n++
		}
	}
	sel := New(make([]Row, 0, n), m.Samples)
	for i, k := range keep {
		if k {
			sel.Rows = append(sel.Rows, m.Rows[i])
		}
	}
	for _, name := range m.order {
		src := m.layers[name]
		data := make([][]float64, 0, n)
		for i, k := range keep {
			if k {
				row := make([]float64, len(src[i]))
				copy(row, src[i])
				data = append(data, row)
			}
		}
		sel.layers[name] = data
		sel.order = append(sel.order, name)
	}
	return sel, nil
}

// MissingFraction returns the fraction of absent entries in row i of the
// given layer.
func (m *Matrix) MissingFraction(name string, i int) (float64, error) {
	data, err := m.Layer(name)
	if err != nil {
		return 0, err
	}
	if len(m.Samples) == 0 {
		return 0, nil
	}
	absent := 0
	for _, v := range data[i] {
		if IsAbsent(v) {
			absent++
		}
	}
	return float64(absent) / float64(len(m.Samples)), nil
}

// Log2 adds a layer with the base-2 logarithm of the source layer.
// Absent values stay absent; non-positive intensities become absent,
// they carry no usable quantitative signal on the log scale.
func (m *Matrix) Log2(src, dst string) error {
	data, err := m.Layer(src)
	if err != nil {
		return err
	}
	out := make([][]float64, len(data))
	for i, row := range data {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			if IsAbsent(v) || v <= 0 {
				out[i][j] = Absent()
			} else {
				out[i][j] = math.Log2(v)
			}
		}
	}
	return m.AddLayer(dst, out)
}
