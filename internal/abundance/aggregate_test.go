package abundance

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRollupMedianSkipsAbsent(t *testing.T) {
	m := New(
		[]Row{
			{ID: "1", Protein: "P1", ModSeq: "PEPTIDEA"},
			{ID: "2", Protein: "P1", ModSeq: "PEPTIDEB"},
			{ID: "3", Protein: "P1", ModSeq: "PEPTIDEC"},
			{ID: "4", Protein: "P1", ModSeq: "PEPTIDED"},
		},
		[]Sample{{Name: "Control_1", Group: "Control", Replicate: 1}},
	)
	err := m.AddLayer("raw", [][]float64{
		{2.0},
		{4.0},
		{Absent()},
		{6.0},
	})
	if err != nil {
		t.Fatalf("AddLayer: %v", err)
	}

	byProtein := func(r Row) string { return r.Protein }

	got, err := Rollup(m, "raw", byProtein, RollupOptions{})
	if err != nil {
		t.Fatalf("Rollup: %v", err)
	}
	if got.NumRows() != 1 {
		t.Fatalf("Expected 1 parent row, got %d", got.NumRows())
	}
	data, _ := got.Layer("raw")
	if data[0][0] != 4.0 {
		t.Errorf("Expected median 4.0, got %v", data[0][0])
	}
	if got.Rows[0].ID != "P1" {
		t.Errorf("Expected parent ID P1, got %s", got.Rows[0].ID)
	}
	// The default counts every child row, absent ones included.
	if got.Rows[0].Children != 4 {
		t.Errorf("Expected 4 children, got %d", got.Rows[0].Children)
	}

	got, err = Rollup(m, "raw", byProtein, RollupOptions{CountPresentOnly: true})
	if err != nil {
		t.Fatalf("Rollup: %v", err)
	}
	if got.Rows[0].Children != 3 {
		t.Errorf("Expected 3 contributing children, got %d", got.Rows[0].Children)
	}
}

func TestRollupAllAbsentStaysAbsent(t *testing.T) {
	m := New(
		[]Row{
			{ID: "1", Protein: "P1"},
			{ID: "2", Protein: "P1"},
		},
		[]Sample{{Name: "a"}, {Name: "b"}},
	)
	if err := m.AddLayer("raw", [][]float64{
		{1.5, Absent()},
		{2.5, Absent()},
	}); err != nil {
		t.Fatalf("AddLayer: %v", err)
	}

	got, err := Rollup(m, "raw", func(r Row) string { return r.Protein }, RollupOptions{})
	if err != nil {
		t.Fatalf("Rollup: %v", err)
	}
	data, _ := got.Layer("raw")
	if data[0][0] != 2.0 {
		t.Errorf("Expected median 2.0, got %v", data[0][0])
	}
	if !IsAbsent(data[0][1]) {
		t.Errorf("Expected all-absent sample to stay absent, got %v", data[0][1])
	}
}

// Rolling up a matrix whose keys are already unique must reproduce the
// values and leave every parent with a single child.
func TestRollupIdempotentOnUniqueKeys(t *testing.T) {
	m := New(
		[]Row{
			{ID: "P1", Protein: "P1"},
			{ID: "P2", Protein: "P2"},
			{ID: "P3", Protein: "P3"},
		},
		[]Sample{{Name: "a"}, {Name: "b"}},
	)
	want := [][]float64{
		{1.25, Absent()},
		{Absent(), 3.5},
		{2.0, 4.0},
	}
	if err := m.AddLayer("raw", want); err != nil {
		t.Fatalf("AddLayer: %v", err)
	}

	got, err := Rollup(m, "raw", func(r Row) string { return r.Protein }, RollupOptions{})
	if err != nil {
		t.Fatalf("Rollup: %v", err)
	}
	data, _ := got.Layer("raw")
	if diff := cmp.Diff(want, data, layerComparer); diff != "" {
		t.Errorf("values changed under identity rollup (-want +got):\n%s", diff)
	}
	for _, r := range got.Rows {
		if r.Children != 1 {
			t.Errorf("Protein %s: expected 1 child, got %d", r.ID, r.Children)
		}
	}
}

func TestRollupKeepsFirstAppearanceOrder(t *testing.T) {
	m := New(
		[]Row{
			{ID: "1", Protein: "P2"},
			{ID: "2", Protein: "P1"},
			{ID: "3", Protein: "P2"},
		},
		[]Sample{{Name: "a"}},
	)
	if err := m.AddLayer("raw", [][]float64{{1}, {2}, {3}}); err != nil {
		t.Fatalf("AddLayer: %v", err)
	}
	got, err := Rollup(m, "raw", func(r Row) string { return r.Protein }, RollupOptions{})
	if err != nil {
		t.Fatalf("Rollup: %v", err)
	}
	if got.Rows[0].ID != "P2" || got.Rows[1].ID != "P1" {
		t.Errorf("Unexpected parent order: %s, %s", got.Rows[0].ID, got.Rows[1].ID)
	}
}
