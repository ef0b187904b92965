package abundance

import (
	"errors"
	"testing"
)

func filterFixture(t *testing.T) *Matrix {
	t.Helper()
	rows := []Row{
		{ID: "P01", Children: 2}, // too few peptides
		{ID: "P02", Children: 3}, // too few peptides and half absent
		{ID: "P03", Children: 5}, // half absent
		{ID: "P04", Children: 5}, // mostly absent
		{ID: "P05", Children: 4},
		{ID: "P06", Children: 5},
		{ID: "P07", Children: 8},
		{ID: "P08", Children: 5},
		{ID: "P09", Children: 12},
		{ID: "P10", Children: 6},
	}
	samples := []Sample{{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}}
	data := [][]float64{
		{1, 2, 3, 4},
		{1, Absent(), 3, Absent()},
		{Absent(), 2, Absent(), 4},
		{Absent(), Absent(), Absent(), 4},
		{1, 2, 3, 4},
		{1, 2, 3, Absent()},
		{1, 2, 3, 4},
		{Absent(), 2, 3, 4},
		{1, 2, 3, 4},
		{1, 2, 3, 4},
	}
	m := New(rows, samples)
	if err := m.AddLayer("log2", data); err != nil {
		t.Fatalf("AddLayer: %v", err)
	}
	return m
}

func TestQualityFilter(t *testing.T) {
	m := filterFixture(t)
	pol := FilterPolicy{MinChildren: 3, MaxMissing: 0.5}

	got, drops, err := QualityFilter(m, "log2", pol)
	if err != nil {
		t.Fatalf("QualityFilter: %v", err)
	}

	wantDropped := []string{"P01", "P02", "P03", "P04"}
	if len(drops) != len(wantDropped) {
		t.Fatalf("Expected %d drops, got %d: %+v", len(wantDropped), len(drops), drops)
	}
	for i, id := range wantDropped {
		if drops[i].ID != id {
			t.Errorf("Drop %d: expected %s, got %s (%s)", i, id, drops[i].ID, drops[i].Reason)
		}
	}
	// A row failing both predicates is dropped once.
	if got.NumRows() != 6 {
		t.Errorf("Expected 6 surviving rows, got %d", got.NumRows())
	}
	for _, r := range got.Rows {
		for _, id := range wantDropped {
			if r.ID == id {
				t.Errorf("Dropped protein %s still present", id)
			}
		}
	}
	// The input matrix is untouched.
	if m.NumRows() != 10 {
		t.Errorf("QualityFilter modified its input: %d rows", m.NumRows())
	}
}

func TestQualityFilterEmptyResult(t *testing.T) {
	m := filterFixture(t)
	_, _, err := QualityFilter(m, "log2", FilterPolicy{MinChildren: 100, MaxMissing: 0.5})
	if !errors.Is(err, ErrEmptyResult) {
		t.Errorf("Expected ErrEmptyResult, got: %v", err)
	}
}
