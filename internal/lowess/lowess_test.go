package lowess

import (
	"errors"
	"math"
	"testing"
)

// A weighted straight-line fit through points that already lie on a line
// reproduces the line, whatever the weights.
func TestFitRecoversLine(t *testing.T) {
	n := 25
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = float64(i) * 0.4
		y[i] = 2*x[i] + 1
	}
	got, err := Fit(x, y, 0.5)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	for i := range got {
		if math.Abs(got[i]-y[i]) > 1e-9 {
			t.Errorf("Point %d: expected %v, got %v", i, y[i], got[i])
		}
	}
}

func TestFitConstant(t *testing.T) {
	x := []float64{3, 1, 4, 1.5, 9, 2.6, 5}
	y := make([]float64, len(x))
	for i := range y {
		y[i] = 7.5
	}
	got, err := Fit(x, y, DefaultSpan)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	for i := range got {
		if math.Abs(got[i]-7.5) > 1e-9 {
			t.Errorf("Point %d: expected 7.5, got %v", i, got[i])
		}
	}
}

// The smooth follows the local trend of noiseless curved data to within
// the window resolution.
func TestFitTracksCurve(t *testing.T) {
	n := 200
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = float64(i) / float64(n)
		y[i] = x[i] * x[i]
	}
	got, err := Fit(x, y, 0.2)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	for i := range got {
		if math.Abs(got[i]-y[i]) > 0.02 {
			t.Errorf("Point %d (x=%v): expected about %v, got %v", i, x[i], y[i], got[i])
		}
	}
}

func TestFitAtInterpolates(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4, 5, 6, 7}
	y := make([]float64, len(x))
	for i := range y {
		y[i] = 3*x[i] - 2
	}
	got, err := FitAt(x, y, []float64{0.5, 2.5, 6.5}, 0.6)
	if err != nil {
		t.Fatalf("FitAt: %v", err)
	}
	want := []float64{-0.5, 5.5, 17.5}
	for i := range got {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("Query %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestFitInputOrderPreserved(t *testing.T) {
	x := []float64{5, 1, 3}
	y := []float64{10, 2, 6} // y = 2x on shuffled x
	got, err := Fit(x, y, 1.0)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	for i := range got {
		if math.Abs(got[i]-y[i]) > 1e-9 {
			t.Errorf("Point %d: expected %v, got %v", i, y[i], got[i])
		}
	}
}

func TestFitErrors(t *testing.T) {
	if _, err := Fit([]float64{1}, []float64{1}, 0.5); !errors.Is(err, ErrTooFewPoints) {
		t.Errorf("Expected ErrTooFewPoints, got: %v", err)
	}
	if _, err := Fit([]float64{1, 2}, []float64{1}, 0.5); err == nil {
		t.Error("Expected an error for mismatched lengths")
	}
}
