package ras

import (
	"math"
	"testing"
)

func TestRasterViewBoundsChecked(t *testing.T) {
	data := []float32{1, 2, 3, 4, 5, 6}
	v := NewRasterView(data, 2, 3)

	if val, ok := v.At(RowCol{0, 0}); !ok || val != 1 {
		t.Errorf("At(0,0) = %v, %v; want 1, true", val, ok)
	}
	if val, ok := v.At(RowCol{1, 2}); !ok || val != 6 {
		t.Errorf("At(1,2) = %v, %v; want 6, true", val, ok)
	}
	if _, ok := v.At(RowCol{2, 0}); ok {
		t.Errorf("At(2,0) should be out of bounds")
	}
	if _, ok := v.At(RowCol{-1, 0}); ok {
		t.Errorf("At(-1,0) should be out of bounds")
	}
}

func TestRasterViewVisitRowMajor(t *testing.T) {
	data := []float32{1, 2, 3, 4}
	v := NewRasterView(data, 2, 2)

	var seen []RowCol
	v.Visit(func(rc RowCol, value float32) {
		seen = append(seen, rc)
		if data[rc.Row*2+rc.Col] != value {
			t.Errorf("visit value mismatch at %v", rc)
		}
	})

	want := []RowCol{{0, 0}, {0, 1}, {1, 0}, {1, 1}}
	if len(seen) != len(want) {
		t.Fatalf("got %d visits, want %d", len(seen), len(want))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("visit order[%d] = %v, want %v", i, seen[i], want[i])
		}
	}
}

func TestStatsUniformImageHasZeroRange(t *testing.T) {
	data := make([]float32, 100)
	for i := range data {
		data[i] = 0.5
	}
	v := NewRasterView(data, 10, 10)
	s := ComputeStats(v)

	if s.Range != 0 {
		t.Errorf("expected zero range on uniform image, got %v", s.Range)
	}
	if s.Valid() {
		t.Errorf("zero range must not be Valid()")
	}
}

func TestStatsSkipsNonFiniteCells(t *testing.T) {
	data := []float32{1, float32(math.NaN()), 3, float32(math.Inf(1))}
	v := NewRasterView(data, 2, 2)
	s := ComputeStats(v)

	if s.Min != 1 || s.Max != 3 {
		t.Errorf("expected min/max over finite cells only, got min=%v max=%v", s.Min, s.Max)
	}
}

func TestSpotIsFinite(t *testing.T) {
	if !(Spot{Row: 1.5, Col: 2.5}).IsFinite() {
		t.Errorf("expected finite spot to report finite")
	}
	if (Spot{Row: math.NaN(), Col: 0}).IsFinite() {
		t.Errorf("expected NaN spot to report non-finite")
	}
}

func TestDistinctionUndefinedForSinglePeak(t *testing.T) {
	if _, ok := Distinction([]PeakRCV{{Value: 5}}); ok {
		t.Errorf("expected Distinction to be undefined with one peak")
	}
}

func TestDistinctionComputesNormalizedGap(t *testing.T) {
	d, ok := Distinction([]PeakRCV{{Value: 10}, {Value: 4}})
	if !ok {
		t.Fatalf("expected Distinction to be defined")
	}
	if want := 0.6; math.Abs(d-want) > 1e-9 {
		t.Errorf("Distinction = %v, want %v", d, want)
	}
}
