package ops

import (
	"math"
	"sort"

	"github.com/stellacore/quadloco/internal/ras"
)

// Peaks returns every interior cell of grid that is a weak 8-neighbourhood
// local maximum: finite, strictly greater than minValue, with all eight
// neighbours finite and no neighbour strictly greater (spec.md §4.4). This
// is a *weak* maximum test (">=" against each neighbour), so flat-top
// plateaus of width >= 2 can yield multiple adjacent peak cells; callers
// that need a unique center must deduplicate themselves. The result is
// unordered; use LargestPeaks or sort it directly.
func Peaks(grid ras.RasterView, minValue float64) []ras.PeakRCV {
	var out []ras.PeakRCV

	high, wide := grid.High(), grid.Wide()
	for r := 1; r < high-1; r++ {
		for c := 1; c < wide-1; c++ {
			rc := ras.RowCol{Row: r, Col: c}
			center, ok := grid.At(rc)
			if !ok || math.IsNaN(float64(center)) || math.IsInf(float64(center), 0) {
				continue
			}
			if float64(center) <= minValue {
				continue
			}
			if isWeakLocalMax(grid, rc, center) {
				out = append(out, ras.PeakRCV{RC: rc, Value: float64(center)})
			}
		}
	}
	return out
}

func isWeakLocalMax(grid ras.RasterView, center ras.RowCol, centerValue float32) bool {
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			neighbor, ok := grid.At(ras.RowCol{Row: center.Row + dr, Col: center.Col + dc})
			if !ok || math.IsNaN(float64(neighbor)) || math.IsInf(float64(neighbor), 0) {
				return false
			}
			if neighbor > centerValue {
				return false
			}
		}
	}
	return true
}

// SortDescending sorts peaks by Value descending, in place, and also
// returns the slice for chaining.
func SortDescending(peaks []ras.PeakRCV) []ras.PeakRCV {
	sort.Sort(sort.Reverse(ras.ByValueAsc(peaks)))
	return peaks
}

// LargestPeaks returns the top k peaks of grid (strictly greater than
// minValue), sorted descending by value. k <= 0 returns all peaks sorted.
func LargestPeaks(grid ras.RasterView, minValue float64, k int) []ras.PeakRCV {
	peaks := SortDescending(Peaks(grid, minValue))
	if k > 0 && k < len(peaks) {
		peaks = peaks[:k]
	}
	return peaks
}
