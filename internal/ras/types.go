// Package ras holds the borrowed-raster data model shared by every
// detection component: RasterView, RowCol/Spot coordinates, ChipSpec
// address translation, and the PeakRCV/Hit result types.
package ras

import "math"

// RowCol is a non-negative integer cell index into a RasterView.
type RowCol struct {
	Row, Col int
}

// Spot is a sub-pixel location expressed in the same (row,col) coordinate
// frame as a RasterView. The cell center of integer (r,c) is (r+0.5, c+0.5).
type Spot struct {
	Row, Col float64
}

// Add returns the spot shifted by a RowCol offset.
func (s Spot) Add(rc RowCol) Spot {
	return Spot{Row: s.Row + float64(rc.Row), Col: s.Col + float64(rc.Col)}
}

// Sub returns the spot shifted by the negation of a RowCol offset.
func (s Spot) Sub(rc RowCol) Spot {
	return Spot{Row: s.Row - float64(rc.Row), Col: s.Col - float64(rc.Col)}
}

// IsFinite reports whether both components are finite.
func (s Spot) IsFinite() bool {
	return !math.IsNaN(s.Row) && !math.IsInf(s.Row, 0) &&
		!math.IsNaN(s.Col) && !math.IsInf(s.Col, 0)
}

// CellCenter returns the sub-pixel center of an integer cell.
func CellCenter(rc RowCol) Spot {
	return Spot{Row: float64(rc.Row) + 0.5, Col: float64(rc.Col) + 0.5}
}

// PeakRCV is a scalar-field local maximum: a cell and its value.
type PeakRCV struct {
	RC    RowCol
	Value float64
}

// ByValueAsc orders PeakRCV ascending by Value; callers typically reverse
// it for a descending sort.
type ByValueAsc []PeakRCV

func (p ByValueAsc) Len() int           { return len(p) }
func (p ByValueAsc) Less(i, j int) bool { return p[i].Value < p[j].Value }
func (p ByValueAsc) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }

// Hit is a located target center: a sub-pixel spot, a pseudo-probability
// significance in [0,1], and a radial positional uncertainty in cells.
type Hit struct {
	Spot          Spot
	Significance  float64
	Sigma         float64
}

// IsValid reports whether the hit carries a usable result. An invalid Hit
// is the core's "no answer" sentinel (spec.md §7: OutOfBounds/NoMinimumSSD).
func (h Hit) IsValid() bool {
	return h.Spot.IsFinite() && !math.IsNaN(h.Significance) && !math.IsNaN(h.Sigma)
}

// InvalidHit is the zero-information Hit returned when refinement cannot
// produce a result (border too close, degenerate SSD field).
var InvalidHit = Hit{
	Spot:         Spot{Row: math.NaN(), Col: math.NaN()},
	Significance: math.NaN(),
	Sigma:        math.NaN(),
}

// ByHitSignificanceDesc orders Hits descending by Significance.
type ByHitSignificanceDesc []Hit

func (h ByHitSignificanceDesc) Len() int           { return len(h) }
func (h ByHitSignificanceDesc) Less(i, j int) bool { return h[i].Significance > h[j].Significance }
func (h ByHitSignificanceDesc) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

// Distinction computes the normalized gap between the top two entries of a
// descending-sorted peak list, a confidence proxy for the leading
// candidate. The second return value is false when fewer than two peaks
// exist or the leading value is not positive (undefined per spec.md §4.4).
func Distinction(sortedDesc []PeakRCV) (float64, bool) {
	if len(sortedDesc) < 2 || sortedDesc[0].Value <= 0 {
		return 0, false
	}
	return (sortedDesc[0].Value - sortedDesc[1].Value) / sortedDesc[0].Value, true
}
