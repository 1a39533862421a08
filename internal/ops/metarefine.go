package ops

import (
	"math"

	"github.com/stellacore/quadloco/internal/opt"
	"github.com/stellacore/quadloco/internal/ras"
)

// MetaRefiner is an alternative to CenterRefinerSSD that searches the same
// half-turn SSD cost with a metaheuristic optimizer instead of the
// closed-form weighted centroid (spec.md §9 open question on refinement
// strategy, resolved in SPEC_FULL.md §4.12: offer both, default to the
// closed-form one). It is grounded directly on the teacher's
// internal/opt.Optimizer/MayflyAdapter, repurposed from circle-fit
// parameter search to a 2D sub-cell offset search.
type MetaRefiner struct {
	image     ras.RasterView
	corr      []RelRC
	halfCorr  int
	optimizer opt.Optimizer
}

// NewMetaRefiner builds a MetaRefiner over image with the given
// correlation half-size, using optimizer to search the
// [-halfHood,+halfHood] window that FitNear is given around each candidate.
func NewMetaRefiner(image ras.RasterView, halfCorr int, optimizer opt.Optimizer) *MetaRefiner {
	return &MetaRefiner{
		image:     image,
		corr:      box(halfCorr),
		halfCorr:  halfCorr,
		optimizer: optimizer,
	}
}

// FitNear mirrors CenterRefinerSSD.FitNear's contract: same interior
// safety test, same SSD cost, but the sub-cell offset within the hood is
// located by the wrapped Optimizer rather than a weighted centroid.
func (f *MetaRefiner) FitNear(rc0 ras.RowCol, halfHood int) ras.Hit {
	maxRad := halfHood + f.halfCorr
	if !(maxRad < rc0.Row && rc0.Row < f.image.High()-maxRad) {
		return ras.InvalidHit
	}
	if !(maxRad < rc0.Col && rc0.Col < f.image.Wide()-maxRad) {
		return ras.InvalidHit
	}

	cost := func(x []float64) float64 {
		return f.ssdAt(rc0, x[0], x[1])
	}

	bound := float64(halfHood)
	lower := []float64{-bound, -bound}
	upper := []float64{bound, bound}

	best, bestCost := f.optimizer.Run(cost, lower, upper, 2)
	if len(best) != 2 || math.IsNaN(bestCost) || math.IsInf(bestCost, 0) {
		return ras.InvalidHit
	}

	spot := ras.Spot{
		Row: float64(rc0.Row) + 0.5 + best[0],
		Col: float64(rc0.Col) + 0.5 + best[1],
	}

	p := math.Exp(-(ssdProbScale * 0) * (ssdProbScale * 0))
	if bestCost > 0 {
		p = math.Exp(-bestCost)
	}
	return ras.Hit{Spot: spot, Significance: p, Sigma: 0}
}

// ssdAt evaluates the same half-turn SSD cost as CenterRefinerSSD, but at
// a continuous (dr,dc) offset sampled by bilinear interpolation — the
// optimizer explores real-valued offsets, not just integer hood cells.
func (f *MetaRefiner) ssdAt(rc0 ras.RowCol, dr, dc float64) float64 {
	anchorRow := float64(rc0.Row) + dr
	anchorCol := float64(rc0.Col) + dc

	m := len(f.corr) / 2
	sum := 0.0
	for i := 0; i < m; i++ {
		fwd := f.corr[i]
		rev := f.corr[len(f.corr)-1-i]

		v1, ok1 := bilinearAt(f.image, anchorRow+float64(fwd.DR), anchorCol+float64(fwd.DC))
		v2, ok2 := bilinearAt(f.image, anchorRow+float64(rev.DR), anchorCol+float64(rev.DC))
		if !ok1 || !ok2 {
			return math.Inf(1)
		}
		diff := v2 - v1
		sum += diff * diff
	}
	return sum
}

// bilinearAt samples image at the real-valued cell-index position
// (row,col) — not the Spot (cell-center) frame — by interpolating the four
// surrounding integer cells. ok is false if any of those four cells falls
// outside image or holds a non-finite value.
func bilinearAt(image ras.RasterView, row, col float64) (float64, bool) {
	r0 := math.Floor(row)
	c0 := math.Floor(col)
	fr := row - r0
	fc := col - c0
	ir0, ic0 := int(r0), int(c0)

	v00, ok := image.At(ras.RowCol{Row: ir0, Col: ic0})
	if !ok || math.IsNaN(float64(v00)) || math.IsInf(float64(v00), 0) {
		return 0, false
	}
	v01, ok := image.At(ras.RowCol{Row: ir0, Col: ic0 + 1})
	if !ok || math.IsNaN(float64(v01)) || math.IsInf(float64(v01), 0) {
		return 0, false
	}
	v10, ok := image.At(ras.RowCol{Row: ir0 + 1, Col: ic0})
	if !ok || math.IsNaN(float64(v10)) || math.IsInf(float64(v10), 0) {
		return 0, false
	}
	v11, ok := image.At(ras.RowCol{Row: ir0 + 1, Col: ic0 + 1})
	if !ok || math.IsNaN(float64(v11)) || math.IsInf(float64(v11), 0) {
		return 0, false
	}

	top := float64(v00)*(1-fc) + float64(v01)*fc
	bottom := float64(v10)*(1-fc) + float64(v11)*fc
	return top*(1-fr) + bottom*fr, true
}
