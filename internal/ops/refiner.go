package ops

import (
	"math"

	"github.com/stellacore/quadloco/internal/ras"
)

// ssdProbScale is the 4 in exp(-(4*frac)^2) (spec.md §4.5 step 3) — how
// sharply the weighted centroid concentrates around the SSD minimum.
const ssdProbScale = 4.0

// box returns the row-major sequence of (dr,dc) for dr,dc in [-h,+h],
// length (2h+1)^2 — the shared offset-table shape spec.md §4.5 uses for
// both the Hood and Corr windows. Grounded in the teacher's box-scan
// idiom in internal/fit/renderer_cpu.go's renderCircle bounding-box walk.
func box(h int) []RelRC {
	out := make([]RelRC, 0, (2*h+1)*(2*h+1))
	for dr := -h; dr <= h; dr++ {
		for dc := -h; dc <= h; dc++ {
			out = append(out, RelRC{DR: dr, DC: dc})
		}
	}
	return out
}

// CenterRefinerSSD computes a sub-cell center estimate for a candidate
// integer cell by weighting a sum-of-squared-differences field (half-turn
// rotation comparison) over a small search window (spec.md §4.5).
type CenterRefinerSSD struct {
	image              ras.RasterView
	hood, corr         []RelRC
	halfHood, halfCorr int
}

// NewCenterRefinerSSD builds a refiner over image with the given hood and
// correlation half-sizes (spec.md §4.5 construction inputs).
func NewCenterRefinerSSD(image ras.RasterView, halfHood, halfCorr int) *CenterRefinerSSD {
	return &CenterRefinerSSD{
		image:    image,
		hood:     box(halfHood),
		corr:     box(halfCorr),
		halfHood: halfHood,
		halfCorr: halfCorr,
	}
}

// FitNear computes a Hit for the candidate cell rc0, following spec.md
// §4.5 steps 1-7 exactly: interior test, SSD field over the hood, a
// sub-cell weighted centroid of exp(-(4*frac)^2), and translation back to
// full-image coordinates.
func (f *CenterRefinerSSD) FitNear(rc0 ras.RowCol) ras.Hit {
	maxRad := f.halfHood + f.halfCorr
	if !(maxRad < rc0.Row && rc0.Row < f.image.High()-maxRad) {
		return ras.InvalidHit
	}
	if !(maxRad < rc0.Col && rc0.Col < f.image.Wide()-maxRad) {
		return ras.InvalidHit
	}

	ssd := make([]float64, len(f.hood))
	m := len(f.corr) / 2
	for hi, hoodOff := range f.hood {
		rcH := ras.RowCol{Row: rc0.Row + hoodOff.DR, Col: rc0.Col + hoodOff.DC}
		sum := 0.0
		bad := false
		for i := 0; i < m; i++ {
			fwd := f.corr[i]
			rev := f.corr[len(f.corr)-1-i]

			v1, ok1 := f.image.At(ras.RowCol{Row: rcH.Row + fwd.DR, Col: rcH.Col + fwd.DC})
			v2, ok2 := f.image.At(ras.RowCol{Row: rcH.Row + rev.DR, Col: rcH.Col + rev.DC})
			if !ok1 || !ok2 || math.IsNaN(float64(v1)) || math.IsInf(float64(v1), 0) ||
				math.IsNaN(float64(v2)) || math.IsInf(float64(v2), 0) {
				bad = true
				break
			}
			diff := float64(v2) - float64(v1)
			sum += diff * diff
		}
		if bad {
			ssd[hi] = math.NaN()
		} else {
			ssd[hi] = sum
		}
	}

	ssdMax := math.Inf(-1)
	for _, v := range ssd {
		if !math.IsNaN(v) && v > ssdMax {
			ssdMax = v
		}
	}
	if math.IsInf(ssdMax, -1) || !(ssdMax > 0) {
		return ras.InvalidHit
	}

	weights := make([]float64, len(ssd))
	sumP := 0.0
	sumRow, sumCol := 0.0, 0.0
	hoodSide := 2*f.halfHood + 1
	for hi, v := range ssd {
		if math.IsNaN(v) {
			continue
		}
		frac := v / ssdMax
		p := math.Exp(-(ssdProbScale * frac) * (ssdProbScale * frac))
		weights[hi] = p

		localRow := hi / hoodSide
		localCol := hi % hoodSide
		cellRow := float64(localRow) + 0.5
		cellCol := float64(localCol) + 0.5

		sumP += p
		sumRow += p * cellRow
		sumCol += p * cellCol
	}

	if !(sumP > 0) {
		return ras.InvalidHit
	}

	spotRow := sumRow / sumP
	spotCol := sumCol / sumP

	varAccum := 0.0
	for hi, v := range ssd {
		if math.IsNaN(v) {
			continue
		}
		p := weights[hi]
		localRow := hi / hoodSide
		localCol := hi % hoodSide
		cellRow := float64(localRow) + 0.5
		cellCol := float64(localCol) + 0.5

		dr := cellRow - spotRow
		dc := cellCol - spotCol
		varAccum += p * math.Hypot(dr, dc)
	}
	variance := varAccum / sumP
	sigma := math.Sqrt(variance)

	minLocalRow := int(math.Floor(spotRow))
	minLocalCol := int(math.Floor(spotCol))
	if minLocalRow < 0 {
		minLocalRow = 0
	}
	if minLocalRow >= hoodSide {
		minLocalRow = hoodSide - 1
	}
	if minLocalCol < 0 {
		minLocalCol = 0
	}
	if minLocalCol >= hoodSide {
		minLocalCol = hoodSide - 1
	}
	pAtMin := weights[minLocalRow*hoodSide+minLocalCol]

	spotFull := ras.Spot{
		Row: spotRow + float64(rc0.Row) - float64(f.halfHood),
		Col: spotCol + float64(rc0.Col) - float64(f.halfHood),
	}

	return ras.Hit{Spot: spotFull, Significance: pAtMin, Sigma: sigma}
}
