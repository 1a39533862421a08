package ops

import (
	"math"

	"github.com/stellacore/quadloco/internal/ras"
)

// symRingK is the divisor applied to range before squaring in the
// half-turn symmetry score (spec.md §4.2 step 5). The source's C++
// comments note 0.25 was chosen empirically over 0.5; spec.md §9 records
// this as a tunable hyperparameter, not algorithmic essence, so it is
// named here rather than inlined.
const symRingK = 0.25

// SymRingFilter measures, at a single cell, how strongly its ring
// neighborhood exhibits half-turn rotational symmetry, annular contrast,
// and dark/light balance (spec.md §4.2). One filter is built per ring
// half-size and reused across every cell of an image — the same
// construct-once/evaluate-many shape as the teacher's CPURenderer holding
// a fixed CostFunc and bounds across many Cost() calls.
type SymRingFilter struct {
	image    ras.RasterView
	ring     RingGeometry
	mid      float64
	rng      float64
	halfSize int
}

// NewSymRingFilter builds a filter over image at the given ring half-size,
// caching image Stats (min/max/mean/range) once at construction.
func NewSymRingFilter(image ras.RasterView, stats ras.Stats, halfSize int) *SymRingFilter {
	return &SymRingFilter{
		image:    image,
		ring:     NewRingGeometry(halfSize),
		mid:      (stats.Min + stats.Max) / 2,
		rng:      stats.Range,
		halfSize: halfSize,
	}
}

// HalfSize returns the ring half-size this filter was built with.
func (f *SymRingFilter) HalfSize() int { return f.halfSize }

// Border returns the number of cells at each edge that NewSymRingFilter's
// ring cannot evaluate without reading out of bounds.
func (f *SymRingFilter) Border() int { return f.halfSize + 1 }

// NoResponse is the sentinel "no response" value for a cell whose ring
// cannot be evaluated (out of bounds, non-finite neighbor, degenerate
// stats). Peak search treats it as 0 (spec.md §4.2).
const NoResponse = 0.0

// Response computes the filter's scalar value at rc following the five
// steps of spec.md §4.2: degenerate-stats short circuit, antipodal
// accumulation, the balance gate, the half-turn symmetry score, and the
// contrast weight.
func (f *SymRingFilter) Response(rc ras.RowCol) float64 {
	if !(f.rng > 0) || math.IsNaN(f.rng) || math.IsInf(f.rng, 0) {
		return NoResponse
	}

	offsets := f.ring.Offsets
	k := f.ring.HalfLen()

	sumSqDiff := 0.0
	ringMin, ringMax := math.Inf(1), math.Inf(-1)
	numPos, numNeg := 0, 0

	for i := 0; i < k; i++ {
		a := offsets[i]
		b := offsets[i+k]

		v1, ok1 := f.image.At(ras.RowCol{Row: rc.Row + a.DR, Col: rc.Col + a.DC})
		v2, ok2 := f.image.At(ras.RowCol{Row: rc.Row + b.DR, Col: rc.Col + b.DC})
		if !ok1 || !ok2 || math.IsNaN(float64(v1)) || math.IsInf(float64(v1), 0) ||
			math.IsNaN(float64(v2)) || math.IsInf(float64(v2), 0) {
			return NoResponse
		}

		d1 := float64(v1) - f.mid
		d2 := float64(v2) - f.mid

		if d1 < ringMin {
			ringMin = d1
		}
		if d2 < ringMin {
			ringMin = d2
		}
		if d1 > ringMax {
			ringMax = d1
		}
		if d2 > ringMax {
			ringMax = d2
		}

		diff := d2 - d1
		sumSqDiff += diff * diff

		if d1+d2 < 0 {
			numNeg++
		} else {
			numPos++
		}
	}

	if numPos <= 1 || numNeg <= 1 {
		return 0
	}

	variance := sumSqDiff / float64(k)
	denom := symRingK * f.rng
	ratio := variance / (denom * denom)
	pSym := math.Exp(-ratio)

	weight := (ringMax - ringMin) / f.rng
	return weight * pSym
}

// ResponseGrid evaluates Response over every interior cell of image and
// fills the border with NoResponse, matching spec.md §4.2's
// "convenience" contract.
func ResponseGrid(image ras.RasterView, stats ras.Stats, halfSize int) ras.RasterView {
	filter := NewSymRingFilter(image, stats, halfSize)
	out := ras.ZeroRasterView(image.High(), image.Wide())
	border := filter.Border()

	for r := border; r < image.High()-border; r++ {
		for c := border; c < image.Wide()-border; c++ {
			rc := ras.RowCol{Row: r, Col: c}
			out.Set(rc, float32(filter.Response(rc)))
		}
	}
	return out
}

// ResponseGridParallel is the sharded variant of ResponseGrid: it splits
// the interior rows into contiguous ranges, evaluates each range in its
// own goroutine, and joins before returning — spec.md §5's only sanctioned
// parallelism, each shard writing disjoint rows so no synchronization is
// needed beyond the join.
func ResponseGridParallel(image ras.RasterView, stats ras.Stats, halfSize int, workers int) ras.RasterView {
	if workers <= 1 {
		return ResponseGrid(image, stats, halfSize)
	}

	out := ras.ZeroRasterView(image.High(), image.Wide())
	filter := NewSymRingFilter(image, stats, halfSize)
	border := filter.Border()
	lo, hi := border, image.High()-border
	if hi <= lo {
		return out
	}

	rows := hi - lo
	if workers > rows {
		workers = rows
	}
	chunk := (rows + workers - 1) / workers

	done := make(chan struct{}, workers)
	for w := 0; w < workers; w++ {
		rowLo := lo + w*chunk
		rowHi := rowLo + chunk
		if rowHi > hi {
			rowHi = hi
		}
		if rowLo >= rowHi {
			done <- struct{}{}
			continue
		}
		go func(rowLo, rowHi int) {
			localFilter := NewSymRingFilter(image, stats, halfSize)
			for r := rowLo; r < rowHi; r++ {
				for c := border; c < image.Wide()-border; c++ {
					rc := ras.RowCol{Row: r, Col: c}
					out.Set(rc, float32(localFilter.Response(rc)))
				}
			}
			done <- struct{}{}
		}(rowLo, rowHi)
	}
	for w := 0; w < workers; w++ {
		<-done
	}
	return out
}
