// Package ops implements the center-detection pipeline's per-pixel and
// per-field operators: ring geometry, the symmetry-response filter, the
// multi-scale combiner, the 2D peak finder, and the sub-cell SSD refiner.
//
// Every type here is a pure function over a borrowed ras.RasterView; none
// retains state beyond one construction/evaluation cycle (spec.md §5).
package ops

import "math"

// RingGeometry is the ordered, antipodally-paired list of (dr,dc) offsets
// approximating a circle of integer half-size (spec.md §4.1). The pairing
// offset[i+N] == -offset[i] lets SymRingFilter iterate only the first
// half and read both ends of each antipodal pair per loop.
type RingGeometry struct {
	Offsets []RelRC
}

// RelRC is a signed row/col offset relative to some anchor cell.
type RelRC struct {
	DR, DC int
}

// NewRingGeometry builds the offset table for a given half-size following
// spec.md §4.1 exactly: first-quadrant angular sweep, mirror to the
// second quadrant, then half-turn negation to complete the annulus.
//
// Grounded in the teacher's habit of precomputing an offset table once at
// construction time and replaying it every evaluation (internal/fit's box
// offsets for SSD/correlation windows) rather than recomputing angles
// per-pixel.
func NewRingGeometry(halfSize int) RingGeometry {
	if halfSize < 0 {
		halfSize = 0
	}
	radius := float64(halfSize) + 0.5
	dAlpha := (math.Pi / 4) / radius

	// First-quadrant sweep, deduping adjacent repeats.
	var quadrant []RelRC
	for alpha := 0.0; alpha <= math.Pi/2+1e-12; alpha += dAlpha {
		dr := roundHalfUp(radius * math.Cos(alpha))
		dc := roundHalfUp(radius * math.Sin(alpha))
		off := RelRC{DR: dr, DC: dc}
		if len(quadrant) == 0 || quadrant[len(quadrant)-1] != off {
			quadrant = append(quadrant, off)
		}
	}

	// Mirror into the second quadrant by reversed iteration.
	full := make([]RelRC, 0, 2*len(quadrant))
	full = append(full, quadrant...)
	for i := len(quadrant) - 1; i >= 0; i-- {
		off := quadrant[i]
		full = append(full, RelRC{DR: -off.DR, DC: off.DC})
	}

	// Half-turn symmetry: negate everything except the final element,
	// which would otherwise duplicate its own antipode.
	n := len(full)
	for i := 0; i < n-1; i++ {
		full = append(full, RelRC{DR: -full[i].DR, DC: -full[i].DC})
	}

	// Final adjacent dedup.
	deduped := full[:0:0]
	for _, off := range full {
		if len(deduped) == 0 || deduped[len(deduped)-1] != off {
			deduped = append(deduped, off)
		}
	}

	return RingGeometry{Offsets: deduped}
}

// HalfLen returns N, half the offset count — the number of antipodal
// pairs in the ring.
func (g RingGeometry) HalfLen() int {
	return len(g.Offsets) / 2
}

// roundHalfUp rounds by floor(x+0.5), the convention spec.md §4.1 fixes.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}
