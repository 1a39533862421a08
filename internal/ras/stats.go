package ras

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats summarizes a RasterView's finite cells: min, max, mean, and the
// derived range = max - min. Constructed lazily from a RasterView, as
// spec.md §3 requires — SymRingFilter holds one per construction call.
type Stats struct {
	Min, Max, Mean, Range float64
}

// ComputeStats scans every cell of v and summarizes the finite ones using
// gonum's floats/stat helpers in place of a hand-rolled reduction
// (cm68-traces and mlnoga-nightlight both reach for gonum for exactly this
// kind of min/max/mean sweep over image data).
func ComputeStats(v RasterView) Stats {
	raw := v.Raw()
	finite := make([]float64, 0, len(raw))
	for _, x := range raw {
		f := float64(x)
		if !math.IsNaN(f) && !math.IsInf(f, 0) {
			finite = append(finite, f)
		}
	}
	if len(finite) == 0 {
		return Stats{Min: math.NaN(), Max: math.NaN(), Mean: math.NaN(), Range: math.NaN()}
	}
	lo, hi := floats.Min(finite), floats.Max(finite)
	mean := stat.Mean(finite, nil)
	return Stats{Min: lo, Max: hi, Mean: mean, Range: hi - lo}
}

// Valid reports whether Range is usable as a normalization denominator —
// i.e. finite and strictly positive (spec.md §4.2 step 1 / §7
// DegenerateStats).
func (s Stats) Valid() bool {
	return !math.IsNaN(s.Range) && !math.IsInf(s.Range, 0) && s.Range > 0
}
