package ops

import (
	"log/slog"

	"github.com/stellacore/quadloco/internal/ras"
)

// MultiSymCombiner runs one SymRingFilter across the whole image to
// enumerate candidate centers, then multiplicatively qualifies each
// candidate with the pointwise response of additional filters built at
// other ring half-sizes (spec.md §4.3). The largest radius supplies the
// candidate set; smaller radii only rescale the values, never relocate
// the candidates — mirroring the teacher's sequential-pass pipeline
// shape (internal/fit/pipeline.go's OptimizeSequential/OptimizeBatch:
// one pass establishes a base, later passes refine without discarding
// earlier structure).
type MultiSymCombiner struct {
	image         ras.RasterView
	stats         ras.Stats
	ringHalfSizes []int
}

// NewMultiSymCombiner builds a combiner over image for the given ordered
// ring half-sizes. ringHalfSizes must be non-empty.
func NewMultiSymCombiner(image ras.RasterView, ringHalfSizes []int) *MultiSymCombiner {
	return &MultiSymCombiner{
		image:         image,
		stats:         ras.ComputeStats(image),
		ringHalfSizes: append([]int(nil), ringHalfSizes...),
	}
}

// Combine runs the pipeline described in spec.md §4.3 and returns
// candidates sorted descending by their qualified value. epsilon is the
// strict lower bound applied to the base filter's peak search (spec.md's
// "value > ε").
func (m *MultiSymCombiner) Combine(epsilon float64) []ras.PeakRCV {
	if len(m.ringHalfSizes) == 0 {
		return nil
	}
	if !m.stats.Valid() {
		slog.Debug("MultiSymCombiner: degenerate image stats, returning no candidates", "range", m.stats.Range)
		return nil
	}

	base := m.ringHalfSizes[0]
	baseGrid := ResponseGrid(m.image, m.stats, base)
	candidates := SortDescending(Peaks(baseGrid, epsilon))
	slog.Debug("MultiSymCombiner: base filter peaks", "half_size", base, "count", len(candidates))

	if len(m.ringHalfSizes) == 1 {
		return candidates
	}

	qualifiers := make([]*SymRingFilter, 0, len(m.ringHalfSizes)-1)
	for _, hs := range m.ringHalfSizes[1:] {
		qualifiers = append(qualifiers, NewSymRingFilter(m.image, m.stats, hs))
	}

	out := make([]ras.PeakRCV, len(candidates))
	for i, cand := range candidates {
		v := cand.Value
		for _, q := range qualifiers {
			v *= q.Response(cand.RC)
		}
		out[i] = ras.PeakRCV{RC: cand.RC, Value: v}
	}

	SortDescending(out)
	slog.Debug("MultiSymCombiner: qualified candidates", "count", len(out))
	return out
}
