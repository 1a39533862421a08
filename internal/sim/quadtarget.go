// Package sim renders synthetic quad-target scenes for exercising the
// detection pipeline end to end, the evaluation-harness collaborator
// named by spec.md §1's "Out of scope" list. It is grounded on the
// teacher's CPURenderer (internal/fit/renderer_cpu.go): the same
// bounding-box scan and compositing shape, adapted from compositing
// colored circles onto an *image.NRGBA to writing quadrant intensities
// directly into a float32 RasterView.
package sim

import (
	"math"
	"math/rand"

	"github.com/stellacore/quadloco/internal/ras"
)

// QuadTarget describes an ideal four-quadrant fiducial: light and dark
// intensities meeting at Center, with top-left/bottom-right sharing one
// intensity and top-right/bottom-left sharing the other.
type QuadTarget struct {
	High, Wide  int
	Center      ras.Spot
	Light, Dark float32
}

// NewIdealQuadTarget builds a QuadTarget of the given size centered at
// center, with intensities 1.0 and 0.0.
func NewIdealQuadTarget(high, wide int, center ras.Spot) QuadTarget {
	return QuadTarget{High: high, Wide: wide, Center: center, Light: 1.0, Dark: 0.0}
}

// Render rasterizes the target: each cell's value is decided by the sign
// of its center's offset from Center in each axis, matching spec.md §8
// scenario C's quadrant layout for a center exactly on a cell corner, and
// generalizing it to a real-valued sub-pixel Center.
func (q QuadTarget) Render() ras.RasterView {
	data := make([]float32, q.High*q.Wide)
	g := ras.NewRasterView(data, q.High, q.Wide)

	for r := 0; r < q.High; r++ {
		for c := 0; c < q.Wide; c++ {
			dr := float64(r) + 0.5 - q.Center.Row
			dc := float64(c) + 0.5 - q.Center.Col

			v := q.Dark
			if (dr < 0) == (dc < 0) {
				v = q.Light
			}
			g.Set(ras.RowCol{Row: r, Col: c}, v)
		}
	}
	return g
}

// RenderAntiAliased rasterizes the target by supersampling every cell on a
// samplesPerAxis x samplesPerAxis grid, so cells a quadrant boundary passes
// through take their fractional coverage, softening the hard edge Render
// produces — useful for refinement tests closer to real optics.
func (q QuadTarget) RenderAntiAliased(samplesPerAxis int) ras.RasterView {
	if samplesPerAxis < 2 {
		return q.Render()
	}

	data := make([]float32, q.High*q.Wide)
	g := ras.NewRasterView(data, q.High, q.Wide)
	step := 1.0 / float64(samplesPerAxis)
	total := float64(samplesPerAxis * samplesPerAxis)

	for r := 0; r < q.High; r++ {
		for c := 0; c < q.Wide; c++ {
			sum := 0.0
			for sr := 0; sr < samplesPerAxis; sr++ {
				for sc := 0; sc < samplesPerAxis; sc++ {
					dr := float64(r) + (float64(sr)+0.5)*step - q.Center.Row
					dc := float64(c) + (float64(sc)+0.5)*step - q.Center.Col
					if (dr < 0) == (dc < 0) {
						sum += float64(q.Light)
					} else {
						sum += float64(q.Dark)
					}
				}
			}
			g.Set(ras.RowCol{Row: r, Col: c}, float32(sum/total))
		}
	}
	return g
}

// AddGaussianNoise returns a copy of image with independent N(0,sigma)
// noise added to every finite cell, using rng for reproducibility.
func AddGaussianNoise(image ras.RasterView, sigma float64, rng *rand.Rand) ras.RasterView {
	data := make([]float32, image.High()*image.Wide())
	out := ras.NewRasterView(data, image.High(), image.Wide())

	image.Visit(func(rc ras.RowCol, v float32) {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			out.Set(rc, v)
			return
		}
		out.Set(rc, v+float32(rng.NormFloat64()*sigma))
	})
	return out
}
