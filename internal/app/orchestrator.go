// Package app glues the ops and ras packages into the single
// locate_centers operation consumed by the outer CLI and server layers
// (spec.md §4.7 C8).
package app

import (
	"log/slog"

	"github.com/stellacore/quadloco/internal/opt"
	"github.com/stellacore/quadloco/internal/ops"
	"github.com/stellacore/quadloco/internal/ras"
)

// RefineMode selects which refinement strategy LocateCenters applies to
// the top candidate (SPEC_FULL.md §4.12).
type RefineMode string

const (
	RefineSSD    RefineMode = "ssd"
	RefineMayfly RefineMode = "mayfly"
)

// DefaultRingHalfSizes is the default candidate-enumeration radius list
// (spec.md §6 "Ring-size list (input)").
var DefaultRingHalfSizes = []int{5, 3}

// DefaultRefineHood and DefaultRefineCorr are the fit_near window sizes
// spec.md §4.7 names as the orchestrator's defaults.
const (
	DefaultRefineHood = 2
	DefaultRefineCorr = 5
)

// Orchestrator holds the ring sizes and refinement window an application
// wants for every call to LocateCenters, mirroring the construct-once,
// call-many shape of the teacher's CPURenderer/pipeline pairing.
type Orchestrator struct {
	RingHalfSizes []int
	RefineHood    int
	RefineCorr    int
	Epsilon       float64

	// RefineMode selects CenterRefinerSSD (default) or MetaRefiner. The
	// Mayfly* fields only matter when RefineMode is RefineMayfly.
	RefineMode  RefineMode
	MayflyIters int
	MayflyPop   int
	MayflySeed  int64
}

// NewOrchestrator builds an Orchestrator with spec.md's defaults.
func NewOrchestrator() *Orchestrator {
	return &Orchestrator{
		RingHalfSizes: append([]int(nil), DefaultRingHalfSizes...),
		RefineHood:    DefaultRefineHood,
		RefineCorr:    DefaultRefineCorr,
		RefineMode:    RefineSSD,
	}
}

// LocateCenters runs spec.md §4.7's five steps: enumerate candidates with
// MultiSymCombiner, take the largest, and refine it with CenterRefinerSSD
// (or, when RefineMode is RefineMayfly, with MetaRefiner). An empty
// candidate list (degenerate stats, uniform image, or no local maxima)
// yields an empty Hit slice — never an error.
func (o *Orchestrator) LocateCenters(image ras.RasterView) []ras.Hit {
	combiner := ops.NewMultiSymCombiner(image, o.RingHalfSizes)
	peaks := combiner.Combine(o.Epsilon)
	if len(peaks) == 0 {
		slog.Debug("LocateCenters: no candidates", "high", image.High(), "wide", image.Wide())
		return nil
	}

	top := peaks[0]
	hit := o.refine(image, top.RC)

	slog.Debug("LocateCenters: refined top candidate",
		"rc", top.RC, "response", top.Value, "valid", hit.IsValid(), "mode", o.RefineMode)

	return []ras.Hit{hit}
}

func (o *Orchestrator) refine(image ras.RasterView, rc ras.RowCol) ras.Hit {
	if o.RefineMode == RefineMayfly {
		optimizer := opt.NewMayfly(o.mayflyIters(), o.mayflyPop(), o.MayflySeed)
		meta := ops.NewMetaRefiner(image, o.RefineCorr, optimizer)
		return meta.FitNear(rc, o.RefineHood)
	}
	refiner := ops.NewCenterRefinerSSD(image, o.RefineHood, o.RefineCorr)
	return refiner.FitNear(rc)
}

func (o *Orchestrator) mayflyIters() int {
	if o.MayflyIters > 0 {
		return o.MayflyIters
	}
	return 100
}

func (o *Orchestrator) mayflyPop() int {
	if o.MayflyPop >= 20 {
		return o.MayflyPop
	}
	return 20
}

// LocateCenters is the package-level convenience entry point: the caller
// supplies the ring sizes and refinement window, and refinement uses
// CenterRefinerSSD.
func LocateCenters(image ras.RasterView, ringHalfSizes []int, refineHood, refineCorr int) []ras.Hit {
	o := &Orchestrator{RingHalfSizes: ringHalfSizes, RefineHood: refineHood, RefineCorr: refineCorr}
	return o.LocateCenters(image)
}

// KeyedNominal is one external-loader record: an identifying key and its
// nominal (approximate) full-image location, as produced by a .meapoint
// reader (spec.md §6).
type KeyedNominal struct {
	Key       string
	NominalRC ras.RowCol
}

// KeyedHit pairs a nominal's key with the Hit located near it.
type KeyedHit struct {
	Key string
	Hit ras.Hit
}

// LocateCentersKeyed implements spec.md §4.7's keyed variant: for each
// nominal, crop a fixed-size chip centered on it, run the single-target
// pipeline on the chip, and translate the resulting Hit's spot back to
// full-image coordinates.
func (o *Orchestrator) LocateCentersKeyed(image ras.RasterView, nominals []KeyedNominal, chipHigh, chipWide int) []KeyedHit {
	out := make([]KeyedHit, 0, len(nominals))
	for _, n := range nominals {
		chipSpec := ras.CenteredChip(n.NominalRC, chipHigh, chipWide, image.High(), image.Wide())
		chip := chipSpec.Crop(image)

		hits := o.LocateCenters(chip)
		if len(hits) == 0 || !hits[0].IsValid() {
			slog.Debug("LocateCentersKeyed: no hit for key", "key", n.Key, "nominal", n.NominalRC)
			out = append(out, KeyedHit{Key: n.Key, Hit: ras.InvalidHit})
			continue
		}

		fullSpot := chipSpec.FullSpotForChipSpot(hits[0].Spot)
		out = append(out, KeyedHit{
			Key: n.Key,
			Hit: ras.Hit{Spot: fullSpot, Significance: hits[0].Significance, Sigma: hits[0].Sigma},
		})
	}
	return out
}
