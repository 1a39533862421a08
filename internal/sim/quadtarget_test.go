package sim

import (
	"math/rand"
	"testing"

	"github.com/stellacore/quadloco/internal/app"
	"github.com/stellacore/quadloco/internal/ras"
)

func TestRenderedIdealTargetIsLocatableByOrchestrator(t *testing.T) {
	target := NewIdealQuadTarget(32, 32, ras.Spot{Row: 16, Col: 16})
	img := target.Render()

	hits := app.LocateCenters(img, []int{5, 3}, app.DefaultRefineHood, app.DefaultRefineCorr)
	if len(hits) != 1 || !hits[0].IsValid() {
		t.Fatalf("expected one valid hit, got %+v", hits)
	}
}

func TestAntiAliasedRenderProducesIntermediateValuesAtBoundary(t *testing.T) {
	target := NewIdealQuadTarget(16, 16, ras.Spot{Row: 7.5, Col: 7.5})
	img := target.RenderAntiAliased(8)

	v, _ := img.At(ras.RowCol{Row: 7, Col: 7})
	if v <= 0 || v >= 1 {
		t.Errorf("boundary cell = %v, want a value strictly between 0 and 1", v)
	}
}

func TestAddGaussianNoisePreservesShape(t *testing.T) {
	target := NewIdealQuadTarget(10, 10, ras.Spot{Row: 5, Col: 5})
	img := target.Render()

	noisy := AddGaussianNoise(img, 0.05, rand.New(rand.NewSource(1)))
	if noisy.High() != img.High() || noisy.Wide() != img.Wide() {
		t.Fatalf("noisy image size %dx%d != source %dx%d", noisy.High(), noisy.Wide(), img.High(), img.Wide())
	}
}
