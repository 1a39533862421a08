package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/stellacore/quadloco/internal/app"
	"github.com/stellacore/quadloco/internal/meapoint"
	"github.com/stellacore/quadloco/internal/pgmio"
	"github.com/stellacore/quadloco/internal/ras"
	"github.com/spf13/cobra"
)

var (
	keyedImagePath     string
	keyedNominalsPath  string
	keyedOutPath       string
	keyedChipHigh      int
	keyedChipWide      int
	keyedRingHalfSizes []int
	keyedRefineHood    int
	keyedRefineCorr    int
	keyedRefineMode    string
	keyedMayflyIters   int
	keyedMayflyPop     int
	keyedSeed          int64
)

var keyedCmd = &cobra.Command{
	Use:   "keyed",
	Short: "Locate multiple quad-target centers against a nominal-position file",
	Long: `Runs the detection pipeline once per nominal position listed in a
.meapoint file, cropping a chip around each nominal before searching, and
writes all located centers to an output .meapoint file.`,
	RunE: runKeyed,
}

func init() {
	keyedCmd.Flags().StringVar(&keyedImagePath, "image", "", "PGM image path (required)")
	keyedCmd.Flags().StringVar(&keyedNominalsPath, "nominals", "", ".meapoint file of nominal positions (required)")
	keyedCmd.Flags().StringVar(&keyedOutPath, "out", "out.meapoint", "Output .meapoint path")
	keyedCmd.Flags().IntVar(&keyedChipHigh, "chip-high", 32, "Crop chip height around each nominal")
	keyedCmd.Flags().IntVar(&keyedChipWide, "chip-wide", 32, "Crop chip width around each nominal")
	keyedCmd.Flags().IntSliceVar(&keyedRingHalfSizes, "rings", []int{5, 3}, "Candidate ring half-sizes, largest first")
	keyedCmd.Flags().IntVar(&keyedRefineHood, "refine-hood", app.DefaultRefineHood, "Refinement hood half-size")
	keyedCmd.Flags().IntVar(&keyedRefineCorr, "refine-corr", app.DefaultRefineCorr, "Refinement correlation half-size")
	keyedCmd.Flags().StringVar(&keyedRefineMode, "refine", "ssd", "Refinement strategy: ssd or mayfly")
	keyedCmd.Flags().IntVar(&keyedMayflyIters, "mayfly-iters", 100, "Mayfly refinement iterations (refine=mayfly only)")
	keyedCmd.Flags().IntVar(&keyedMayflyPop, "mayfly-pop", 20, "Mayfly refinement population (refine=mayfly only)")
	keyedCmd.Flags().Int64Var(&keyedSeed, "seed", 42, "Random seed for the mayfly refiner")

	keyedCmd.MarkFlagRequired("image")
	keyedCmd.MarkFlagRequired("nominals")
	rootCmd.AddCommand(keyedCmd)
}

func runKeyed(cmd *cobra.Command, args []string) error {
	slog.Info("Starting keyed batch locate", "image", keyedImagePath, "nominals", keyedNominalsPath)

	image, err := pgmio.Read(keyedImagePath)
	if err != nil {
		return fmt.Errorf("failed to load image: %w", err)
	}

	records, err := meapoint.Read(keyedNominalsPath)
	if err != nil {
		return fmt.Errorf("failed to load nominals: %w", err)
	}
	nominals := make([]app.KeyedNominal, len(records))
	for i, r := range records {
		nominals[i] = app.KeyedNominal{Key: r.ID, NominalRC: ras.RowCol{Row: int(r.Row), Col: int(r.Col)}}
	}

	orch := app.NewOrchestrator()
	orch.RingHalfSizes = keyedRingHalfSizes
	orch.RefineHood = keyedRefineHood
	orch.RefineCorr = keyedRefineCorr
	orch.MayflyIters = keyedMayflyIters
	orch.MayflyPop = keyedMayflyPop
	orch.MayflySeed = keyedSeed
	if keyedRefineMode == string(app.RefineMayfly) {
		orch.RefineMode = app.RefineMayfly
	}

	start := time.Now()
	hits := orch.LocateCentersKeyed(image, nominals, keyedChipHigh, keyedChipWide)
	elapsed := time.Since(start)

	valid := 0
	out := make([]meapoint.Record, len(hits))
	for i, h := range hits {
		out[i] = meapoint.Record{ID: h.Key, Row: h.Hit.Spot.Row, Col: h.Hit.Spot.Col}
		if h.Hit.IsValid() {
			valid++
		}
	}

	if err := meapoint.Write(keyedOutPath, out); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	slog.Info("Keyed locate complete", "elapsed", elapsed, "total", len(hits), "valid", valid)
	fmt.Printf("Wrote %s (%d/%d valid, elapsed=%s)\n", keyedOutPath, valid, len(hits), elapsed)

	return nil
}
