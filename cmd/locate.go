package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/stellacore/quadloco/internal/app"
	"github.com/stellacore/quadloco/internal/meapoint"
	"github.com/stellacore/quadloco/internal/pgmio"
	"github.com/spf13/cobra"
)

var (
	imagePath     string
	outPath       string
	ringHalfSizes []int
	refineHood    int
	refineCorr    int
	refineMode    string
	mayflyIters   int
	mayflyPop     int
	seed          int64
	cpuProfile    string
	memProfile    string
)

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Locate a single quad-target center in an image",
	Long:  `Runs the candidate-enumeration and refinement pipeline on one image and writes the result to a .meapoint file.`,
	RunE:  runLocate,
}

func init() {
	locateCmd.Flags().StringVar(&imagePath, "image", "", "PGM image path (required)")
	locateCmd.Flags().StringVar(&outPath, "out", "out.meapoint", "Output .meapoint path")
	locateCmd.Flags().IntSliceVar(&ringHalfSizes, "rings", []int{5, 3}, "Candidate ring half-sizes, largest first")
	locateCmd.Flags().IntVar(&refineHood, "refine-hood", app.DefaultRefineHood, "Refinement hood half-size")
	locateCmd.Flags().IntVar(&refineCorr, "refine-corr", app.DefaultRefineCorr, "Refinement correlation half-size")
	locateCmd.Flags().StringVar(&refineMode, "refine", "ssd", "Refinement strategy: ssd or mayfly")
	locateCmd.Flags().IntVar(&mayflyIters, "mayfly-iters", 100, "Mayfly refinement iterations (refine=mayfly only)")
	locateCmd.Flags().IntVar(&mayflyPop, "mayfly-pop", 20, "Mayfly refinement population (refine=mayfly only)")
	locateCmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for the mayfly refiner")

	locateCmd.Flags().StringVar(&cpuProfile, "cpuprofile", "", "Write CPU profile to file")
	locateCmd.Flags().StringVar(&memProfile, "memprofile", "", "Write memory profile to file")

	locateCmd.MarkFlagRequired("image")
	rootCmd.AddCommand(locateCmd)
}

func runLocate(cmd *cobra.Command, args []string) error {
	if cpuProfile != "" {
		f, err := os.Create(cpuProfile)
		if err != nil {
			return fmt.Errorf("failed to create CPU profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
		slog.Info("CPU profiling enabled", "output", cpuProfile)
	}

	slog.Info("Starting locate", "image", imagePath, "rings", ringHalfSizes, "refine", refineMode)

	image, err := pgmio.Read(imagePath)
	if err != nil {
		return fmt.Errorf("failed to load image: %w", err)
	}
	slog.Info("Loaded image", "high", image.High(), "wide", image.Wide())

	orch := app.NewOrchestrator()
	orch.RingHalfSizes = ringHalfSizes
	orch.RefineHood = refineHood
	orch.RefineCorr = refineCorr
	orch.MayflyIters = mayflyIters
	orch.MayflyPop = mayflyPop
	orch.MayflySeed = seed
	if refineMode == string(app.RefineMayfly) {
		orch.RefineMode = app.RefineMayfly
	}

	start := time.Now()
	hits := orch.LocateCenters(image)
	elapsed := time.Since(start)

	var record meapoint.Record
	if len(hits) > 0 && hits[0].IsValid() {
		record = meapoint.Record{ID: "P1", Row: hits[0].Spot.Row, Col: hits[0].Spot.Col}
	} else {
		slog.Warn("No valid center located")
		record = meapoint.Record{ID: "P1", Row: 0, Col: 0}
	}

	if err := meapoint.Write(outPath, []meapoint.Record{record}); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	slog.Info("Locate complete", "elapsed", elapsed, "row", record.Row, "col", record.Col)
	fmt.Printf("Wrote %s (row=%.3f, col=%.3f, elapsed=%s)\n", outPath, record.Row, record.Col, elapsed)

	if memProfile != "" {
		f, err := os.Create(memProfile)
		if err != nil {
			return fmt.Errorf("failed to create memory profile: %w", err)
		}
		defer f.Close()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			return fmt.Errorf("failed to write memory profile: %w", err)
		}
		slog.Info("Memory profile written", "output", memProfile)
	}

	return nil
}
