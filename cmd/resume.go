package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stellacore/quadloco/internal/app"
	"github.com/stellacore/quadloco/internal/meapoint"
	"github.com/stellacore/quadloco/internal/pgmio"
	"github.com/stellacore/quadloco/internal/ras"
	"github.com/stellacore/quadloco/internal/store"
	"github.com/spf13/cobra"
)

var (
	resumeServerURL string
	resumeLocalMode bool
	resumeOutPath   string
)

var resumeCmd = &cobra.Command{
	Use:   "resume [job-id]",
	Short: "Resume a keyed batch run from a saved run record",
	Long: `Resume a keyed batch detection run from a saved RunRecord, skipping
keys already processed.

Supports two modes:
  1. Server mode (default): POST to the server's resume endpoint
  2. Local mode (--local): load the saved run and continue locally

Examples:
  quadloco resume abc123 --server http://localhost:8080
  quadloco resume abc123 --local --out resumed.meapoint`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeServerURL, "server", "http://localhost:8080", "Server URL for remote resume")
	resumeCmd.Flags().BoolVar(&resumeLocalMode, "local", false, "Resume locally instead of via server")
	resumeCmd.Flags().StringVar(&resumeOutPath, "out", "resumed.meapoint", "Output .meapoint path for local mode")
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	jobID := args[0]

	if resumeLocalMode {
		return runResumeLocal(jobID)
	}
	return runResumeServer(jobID)
}

// runResumeServer sends a resume request to the server.
func runResumeServer(jobID string) error {
	url := fmt.Sprintf("%s/api/v1/jobs/%s/resume", resumeServerURL, jobID)

	slog.Info("Resuming job via server", "job_id", jobID, "url", url)

	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("saved run not found for job %s", jobID)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	var result struct {
		JobID       string `json:"jobId"`
		State       string `json:"state"`
		Message     string `json:"message,omitempty"`
		ResumedFrom string `json:"resumedFrom,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	fmt.Printf("Job resumed successfully\n")
	fmt.Printf("  Job ID: %s\n", result.JobID)
	fmt.Printf("  State: %s\n", result.State)
	if result.Message != "" {
		fmt.Printf("  Message: %s\n", result.Message)
	}
	fmt.Printf("\nUse 'quadloco status %s' to monitor progress\n", result.JobID)

	return nil
}

// runResumeLocal loads a saved run and continues the keyed batch locally.
func runResumeLocal(jobID string) error {
	slog.Info("Resuming job locally", "job_id", jobID)

	runStore, err := store.NewFSStore("./data")
	if err != nil {
		return fmt.Errorf("failed to create run store: %w", err)
	}

	run, err := runStore.LoadRun(jobID)
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid saved run: %w", err)
	}

	fmt.Printf("Loaded run:\n")
	fmt.Printf("  Job ID: %s\n", run.JobID)
	fmt.Printf("  Progress: %d/%d\n", run.ProcessedKeys, run.TotalKeys)
	fmt.Printf("  Image: %s\n", run.Config.ImagePath)
	fmt.Printf("  Saved at: %s\n\n", run.Timestamp.Format(time.RFC3339))

	if run.Config.MeapointPath == "" {
		return fmt.Errorf("saved run has no .meapoint file to resume against")
	}

	image, err := pgmio.Read(run.Config.ImagePath)
	if err != nil {
		return fmt.Errorf("failed to load image: %w", err)
	}

	nominals, err := loadNominalsForResume(run.Config.MeapointPath)
	if err != nil {
		return err
	}

	done := make(map[string]store.HitRecord, len(run.Hits))
	for _, h := range run.Hits {
		done[h.Key] = h
	}

	orch := app.NewOrchestrator()
	orch.RingHalfSizes = run.Config.RingHalfSizes
	orch.RefineHood = run.Config.RefineHood
	orch.RefineCorr = run.Config.RefineCorr
	orch.MayflySeed = run.Config.Seed
	if run.Config.Refine == string(app.RefineMayfly) {
		orch.RefineMode = app.RefineMayfly
	}

	start := time.Now()
	out := make([]meapoint.Record, 0, len(nominals))
	remaining := 0

	for _, n := range nominals {
		if h, ok := done[n.Key]; ok {
			out = append(out, meapoint.Record{ID: n.Key, Row: h.Row, Col: h.Col})
			continue
		}

		remaining++
		keyed := orch.LocateCentersKeyed(image, []app.KeyedNominal{n}, defaultResumeChipSize, defaultResumeChipSize)
		hit := ras.InvalidHit
		if len(keyed) > 0 {
			hit = keyed[0].Hit
		}
		out = append(out, meapoint.Record{ID: n.Key, Row: hit.Spot.Row, Col: hit.Spot.Col})
	}

	elapsed := time.Since(start)
	fmt.Printf("Processed %d remaining key(s) in %s\n", remaining, elapsed)

	if err := meapoint.Write(resumeOutPath, out); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	fmt.Printf("Wrote %s\n", resumeOutPath)

	return nil
}

const defaultResumeChipSize = 32

func loadNominalsForResume(path string) ([]app.KeyedNominal, error) {
	records, err := meapoint.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load nominals: %w", err)
	}
	nominals := make([]app.KeyedNominal, len(records))
	for i, r := range records {
		nominals[i] = app.KeyedNominal{Key: r.ID, NominalRC: ras.RowCol{Row: int(r.Row), Col: int(r.Col)}}
	}
	return nominals, nil
}
