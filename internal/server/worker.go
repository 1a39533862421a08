package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stellacore/quadloco/internal/app"
	"github.com/stellacore/quadloco/internal/ras"
	"github.com/stellacore/quadloco/internal/store"
)

// defaultChipSize is the keyed-batch crop window around each nominal
// (spec.md §4.7 keyed variant).
const defaultChipSize = 32

// runJob executes a detection job in the background: either a single-shot
// locate over the whole image, or, when the job's config names a
// .meapoint file, a keyed batch over every nominal it lists. If runStore
// is not nil and the job resumes a prior run, already-processed keys are
// skipped.
func runJob(ctx context.Context, jm *JobManager, runStore store.Store, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if err := jm.UpdateJob(jobID, func(j *Job) { j.State = StateRunning }); err != nil {
		return err
	}

	slog.Info("Starting job", "job_id", jobID, "image", job.Config.ImagePath)

	image, err := loadImage(job.Config.ImagePath)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	orch := newOrchestratorFromConfig(job.Config)

	select {
	case <-ctx.Done():
		markJobCancelled(jm, jobID)
		return ctx.Err()
	default:
	}

	start := time.Now()

	if job.Config.MeapointPath != "" {
		err = runKeyedJob(ctx, jm, runStore, jobID, orch, image, job.Config)
	} else {
		err = runSingleJob(jm, jobID, orch, image)
	}
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	select {
	case <-ctx.Done():
		markJobCancelled(jm, jobID)
		return ctx.Err()
	default:
	}

	endTime := time.Now()
	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.EndTime = &endTime
	})
	if err != nil {
		return err
	}

	job, _ = jm.GetJob(jobID)
	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", time.Since(start),
		"processed_keys", job.ProcessedKeys,
		"total_keys", job.TotalKeys,
	)

	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:         jobID,
		State:         StateCompleted,
		ProcessedKeys: job.ProcessedKeys,
		TotalKeys:     job.TotalKeys,
		Timestamp:     time.Now(),
	})

	return nil
}

// newOrchestratorFromConfig builds an app.Orchestrator from a job's
// persisted configuration.
func newOrchestratorFromConfig(config DetectionConfig) *app.Orchestrator {
	orch := app.NewOrchestrator()
	if len(config.RingHalfSizes) > 0 {
		orch.RingHalfSizes = config.RingHalfSizes
	}
	if config.RefineHood > 0 {
		orch.RefineHood = config.RefineHood
	}
	if config.RefineCorr > 0 {
		orch.RefineCorr = config.RefineCorr
	}
	if config.Refine == string(app.RefineMayfly) {
		orch.RefineMode = app.RefineMayfly
	}
	orch.MayflySeed = config.Seed
	return orch
}

// runSingleJob runs the non-keyed pipeline over the whole image.
func runSingleJob(jm *JobManager, jobID string, orch *app.Orchestrator, image ras.RasterView) error {
	hits := orch.LocateCenters(image)

	var record store.HitRecord
	if len(hits) > 0 {
		record = hitToRecord("", hits[0])
	} else {
		record = hitToRecord("", ras.InvalidHit)
	}

	return jm.UpdateJob(jobID, func(j *Job) {
		j.Hits = []store.HitRecord{record}
		j.ProcessedKeys = 1
		j.TotalKeys = 1
	})
}

// runKeyedJob runs the keyed-batch pipeline, skipping keys already present
// in a compatible prior run and broadcasting progress after each key.
func runKeyedJob(ctx context.Context, jm *JobManager, runStore store.Store, jobID string, orch *app.Orchestrator, image ras.RasterView, config DetectionConfig) error {
	nominals, err := loadNominals(config.MeapointPath)
	if err != nil {
		return err
	}

	done := make(map[string]store.HitRecord)
	if runStore != nil {
		if prior, err := runStore.LoadRun(jobID); err == nil {
			if compatErr := prior.IsCompatible(config); compatErr == nil {
				for _, h := range prior.Hits {
					done[h.Key] = h
				}
			}
		}
	}
	// A job created by the resume endpoint starts with the saved run's hits.
	if current, ok := jm.GetJob(jobID); ok {
		for _, h := range current.Hits {
			done[h.Key] = h
		}
	}

	if err := jm.UpdateJob(jobID, func(j *Job) { j.TotalKeys = len(nominals) }); err != nil {
		return err
	}

	hits := make([]store.HitRecord, 0, len(nominals))
	for _, n := range nominals {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if record, ok := done[n.Key]; ok {
			hits = append(hits, record)
			broadcastKeyProgress(jm, jobID, hits)
			continue
		}

		keyed := orch.LocateCentersKeyed(image, []app.KeyedNominal{n}, defaultChipSize, defaultChipSize)
		record := hitToRecord(n.Key, ras.InvalidHit)
		if len(keyed) > 0 {
			record = hitToRecord(n.Key, keyed[0].Hit)
		}
		hits = append(hits, record)

		if err := jm.UpdateJob(jobID, func(j *Job) {
			j.Hits = append([]store.HitRecord(nil), hits...)
			j.ProcessedKeys = len(hits)
		}); err != nil {
			return err
		}

		broadcastKeyProgress(jm, jobID, hits)

		if runStore != nil {
			if err := saveRun(jm, runStore, jobID); err != nil {
				slog.Warn("Failed to save run progress", "job_id", jobID, "error", err)
			}
		}
	}

	return nil
}

func broadcastKeyProgress(jm *JobManager, jobID string, hits []store.HitRecord) {
	last := hits[len(hits)-1]
	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:         jobID,
		State:         StateRunning,
		ProcessedKeys: len(hits),
		LastKey:       last.Key,
		Significance:  last.Significance,
		Timestamp:     time.Now(),
	})
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	slog.Info("Job cancelled", "job_id", jobID)
}
