package server

import (
	"fmt"

	"github.com/stellacore/quadloco/internal/app"
	"github.com/stellacore/quadloco/internal/meapoint"
	"github.com/stellacore/quadloco/internal/pgmio"
	"github.com/stellacore/quadloco/internal/ras"
	"github.com/stellacore/quadloco/internal/store"
)

// loadImage reads the detection target image. Only PGM (spec.md §6) is
// supported: the file name's extension is not checked, and a file without
// the P5 header is rejected by the PGM decoder.
func loadImage(path string) (ras.RasterView, error) {
	image, err := pgmio.Read(path)
	if err != nil {
		return ras.RasterView{}, fmt.Errorf("failed to load image %s: %w", path, err)
	}
	return image, nil
}

// loadNominals reads a .meapoint file and converts it to the
// app.KeyedNominal list LocateCentersKeyed expects.
func loadNominals(path string) ([]app.KeyedNominal, error) {
	records, err := meapoint.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load nominals %s: %w", path, err)
	}

	nominals := make([]app.KeyedNominal, len(records))
	for i, r := range records {
		nominals[i] = app.KeyedNominal{
			Key:       r.ID,
			NominalRC: ras.RowCol{Row: int(r.Row), Col: int(r.Col)},
		}
	}
	return nominals, nil
}

// saveRun persists the job's current progress as a store.RunRecord. Used
// both for periodic checkpoints and for the shutdown save path.
func saveRun(jm *JobManager, st store.Store, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if job.ProcessedKeys == 0 {
		return nil
	}

	run := store.NewRunRecord(jobID, job.Hits, job.ProcessedKeys, job.TotalKeys, job.Config)
	if err := st.SaveRun(jobID, run); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// hitToRecord converts a located ras.Hit to its persisted form.
func hitToRecord(key string, h ras.Hit) store.HitRecord {
	return store.HitRecord{
		Key:          key,
		Row:          h.Spot.Row,
		Col:          h.Spot.Col,
		Significance: h.Significance,
		Sigma:        h.Sigma,
		Valid:        h.IsValid(),
	}
}
