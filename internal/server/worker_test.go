package server

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stellacore/quadloco/internal/meapoint"
	"github.com/stellacore/quadloco/internal/pgmio"
	"github.com/stellacore/quadloco/internal/ras"
	"github.com/stellacore/quadloco/internal/sim"
)

func withImagePath(path string) DetectionConfig {
	config := testDetectionConfig()
	config.ImagePath = path
	return config
}

func createTestImage(t *testing.T, path string) {
	t.Helper()
	target := sim.NewIdealQuadTarget(24, 24, ras.Spot{Row: 12, Col: 12})
	image := target.Render()
	if err := pgmio.Write(path, image); err != nil {
		t.Fatalf("failed to write test image: %v", err)
	}
}

func TestRunJob_Success(t *testing.T) {
	tmpDir := t.TempDir()
	imgPath := filepath.Join(tmpDir, "test.pgm")
	createTestImage(t, imgPath)

	jm := NewJobManager()
	job := jm.CreateJob(withImagePath(imgPath))

	err := runJob(context.Background(), jm, nil, job.ID)
	if err != nil {
		t.Errorf("runJob should succeed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateCompleted {
		t.Errorf("Job should be completed, got %s", updated.State)
	}
	if updated.ProcessedKeys != 1 {
		t.Errorf("ProcessedKeys = %d, want 1", updated.ProcessedKeys)
	}
	if len(updated.Hits) != 1 {
		t.Fatalf("expected 1 hit record, got %d", len(updated.Hits))
	}
	if !updated.Hits[0].Valid {
		t.Error("expected a valid hit on an ideal quad target")
	}
}

func TestRunJob_InvalidImage(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(withImagePath("/nonexistent/image.pgm"))

	err := runJob(context.Background(), jm, nil, job.ID)
	if err == nil {
		t.Error("runJob should fail with invalid image path")
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateFailed {
		t.Errorf("Job should be failed, got %s", updated.State)
	}
	if updated.Error == "" {
		t.Error("Error message should be set")
	}
}

func TestRunJob_Keyed(t *testing.T) {
	tmpDir := t.TempDir()
	imgPath := filepath.Join(tmpDir, "test.pgm")
	createTestImage(t, imgPath)

	meaPath := filepath.Join(tmpDir, "targets.meapoint")
	records := []meapoint.Record{{ID: "P1", Row: 12, Col: 12}}
	if err := meapoint.Write(meaPath, records); err != nil {
		t.Fatalf("failed to write meapoint file: %v", err)
	}

	jm := NewJobManager()
	config := withImagePath(imgPath)
	config.MeapointPath = meaPath
	job := jm.CreateJob(config)

	err := runJob(context.Background(), jm, nil, job.ID)
	if err != nil {
		t.Errorf("runJob should succeed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateCompleted {
		t.Errorf("Job should be completed, got %s", updated.State)
	}
	if updated.TotalKeys != 1 || updated.ProcessedKeys != 1 {
		t.Errorf("progress = %d/%d, want 1/1", updated.ProcessedKeys, updated.TotalKeys)
	}
	if len(updated.Hits) != 1 || updated.Hits[0].Key != "P1" {
		t.Errorf("Hits = %+v, want one record for P1", updated.Hits)
	}
}

func TestRunJob_Cancellation(t *testing.T) {
	tmpDir := t.TempDir()
	imgPath := filepath.Join(tmpDir, "test.pgm")
	createTestImage(t, imgPath)

	meaPath := filepath.Join(tmpDir, "targets.meapoint")
	records := make([]meapoint.Record, 50)
	for i := range records {
		records[i] = meapoint.Record{ID: "P", Row: 12, Col: 12}
	}
	if err := meapoint.Write(meaPath, records); err != nil {
		t.Fatalf("failed to write meapoint file: %v", err)
	}

	jm := NewJobManager()
	config := withImagePath(imgPath)
	config.MeapointPath = meaPath
	job := jm.CreateJob(config)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error)
	go func() {
		done <- runJob(ctx, jm, nil, job.ID)
	}()

	cancel()

	err := <-done
	if err == nil {
		t.Error("runJob should return an error when cancelled")
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateRunning && updated.State != StateCancelled {
		t.Errorf("Job should be running or cancelled, got %s", updated.State)
	}
}

