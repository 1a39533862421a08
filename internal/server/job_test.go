package server

import (
	"testing"
	"time"

	"github.com/stellacore/quadloco/internal/store"
)

func testDetectionConfig() DetectionConfig {
	return DetectionConfig{
		ImagePath:     "test.pgm",
		RingHalfSizes: []int{5, 3},
		RefineHood:    2,
		RefineCorr:    5,
		Refine:        "ssd",
	}
}

func TestJobManager_CreateJob(t *testing.T) {
	jm := NewJobManager()

	config := testDetectionConfig()
	job := jm.CreateJob(config)

	if job.ID == "" {
		t.Error("Job ID should not be empty")
	}

	if job.State != StatePending {
		t.Errorf("Initial state should be pending, got %s", job.State)
	}

	if job.Config.ImagePath != "test.pgm" {
		t.Errorf("Config not set correctly")
	}

	if job.TotalKeys != 1 {
		t.Errorf("non-keyed job should default TotalKeys to 1, got %d", job.TotalKeys)
	}
}

func TestJobManager_CreateJob_Keyed(t *testing.T) {
	jm := NewJobManager()

	config := testDetectionConfig()
	config.MeapointPath = "targets.meapoint"
	job := jm.CreateJob(config)

	if job.TotalKeys != 0 {
		t.Errorf("keyed job should start with unknown TotalKeys (0), got %d", job.TotalKeys)
	}
}

func TestJobManager_GetJob(t *testing.T) {
	jm := NewJobManager()

	job := jm.CreateJob(testDetectionConfig())

	retrieved, exists := jm.GetJob(job.ID)
	if !exists {
		t.Error("Job should exist")
	}

	if retrieved.ID != job.ID {
		t.Error("Retrieved wrong job")
	}

	_, exists = jm.GetJob("nonexistent")
	if exists {
		t.Error("Should not find nonexistent job")
	}
}

func TestJobManager_ListJobs(t *testing.T) {
	jm := NewJobManager()

	if len(jm.ListJobs()) != 0 {
		t.Error("Should start with no jobs")
	}

	c1, c2 := testDetectionConfig(), testDetectionConfig()
	c1.ImagePath, c2.ImagePath = "a.pgm", "b.pgm"
	jm.CreateJob(c1)
	jm.CreateJob(c2)

	jobs := jm.ListJobs()
	if len(jobs) != 2 {
		t.Errorf("Expected 2 jobs, got %d", len(jobs))
	}
}

func TestJobManager_UpdateJob(t *testing.T) {
	jm := NewJobManager()

	job := jm.CreateJob(testDetectionConfig())

	err := jm.UpdateJob(job.ID, func(j *Job) {
		j.State = StateRunning
		j.ProcessedKeys = 1
		j.Hits = []store.HitRecord{{Row: 8, Col: 8, Significance: 0.9, Valid: true}}
	})

	if err != nil {
		t.Errorf("Update should succeed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateRunning {
		t.Error("State should be updated")
	}
	if updated.ProcessedKeys != 1 {
		t.Error("ProcessedKeys should be updated")
	}
	if len(updated.Hits) != 1 {
		t.Error("Hits should be updated")
	}

	err = jm.UpdateJob("nonexistent", func(j *Job) {})
	if err == nil {
		t.Error("Update of nonexistent job should fail")
	}
}

func TestJobManager_ThreadSafety(t *testing.T) {
	jm := NewJobManager()

	job := jm.CreateJob(testDetectionConfig())

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(iteration int) {
			jm.UpdateJob(job.ID, func(j *Job) {
				j.ProcessedKeys = iteration
				time.Sleep(1 * time.Millisecond)
			})
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	_, exists := jm.GetJob(job.ID)
	if !exists {
		t.Error("Job should still exist after concurrent updates")
	}
}
