package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stellacore/quadloco/internal/store"
)

// JobState represents the current state of a detection job.
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// DetectionConfig is an alias to avoid duplication with store.DetectionConfig.
type DetectionConfig = store.DetectionConfig

// Job represents one detection run: a single image (and, for keyed batch
// runs, a .meapoint nominal list) being processed by the orchestrator.
type Job struct {
	ID            string            `json:"id"`
	State         JobState          `json:"state"`
	Config        DetectionConfig   `json:"config"`
	Hits          []store.HitRecord `json:"hits,omitempty"`
	ProcessedKeys int               `json:"processedKeys"`
	TotalKeys     int               `json:"totalKeys"`
	StartTime     time.Time         `json:"startTime"`
	EndTime       *time.Time        `json:"endTime,omitempty"`
	Error         string            `json:"error,omitempty"`
}

// JobManager manages the lifecycle of in-memory detection jobs.
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	broadcaster *EventBroadcaster
}

// NewJobManager creates a new JobManager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:        make(map[string]*Job),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateJob creates a new job with the given configuration.
func (jm *JobManager) CreateJob(config DetectionConfig) *Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	totalKeys := 1
	if config.MeapointPath != "" {
		totalKeys = 0 // unknown until the worker loads the nominal list
	}

	job := &Job{
		ID:        uuid.New().String(),
		State:     StatePending,
		Config:    config,
		TotalKeys: totalKeys,
		StartTime: time.Now(),
	}

	jm.jobs[job.ID] = job
	return job
}

// GetJob retrieves a job by ID.
func (jm *JobManager) GetJob(id string) (*Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	return job, exists
}

// ListJobs returns all jobs.
func (jm *JobManager) ListJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]*Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		jobs = append(jobs, job)
	}
	return jobs
}

// UpdateJob atomically updates a job using the provided function.
func (jm *JobManager) UpdateJob(id string, updateFn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	updateFn(job)
	return nil
}

// GetRunningJobs returns all jobs currently in the running state.
func (jm *JobManager) GetRunningJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	runningJobs := make([]*Job, 0)
	for _, job := range jm.jobs {
		if job.State == StateRunning {
			runningJobs = append(runningJobs, job)
		}
	}
	return runningJobs
}
