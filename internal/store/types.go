package store

import (
	"fmt"
	"time"
)

// DetectionConfig holds the parameters a detection run was launched with.
// Stored alongside results so a later Resume can check compatibility
// before continuing a batch.
type DetectionConfig struct {
	ImagePath     string `json:"imagePath"`
	RingHalfSizes []int  `json:"ringHalfSizes"`
	RefineHood    int    `json:"refineHood"`
	RefineCorr    int    `json:"refineCorr"`
	Refine        string `json:"refine"` // "ssd" or "mayfly"
	MeapointPath  string `json:"meapointPath,omitempty"`
	Seed          int64  `json:"seed,omitempty"`
}

// HitRecord is the persisted form of a located center: a ras.Hit plus the
// key it was found for (the key is empty for single-target runs).
type HitRecord struct {
	Key          string  `json:"key,omitempty"`
	Row          float64 `json:"row"`
	Col          float64 `json:"col"`
	Significance float64 `json:"significance"`
	Sigma        float64 `json:"sigma"`
	Valid        bool    `json:"valid"`
}

// RunRecord represents a saved detection run that can be resumed (for
// keyed batch runs) or simply inspected later.
//
// Keyed batch runs process one nominal at a time; RunRecord accumulates
// one HitRecord per processed key so a Resume can skip work already done,
// the way the teacher's Checkpoint let OptimizeSequential/OptimizeBatch
// continue from a partial pass rather than restart (internal/fit/pipeline.go).
type RunRecord struct {
	JobID string `json:"jobId"`

	// Hits accumulates one record per key processed so far (or a single
	// record with an empty Key for a non-keyed run).
	Hits []HitRecord `json:"hits"`

	// ProcessedKeys and TotalKeys track batch progress; both are 1/1 for
	// a non-keyed run.
	ProcessedKeys int `json:"processedKeys"`
	TotalKeys     int `json:"totalKeys"`

	Timestamp time.Time `json:"timestamp"`

	Config DetectionConfig `json:"config"`
}

// RunInfo contains metadata about a run without the full hit list. Used
// for listing runs efficiently.
type RunInfo struct {
	JobID         string    `json:"jobId"`
	ProcessedKeys int       `json:"processedKeys"`
	TotalKeys     int       `json:"totalKeys"`
	Timestamp     time.Time `json:"timestamp"`
	ImagePath     string    `json:"imagePath"`
}

// NewRunRecord creates a run record from in-progress detection state.
func NewRunRecord(jobID string, hits []HitRecord, processedKeys, totalKeys int, config DetectionConfig) *RunRecord {
	return &RunRecord{
		JobID:         jobID,
		Hits:          hits,
		ProcessedKeys: processedKeys,
		TotalKeys:     totalKeys,
		Timestamp:     time.Now(),
		Config:        config,
	}
}

// ToInfo converts a full RunRecord to RunInfo (metadata only).
func (r *RunRecord) ToInfo() RunInfo {
	return RunInfo{
		JobID:         r.JobID,
		ProcessedKeys: r.ProcessedKeys,
		TotalKeys:     r.TotalKeys,
		Timestamp:     r.Timestamp,
		ImagePath:     r.Config.ImagePath,
	}
}

// Validate checks that the run record has well-formed data.
func (r *RunRecord) Validate() error {
	if r.JobID == "" {
		return &ValidationError{Field: "JobID", Reason: "cannot be empty"}
	}
	if r.TotalKeys <= 0 {
		return &ValidationError{Field: "TotalKeys", Reason: "must be positive"}
	}
	if r.ProcessedKeys < 0 || r.ProcessedKeys > r.TotalKeys {
		return &ValidationError{Field: "ProcessedKeys", Reason: "must be within [0, TotalKeys]"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if r.Config.ImagePath == "" {
		return &ValidationError{Field: "Config.ImagePath", Reason: "cannot be empty"}
	}
	if len(r.Config.RingHalfSizes) == 0 {
		return &ValidationError{Field: "Config.RingHalfSizes", Reason: "cannot be empty"}
	}
	if r.Config.RefineHood <= 0 {
		return &ValidationError{Field: "Config.RefineHood", Reason: "must be positive"}
	}
	if r.Config.RefineCorr <= 0 {
		return &ValidationError{Field: "Config.RefineCorr", Reason: "must be positive"}
	}
	if len(r.Hits) != r.ProcessedKeys {
		return &ValidationError{
			Field:  "Hits",
			Reason: fmt.Sprintf("length mismatch: %d hits for %d processed keys", len(r.Hits), r.ProcessedKeys),
		}
	}
	return nil
}

// ValidationError represents a run-record validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible checks whether this run can be resumed with the given
// config: the image and refinement parameters must match exactly.
func (r *RunRecord) IsCompatible(config DetectionConfig) error {
	if r.Config.ImagePath != config.ImagePath {
		return &CompatibilityError{Field: "ImagePath", Expected: r.Config.ImagePath, Actual: config.ImagePath}
	}
	if r.Config.RefineHood != config.RefineHood {
		return &CompatibilityError{
			Field:    "RefineHood",
			Expected: fmt.Sprintf("%d", r.Config.RefineHood),
			Actual:   fmt.Sprintf("%d", config.RefineHood),
		}
	}
	if r.Config.RefineCorr != config.RefineCorr {
		return &CompatibilityError{
			Field:    "RefineCorr",
			Expected: fmt.Sprintf("%d", r.Config.RefineCorr),
			Actual:   fmt.Sprintf("%d", config.RefineCorr),
		}
	}
	return nil
}

// CompatibilityError represents a run-resume compatibility error.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
