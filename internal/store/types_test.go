package store

import (
	"encoding/json"
	"testing"
	"time"
)

func testConfig() DetectionConfig {
	return DetectionConfig{
		ImagePath:     "assets/test.pgm",
		RingHalfSizes: []int{5, 3},
		RefineHood:    2,
		RefineCorr:    5,
		Refine:        "ssd",
	}
}

func TestRunRecord_JSONRoundTrip(t *testing.T) {
	run := &RunRecord{
		JobID:         "job-1",
		Hits:          []HitRecord{{Key: "P1", Row: 8.5, Col: 8.5, Significance: 0.9, Sigma: 0.1, Valid: true}},
		ProcessedKeys: 1,
		TotalKeys:     1,
		Timestamp:     time.Now().UTC().Truncate(time.Second),
		Config:        testConfig(),
	}

	data, err := json.Marshal(run)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var got RunRecord
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if got.JobID != run.JobID {
		t.Errorf("JobID = %q, want %q", got.JobID, run.JobID)
	}
	if len(got.Hits) != 1 || got.Hits[0].Key != "P1" {
		t.Errorf("Hits = %+v, want one record for P1", got.Hits)
	}
	if !got.Timestamp.Equal(run.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, run.Timestamp)
	}
}

func TestRunRecord_Validate_Valid(t *testing.T) {
	run := NewRunRecord("job-1", []HitRecord{{Valid: true}}, 1, 1, testConfig())
	if err := run.Validate(); err != nil {
		t.Errorf("Validate failed for a well-formed run: %v", err)
	}
}

func TestRunRecord_Validate_EmptyJobID(t *testing.T) {
	run := NewRunRecord("", []HitRecord{{Valid: true}}, 1, 1, testConfig())
	if err := run.Validate(); err == nil {
		t.Error("expected an error for empty JobID")
	}
}

func TestRunRecord_Validate_ProcessedExceedsTotal(t *testing.T) {
	run := NewRunRecord("job-1", []HitRecord{{}, {}}, 2, 1, testConfig())
	if err := run.Validate(); err == nil {
		t.Error("expected an error when ProcessedKeys > TotalKeys")
	}
}

func TestRunRecord_Validate_HitsLengthMismatch(t *testing.T) {
	run := NewRunRecord("job-1", []HitRecord{{}}, 2, 4, testConfig())
	if err := run.Validate(); err == nil {
		t.Error("expected an error when len(Hits) != ProcessedKeys")
	}
}

func TestRunRecord_Validate_ZeroTimestamp(t *testing.T) {
	run := &RunRecord{JobID: "job-1", TotalKeys: 1, Config: testConfig()}
	if err := run.Validate(); err == nil {
		t.Error("expected an error for zero Timestamp")
	}
}

func TestRunRecord_Validate_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.RingHalfSizes = nil
	run := NewRunRecord("job-1", nil, 0, 1, cfg)
	if err := run.Validate(); err == nil {
		t.Error("expected an error for empty RingHalfSizes")
	}
}

func TestRunRecord_IsCompatible(t *testing.T) {
	run := NewRunRecord("job-1", nil, 0, 4, testConfig())

	if err := run.IsCompatible(testConfig()); err != nil {
		t.Errorf("expected compatible configs, got %v", err)
	}

	diffImage := testConfig()
	diffImage.ImagePath = "other.pgm"
	if err := run.IsCompatible(diffImage); err == nil {
		t.Error("expected an error for a different ImagePath")
	}

	diffHood := testConfig()
	diffHood.RefineHood = 9
	if err := run.IsCompatible(diffHood); err == nil {
		t.Error("expected an error for a different RefineHood")
	}
}

func TestRunRecord_ToInfo(t *testing.T) {
	run := NewRunRecord("job-1", []HitRecord{{Valid: true}}, 1, 4, testConfig())
	info := run.ToInfo()

	if info.JobID != "job-1" {
		t.Errorf("JobID = %q, want job-1", info.JobID)
	}
	if info.ProcessedKeys != 1 || info.TotalKeys != 4 {
		t.Errorf("progress = %d/%d, want 1/4", info.ProcessedKeys, info.TotalKeys)
	}
	if info.ImagePath != run.Config.ImagePath {
		t.Errorf("ImagePath = %q, want %q", info.ImagePath, run.Config.ImagePath)
	}
}
