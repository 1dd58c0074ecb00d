package model

import (
	"time"

	"github.com/google/uuid"
)

// Status is the terminal status of a whole run.
type Status string

const (
	// StatusComplete means every stage succeeded.
	StatusComplete Status = "complete"
	// StatusPartialComplete means at least one stage failed or was skipped
	// but the run was never aborted.
	StatusPartialComplete Status = "partial"
	// StatusAborted means a failure policy or cancellation terminated the
	// run before all stages were attempted.
	StatusAborted Status = "aborted"
)

// StageOutcome pairs a declared stage with its terminal result.
type StageOutcome struct {
	Name   string
	Result StageResult
}

// Report is the immutable account of one run. It lists every declared
// stage in declaration order, including failed and unattempted ones, so
// consumers always receive a stable, complete view.
type Report struct {
	RunID     uuid.UUID
	Status    Status
	StartedAt time.Time
	Elapsed   time.Duration
	Stages    []StageOutcome
}

// Outcome returns the result recorded for a stage name.
func (r *Report) Outcome(name string) (StageResult, bool) {
	for _, st := range r.Stages {
		if st.Name == name {
			return st.Result, true
		}
	}

	return StageResult{}, false
}
