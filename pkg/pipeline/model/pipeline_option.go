package model

import "time"

// RunOption defines the hooks a pipeline feature can attach to a run.
// The drawer and measure packages implement it.
type RunOption interface {
	// New initialises the option, before any stage is prepared.
	New() error
	// PrepareStage runs at construction time for every declared stage.
	PrepareStage(spec *StageSpec) error
	// OnStageStart runs when a stage leaves the pending state.
	OnStageStart(spec *StageSpec) error
	// OnStageDone runs when a stage reaches a terminal state.
	OnStageDone(spec *StageSpec, res StageResult, elapsed time.Duration) error
	// Finish runs after the report has been assembled.
	Finish(report *Report) error
}
