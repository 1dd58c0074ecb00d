package measure

import (
	"time"

	"github.com/publift/go-stageflow/pkg/pipeline/model"
)

// Measure collects one metric per stage plus one for the whole run.
type Measure interface {
	AddMetric(name string) Metric
	Metric(name string) Metric
	AllMetrics() map[string]Metric
}

// Metric accumulates the timings of one stage across runs.
type Metric interface {
	// AddDuration records the wall time of one terminal stage execution,
	// retries included.
	AddDuration(elapsed time.Duration)
	// SetState records the last terminal state of the stage.
	SetState(state model.StageState)
	State() model.StageState
	// AVGDuration averages the recorded executions.
	AVGDuration() time.Duration
	Runs() int64
	// SetTotalDuration records the elapsed time of the whole run; used on
	// the run-level metric.
	SetTotalDuration(endDuration time.Duration)
	TotalDuration() time.Duration
}
