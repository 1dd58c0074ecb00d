package model

import "context"

// FailurePolicy tells the pipeline how to react when a stage fails.
type FailurePolicy string

const (
	// AbortPipeline terminates the run; no further stages start.
	AbortPipeline FailurePolicy = "abort-pipeline"
	// SkipAndContinue records the failure and moves on to the next stage.
	SkipAndContinue FailurePolicy = "skip-and-continue"
	// RetryThenSkip re-invokes the worker up to the configured stage retry
	// budget before falling back to SkipAndContinue behaviour.
	RetryThenSkip FailurePolicy = "retry-then-skip"
)

// Worker runs one stage. It reads the accumulated context and returns a
// result; it must not append to the context itself, the pipeline does that
// with the returned value once the stage is terminal.
type Worker interface {
	Run(ctx context.Context, ec *Context) StageResult
}

// WorkerFunc adapts a plain function to the Worker interface.
type WorkerFunc func(ctx context.Context, ec *Context) StageResult

func (f WorkerFunc) Run(ctx context.Context, ec *Context) StageResult {
	return f(ctx, ec)
}

// StageSpec identifies one stage of a run. It is immutable once the
// pipeline has been constructed.
type StageSpec struct {
	// Name is unique within a run and keys the stage output in the context.
	Name string
	// Requires lists predecessor stage names. They must be declared strictly
	// earlier in the stage list and must have produced a usable result
	// before this stage starts.
	Requires []string
	Worker   Worker
	Policy   FailurePolicy
}
