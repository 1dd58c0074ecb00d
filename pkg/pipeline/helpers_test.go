package pipeline_test

import (
	"context"
	"sync/atomic"

	"github.com/publift/go-stageflow/pkg/pipeline/model"
)

// countingWorker records how many times it was invoked and fails the first
// failures invocations with the given kind before succeeding with payload.
type countingWorker struct {
	invocations atomic.Int32
	failures    int32
	kind        model.ErrorKind
	payload     any
}

func succeedWith(payload any) *countingWorker {
	return &countingWorker{payload: payload}
}

func failTimes(failures int, kind model.ErrorKind, payload any) *countingWorker {
	return &countingWorker{failures: int32(failures), kind: kind, payload: payload}
}

func (w *countingWorker) Run(context.Context, *model.Context) model.StageResult {
	n := w.invocations.Add(1)
	if n <= w.failures {
		return model.Fail(w.kind, "injected failure")
	}

	return model.Success(w.payload)
}

func (w *countingWorker) calls() int {
	return int(w.invocations.Load())
}

type panicWorker struct{}

func (panicWorker) Run(context.Context, *model.Context) model.StageResult {
	panic("boom")
}

func worker(fn func(ctx context.Context, ec *model.Context) model.StageResult) model.Worker {
	return model.WorkerFunc(fn)
}
