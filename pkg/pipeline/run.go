package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/publift/go-stageflow/pkg/pipeline/model"
)

// Run executes the stages sequentially and assembles the final report.
//
// The report is produced even when the run aborts or the worker of a stage
// misbehaves; the returned error only covers run feature bookkeeping. The
// context is checked at every stage boundary and handed to each worker so
// in-flight tool calls are abandoned rather than leaked.
func (p *Pipeline) Run(ctx context.Context) (*model.Report, error) {
	runID := uuid.New()
	log := p.log.With(slog.String("run_id", runID.String()))
	start := time.Now()

	if p.settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.settings.Timeout)
		defer cancel()
	}

	execCtx := model.NewContext()
	aborted := false
	var hookErr error
	keepErr := func(err error) {
		if err != nil && hookErr == nil {
			hookErr = err
		}
	}

	for i := range p.stages {
		spec := &p.stages[i]

		if ctx.Err() != nil {
			aborted = true

			break
		}

		var res model.StageResult
		if req, met := p.requirementsMet(execCtx, spec); !met {
			res = model.Fail(model.KindDependencyUnmet,
				fmt.Sprintf("required stage %q produced no usable output", req))
			log.Warn("stage dependency unmet",
				slog.String("stage", spec.Name), slog.String("requires", req))
			keepErr(p.stageDone(spec, res, 0))
		} else {
			keepErr(p.stageStart(spec))
			stageStart := time.Now()
			res = p.runStage(ctx, log, spec, execCtx)
			elapsed := time.Since(stageStart)

			if res.State == model.StageFailed && ctx.Err() != nil {
				// The failure raced with cancellation; report it as such.
				res.Kind = model.KindCancelled
			}
			keepErr(p.stageDone(spec, res, elapsed))
			log.Info("stage finished",
				slog.String("stage", spec.Name),
				slog.String("state", string(res.State)),
				slog.String("kind", string(res.Kind)),
				slog.Duration("elapsed", elapsed),
			)
		}

		if err := execCtx.Append(spec.Name, res); err != nil {
			return nil, errors.Wrap(err, "unable to record stage result")
		}

		if res.State == model.StageFailed && spec.Policy == model.AbortPipeline {
			log.Error("stage failed under abort policy, terminating run",
				slog.String("stage", spec.Name), slog.String("message", res.Message))
			aborted = true

			break
		}
		if ctx.Err() != nil {
			aborted = true

			break
		}
	}

	report := p.buildReport(runID, start, execCtx, aborted)
	for _, opt := range p.opts {
		keepErr(errors.Wrap(opt.Finish(report), "unable to finish pipeline option"))
	}

	return report, hookErr
}

// requirementsMet returns the first required stage without usable output,
// if any. Requirements are soft: a partial payload from a degraded
// predecessor satisfies them.
func (p *Pipeline) requirementsMet(execCtx *model.Context, spec *model.StageSpec) (string, bool) {
	for _, req := range spec.Requires {
		res, ok := execCtx.Result(req)
		if !ok || !res.Usable() {
			return req, false
		}
	}

	return "", true
}

// runStage drives one stage to a terminal state, re-invoking the worker
// for RetryThenSkip stages. Stage-level retries are distinct from the
// retry budget of any tool call the worker makes.
func (p *Pipeline) runStage(ctx context.Context, log *slog.Logger, spec *model.StageSpec, execCtx *model.Context) model.StageResult {
	budget := 1
	if spec.Policy == model.RetryThenSkip {
		budget += p.settings.StageRetries
	}

	var res model.StageResult
	for attempt := 1; attempt <= budget; attempt++ {
		res = invokeWorker(ctx, spec, execCtx)
		if res.State != model.StageFailed || ctx.Err() != nil {
			return res
		}
		if attempt < budget {
			log.Warn("stage failed, retrying",
				slog.String("stage", spec.Name),
				slog.Int("attempt", attempt),
				slog.String("kind", string(res.Kind)),
				slog.String("message", res.Message),
			)
		}
	}

	return res
}

// invokeWorker shields the run from worker faults: a panic becomes an
// ordinary failed result.
func invokeWorker(ctx context.Context, spec *model.StageSpec, execCtx *model.Context) (res model.StageResult) {
	defer func() {
		if rec := recover(); rec != nil {
			res = model.Fail(model.KindUnexpected, fmt.Sprintf("worker panic: %v", rec))
		}
	}()

	res = spec.Worker.Run(ctx, execCtx)
	if !res.State.Terminal() {
		res = model.Fail(model.KindWorkerFailure,
			fmt.Sprintf("worker returned non-terminal state %q", res.State))
	}

	return res
}

func (p *Pipeline) stageStart(spec *model.StageSpec) error {
	for _, opt := range p.opts {
		if err := opt.OnStageStart(spec); err != nil {
			return errors.Wrapf(err, "unable to run stage start hook for %s", spec.Name)
		}
	}

	return nil
}

func (p *Pipeline) stageDone(spec *model.StageSpec, res model.StageResult, elapsed time.Duration) error {
	for _, opt := range p.opts {
		if err := opt.OnStageDone(spec, res, elapsed); err != nil {
			return errors.Wrapf(err, "unable to run stage done hook for %s", spec.Name)
		}
	}

	return nil
}

func (p *Pipeline) buildReport(runID uuid.UUID, start time.Time, execCtx *model.Context, aborted bool) *model.Report {
	stages := make([]model.StageOutcome, len(p.stages))
	allSucceeded := true
	for i, spec := range p.stages {
		res, ok := execCtx.Result(spec.Name)
		if !ok {
			// Never attempted: the run aborted before this stage started.
			res = model.StageResult{State: model.StagePending}
		}
		if !res.Succeeded() {
			allSucceeded = false
		}
		stages[i] = model.StageOutcome{Name: spec.Name, Result: res}
	}

	status := model.StatusComplete
	switch {
	case aborted:
		status = model.StatusAborted
	case !allSucceeded:
		status = model.StatusPartialComplete
	}

	return &model.Report{
		RunID:     runID,
		Status:    status,
		StartedAt: start,
		Elapsed:   time.Since(start),
		Stages:    stages,
	}
}
