package measure_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/publift/go-stageflow/pkg/pipeline"
	"github.com/publift/go-stageflow/pkg/pipeline/measure"
	"github.com/publift/go-stageflow/pkg/pipeline/model"
)

func TestDefaultMetric(t *testing.T) {
	t.Parallel()

	mt := &measure.DefaultMetric{}
	mt.AddDuration(100 * time.Millisecond)
	mt.AddDuration(300 * time.Millisecond)
	mt.SetState(model.StageSucceeded)

	assert.Equal(t, int64(2), mt.Runs())
	assert.Equal(t, 200*time.Millisecond, mt.AVGDuration())
	assert.Equal(t, model.StageSucceeded, mt.State())
}

func TestDefaultMetricNoRuns(t *testing.T) {
	t.Parallel()

	mt := &measure.DefaultMetric{}
	assert.Equal(t, time.Duration(0), mt.AVGDuration())
	assert.Equal(t, int64(0), mt.Runs())
}

func TestDefaultMeasureIdempotentAdd(t *testing.T) {
	t.Parallel()

	m := measure.NewDefaultMeasure()
	first := m.AddMetric("analysis")
	second := m.AddMetric("analysis")

	assert.Same(t, first, second)
	assert.Len(t, m.AllMetrics(), 1)
}

func TestPipelineMeasureCollectsStageTimings(t *testing.T) {
	t.Parallel()

	sleeper := model.WorkerFunc(func(context.Context, *model.Context) model.StageResult {
		time.Sleep(20 * time.Millisecond)

		return model.Success("profile")
	})
	failing := model.WorkerFunc(func(context.Context, *model.Context) model.StageResult {
		return model.Fail(model.KindTransient, "no luck")
	})

	m := measure.NewDefaultMeasure()
	pipe, err := pipeline.New(model.Settings{}, []model.StageSpec{
		{Name: "analysis", Worker: sleeper},
		{Name: "metadata", Worker: failing},
	}, pipeline.WithFeature(measure.PipelineMeasure(m)))
	require.NoError(t, err)

	report, err := pipe.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.StatusPartialComplete, report.Status)

	analysis := m.Metric("analysis")
	require.NotNil(t, analysis)
	assert.Equal(t, int64(1), analysis.Runs())
	assert.GreaterOrEqual(t, analysis.AVGDuration(), 20*time.Millisecond)
	assert.Equal(t, model.StageSucceeded, analysis.State())

	metadata := m.Metric("metadata")
	require.NotNil(t, metadata)
	assert.Equal(t, model.StageFailed, metadata.State())

	run := m.Metric(measure.RunMetricName)
	require.NotNil(t, run)
	assert.GreaterOrEqual(t, run.TotalDuration(), 20*time.Millisecond)
}
