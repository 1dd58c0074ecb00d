package measure

import (
	"time"

	"github.com/publift/go-stageflow/pkg/pipeline/model"
)

// RunMetricName keys the run-level metric inside the measure.
const RunMetricName = "run"

type pipelineMeasure struct {
	Measure
}

func (pm *pipelineMeasure) New() error {
	pm.AddMetric(RunMetricName)

	return nil
}

func (pm *pipelineMeasure) PrepareStage(spec *model.StageSpec) error {
	pm.AddMetric(spec.Name)

	return nil
}

func (pm *pipelineMeasure) OnStageStart(spec *model.StageSpec) error {
	return nil
}

func (pm *pipelineMeasure) OnStageDone(spec *model.StageSpec, res model.StageResult, elapsed time.Duration) error {
	mt := pm.Metric(spec.Name)
	mt.AddDuration(elapsed)
	mt.SetState(res.State)

	return nil
}

func (pm *pipelineMeasure) Finish(report *model.Report) error {
	pm.Metric(RunMetricName).SetTotalDuration(report.Elapsed)

	return nil
}

// PipelineMeasure attaches stage timing collection to a pipeline.
func PipelineMeasure(measure Measure) model.RunOption {
	return &pipelineMeasure{measure}
}
