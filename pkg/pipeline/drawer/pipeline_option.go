package drawer

import (
	"time"

	"github.com/pkg/errors"

	"github.com/publift/go-stageflow/pkg/pipeline/model"
)

type pipelineDrawer struct {
	Drawer
}

func (pd *pipelineDrawer) New() error {
	return nil
}

func (pd *pipelineDrawer) PrepareStage(spec *model.StageSpec) error {
	err := pd.AddStage(spec.Name)
	if err != nil {
		return err
	}
	for _, req := range spec.Requires {
		err = pd.AddLink(req, spec.Name)
		if err != nil {
			return err
		}
	}

	return nil
}

func (pd *pipelineDrawer) OnStageStart(spec *model.StageSpec) error {
	return nil
}

func (pd *pipelineDrawer) OnStageDone(spec *model.StageSpec, res model.StageResult, elapsed time.Duration) error {
	return pd.SetStatus(spec.Name, res.State, elapsed)
}

func (pd *pipelineDrawer) Finish(report *model.Report) error {
	// Stages the run never reached still show up, in the pending colour.
	for _, outcome := range report.Stages {
		if outcome.Result.State == model.StagePending {
			err := pd.SetStatus(outcome.Name, model.StagePending, 0)
			if err != nil {
				return err
			}
		}
	}

	err := pd.Draw()
	if err != nil {
		return errors.Wrap(err, "unable to draw pipeline")
	}

	return nil
}

// PipelineDrawer attaches graph rendering to a pipeline run.
func PipelineDrawer(drawer Drawer) model.RunOption {
	return &pipelineDrawer{drawer}
}
