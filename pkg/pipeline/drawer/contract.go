package drawer

import (
	"time"

	"github.com/publift/go-stageflow/pkg/pipeline/model"
)

// Drawer renders the stage graph of a run.
type Drawer interface {
	// AddStage adds a stage vertex to the graph.
	AddStage(stageName string) error
	// AddLink adds a dependency edge between two stages.
	AddLink(parentStageName, childStageName string) error
	// SetStatus annotates a stage with its terminal state and wall time.
	SetStatus(stageName string, state model.StageState, elapsed time.Duration) error
	// Draw writes the rendered graph out.
	Draw() error
}
