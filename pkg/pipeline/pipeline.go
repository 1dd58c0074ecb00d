package pipeline

import (
	"log/slog"
	"sort"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"

	"github.com/publift/go-stageflow/internal/store"
	"github.com/publift/go-stageflow/pkg/pipeline/model"
)

// Pipeline runs an ordered list of stages exactly once each. It is built
// once, from an immutable settings structure and the stage declarations,
// and may be run multiple times; every run gets its own context and report.
type Pipeline struct {
	settings model.Settings
	stages   []model.StageSpec
	index    map[string]int
	graph    graph.Graph[string, string]
	opts     []model.RunOption
	log      *slog.Logger
}

// Option configures a pipeline at construction.
type Option func(p *Pipeline)

// WithLogger sets the structured logger for the run. Defaults to
// slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(p *Pipeline) {
		p.log = log
	}
}

// WithFeature attaches a run feature such as the drawer or the measure.
func WithFeature(opt model.RunOption) Option {
	return func(p *Pipeline) {
		p.opts = append(p.opts, opt)
	}
}

// New validates the stage declarations and creates a pipeline. Stage names
// must be unique, every required stage must be declared strictly earlier,
// and the dependency graph must stay acyclic.
func New(settings model.Settings, stages []model.StageSpec, opts ...Option) (*Pipeline, error) {
	if len(stages) == 0 {
		return nil, ErrNoStages
	}

	pipe := &Pipeline{
		settings: settings,
		stages:   make([]model.StageSpec, len(stages)),
	}
	copy(pipe.stages, stages)

	for _, opt := range opts {
		opt(pipe)
	}
	if pipe.log == nil {
		pipe.log = slog.Default()
	}

	if err := pipe.buildGraph(); err != nil {
		return nil, err
	}

	for _, opt := range pipe.opts {
		if err := opt.New(); err != nil {
			return nil, errors.Wrap(err, "unable to apply pipeline option")
		}
		for i := range pipe.stages {
			if err := opt.PrepareStage(&pipe.stages[i]); err != nil {
				return nil, errors.Wrapf(err, "unable to prepare stage %s", pipe.stages[i].Name)
			}
		}
	}

	return pipe, nil
}

func (p *Pipeline) buildGraph() error {
	gra := graph.NewWithStore(
		graph.StringHash,
		store.NewMemoryStore[string, string](),
		graph.Directed(),
		graph.PreventCycles(),
	)

	p.index = make(map[string]int, len(p.stages))
	for i, spec := range p.stages {
		if spec.Name == "" {
			return errors.Wrapf(ErrStageNameMustBeSet, "stage %d", i)
		}
		if spec.Worker == nil {
			return errors.Wrap(ErrWorkerMustBeSet, spec.Name)
		}
		if _, ok := p.index[spec.Name]; ok {
			return errors.Wrap(ErrDuplicateStageName, spec.Name)
		}
		if err := gra.AddVertex(spec.Name); err != nil {
			return errors.Wrapf(err, "unable to add stage %s", spec.Name)
		}
		p.index[spec.Name] = i
	}

	for i, spec := range p.stages {
		for _, req := range spec.Requires {
			if req == spec.Name {
				return errors.Wrap(ErrSelfDependency, spec.Name)
			}
			pos, ok := p.index[req]
			if !ok {
				return errors.Wrapf(ErrUnknownPredecessor, "%s requires %s", spec.Name, req)
			}
			if pos >= i {
				return errors.Wrapf(ErrPredecessorNotFirst, "%s requires %s", spec.Name, req)
			}
			if err := gra.AddEdge(req, spec.Name); err != nil {
				return errors.Wrapf(err, "unable to link %s to %s", req, spec.Name)
			}
		}
	}
	p.graph = gra

	return nil
}

// Dependents returns the names of the stages that directly require the
// given stage, in declaration order. Useful to assess the downstream
// impact of a failed stage.
func (p *Pipeline) Dependents(name string) ([]string, error) {
	if _, ok := p.index[name]; !ok {
		return nil, errors.Wrap(ErrUnknownPredecessor, name)
	}

	adjacency, err := p.graph.AdjacencyMap()
	if err != nil {
		return nil, errors.Wrap(err, "unable to get adjacency map")
	}

	out := make([]string, 0, len(adjacency[name]))
	for child := range adjacency[name] {
		out = append(out, child)
	}
	sort.Slice(out, func(i, j int) bool { return p.index[out[i]] < p.index[out[j]] })

	return out, nil
}
