package drawer

import (
	"io"
	"os"
	"text/template"
	"time"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
	"gopkg.in/go-playground/colors.v1" //nolint

	"github.com/publift/go-stageflow/internal/store"
	"github.com/publift/go-stageflow/pkg/pipeline/model"
)

// DotDrawer renders the stage graph as a Graphviz DOT file, colouring each
// stage by its terminal state.
type DotDrawer struct {
	graph       graph.Graph[string, string]
	store       store.CustomStore[string, string]
	dotFileName string
}

// NewDotDrawer creates a drawer writing to the given file.
func NewDotDrawer(dotFileName string) *DotDrawer {
	st := store.NewMemoryStore[string, string]()

	return &DotDrawer{
		dotFileName: dotFileName,
		store:       st,
		graph:       graph.NewWithStore(graph.StringHash, st, graph.Directed()),
	}
}

// AddStage adds a stage vertex to the graph.
func (d *DotDrawer) AddStage(stageName string) error {
	err := d.graph.AddVertex(stageName)
	if err != nil {
		return errors.Wrap(err, "unable to add vertex")
	}

	return nil
}

// AddLink adds a dependency edge between two stages.
func (d *DotDrawer) AddLink(parentStageName, childStageName string) error {
	err := d.graph.AddEdge(parentStageName, childStageName)
	if err != nil {
		return errors.Wrap(err, "unable to add edge")
	}

	return nil
}

// SetStatus fills the stage vertex with its state colour and labels it
// with the stage wall time.
func (d *DotDrawer) SetStatus(stageName string, state model.StageState, elapsed time.Duration) error {
	hex, err := stateColour(state)
	if err != nil {
		return err
	}

	d.store.UpdateVertex(stageName, func(props *graph.VertexProperties) {
		if props.Attributes == nil {
			props.Attributes = make(map[string]string)
		}
		props.Attributes["style"] = "filled"
		props.Attributes["fillcolor"] = hex
		if elapsed > 0 {
			props.Attributes["xlabel"] = elapsed.String()
		}
	})

	return nil
}

// Draw creates the DOT file with the annotated pipeline graph.
func (d *DotDrawer) Draw() error {
	file, err := os.Create(d.dotFileName)
	if err != nil {
		return errors.Wrapf(err, "unable to create file %s", d.dotFileName)
	}
	defer file.Close()

	err = dot(d.graph, file)
	if err != nil {
		return errors.Wrapf(err, "unable to create dot file %s", d.dotFileName)
	}

	return nil
}

func stateColour(state model.StageState) (string, error) {
	var (
		red, green, blue uint8
	)
	switch state {
	case model.StageSucceeded:
		red, green, blue = 63, 182, 24
	case model.StageFailed:
		red, green, blue = 218, 54, 51
	case model.StageSkipped:
		red, green, blue = 255, 196, 0
	default:
		red, green, blue = 206, 212, 218
	}

	colour, err := colors.RGB(red, green, blue) //nolint
	if err != nil {
		return "", errors.Wrap(err, "unable to get colour")
	}

	return colour.ToHEX().String(), nil
}

//nolint:lll //this is a template
const dotTemplate = `strict {{.GraphType}} {
	{{range $k, $v := .Attributes}}
		{{$k}}="{{$v}}";
	{{end}}
	{{range $s := .Statements}}
		"{{.Source}}" {{if .Target}}{{$.EdgeOperator}} "{{.Target}}"{{else}}[ {{range $k, $v := .SourceAttributes}}{{$k}}="{{$v}}", {{end}} ]{{end}};
	{{end}}
	}
	`

type description struct {
	GraphType    string
	Attributes   map[string]string
	EdgeOperator string
	Statements   []statement
}

type statement struct {
	Source           interface{}
	Target           interface{}
	SourceAttributes map[string]string
}

func dot[K comparable, T any](gra graph.Graph[K, T], wrt io.Writer) error {
	desc, err := generateDOT(gra)
	if err != nil {
		return errors.Wrap(err, "failed to generate DOT description")
	}

	return renderDOT(wrt, desc)
}

func generateDOT[K comparable, T any](gra graph.Graph[K, T]) (description, error) {
	desc := description{
		GraphType:    "graph",
		Attributes:   map[string]string{"rankdir": "LR"},
		EdgeOperator: "--",
		Statements:   make([]statement, 0),
	}

	if gra.Traits().IsDirected {
		desc.GraphType = "digraph"
		desc.EdgeOperator = "->"
	}

	adjacencyMap, err := gra.AdjacencyMap()
	if err != nil {
		return desc, errors.Wrap(err, "unable to get adjacency map")
	}

	for vertex, adjacencies := range adjacencyMap {
		_, sourceProperties, err := gra.VertexWithProperties(vertex)
		if err != nil {
			return desc, errors.Wrap(err, "unable to get vertex properties")
		}

		desc.Statements = append(desc.Statements, statement{
			Source:           vertex,
			SourceAttributes: sourceProperties.Attributes,
		})

		for adjacency := range adjacencies {
			desc.Statements = append(desc.Statements, statement{
				Source: vertex,
				Target: adjacency,
			})
		}
	}

	return desc, nil
}

func renderDOT(wrt io.Writer, desc description) error {
	tpl, err := template.New("dotTemplate").Parse(dotTemplate)
	if err != nil {
		return errors.Wrap(err, "failed to parse template")
	}

	return tpl.Execute(wrt, desc)
}
