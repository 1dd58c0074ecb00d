package model

import "github.com/pkg/errors"

// ErrDuplicateStage is returned when a stage name is appended twice.
var ErrDuplicateStage = errors.New("stage already present in context")

// Context accumulates the named outputs of one run, in insertion order.
//
// Only the pipeline appends to it, exactly once per stage when the stage
// reaches a terminal state. Workers only read it. Stages run sequentially,
// so no locking is needed here; concurrency inside a stage stays inside
// the stage's tool calls.
type Context struct {
	names   []string
	results map[string]StageResult
}

// NewContext creates an empty execution context for a single run.
func NewContext() *Context {
	return &Context{results: make(map[string]StageResult)}
}

// Append records the terminal result of a stage. Duplicate names are
// rejected so a completed entry can never be overwritten.
func (c *Context) Append(name string, res StageResult) error {
	if _, ok := c.results[name]; ok {
		return errors.Wrap(ErrDuplicateStage, name)
	}
	c.names = append(c.names, name)
	c.results[name] = res

	return nil
}

// Result returns the recorded result for a stage.
func (c *Context) Result(name string) (StageResult, bool) {
	res, ok := c.results[name]
	return res, ok
}

// Payload returns the usable output of a stage, if it produced any.
func (c *Context) Payload(name string) (any, bool) {
	res, ok := c.results[name]
	if !ok || !res.Usable() {
		return nil, false
	}

	return res.Value(), true
}

// Names returns the stage names in completion order.
func (c *Context) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)

	return out
}

// Len returns the number of completed stages.
func (c *Context) Len() int { return len(c.names) }
