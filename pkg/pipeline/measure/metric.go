package measure

import (
	"sync"
	"time"

	"github.com/publift/go-stageflow/pkg/pipeline/model"
)

type DefaultMetric struct {
	mu          sync.Mutex
	stageState  model.StageState
	stageTotal  time.Duration
	endDuration time.Duration
	runs        int64
}

func (mt *DefaultMetric) AddDuration(elapsed time.Duration) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.runs++
	mt.stageTotal += elapsed
}

func (mt *DefaultMetric) SetState(state model.StageState) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.stageState = state
}

func (mt *DefaultMetric) State() model.StageState {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	return mt.stageState
}

func (mt *DefaultMetric) AVGDuration() time.Duration {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.runs == 0 {
		return time.Duration(0)
	}

	return round(time.Duration(float64(mt.stageTotal) / float64(mt.runs)))
}

func (mt *DefaultMetric) Runs() int64 {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	return mt.runs
}

func (mt *DefaultMetric) SetTotalDuration(endDuration time.Duration) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.endDuration = endDuration
}

func (mt *DefaultMetric) TotalDuration() time.Duration {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	return mt.endDuration
}

func round(d time.Duration) time.Duration {
	switch {
	case d > time.Second:
		d = d.Round(time.Second)
	case d > time.Millisecond:
		d = d.Round(time.Millisecond)
	case d > time.Microsecond:
		d = d.Round(time.Microsecond)
	}

	return d
}
