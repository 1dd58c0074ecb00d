// Package ratelimit bounds the call frequency to named external resources.
//
// Each resource gets a sliding window: at most Calls permits may be granted
// within any interval of length Window. Excess requests queue in arrival
// order and are woken when the oldest permit in the window expires.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrCallsMustBePositive  = errors.New("calls must be greater than 0")
	ErrWindowMustBePositive = errors.New("window must be greater than 0")
)

// Limit configures one resource.
type Limit struct {
	Calls  int
	Window time.Duration
}

// Limiter hands out permits for named resources. Resources without a
// configured limit are unbounded. Safe for concurrent acquisition.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
}

// New creates a limiter from per-resource limits.
func New(limits map[string]Limit) (*Limiter, error) {
	windows := make(map[string]*window, len(limits))
	for resource, limit := range limits {
		if limit.Calls <= 0 {
			return nil, errors.Wrap(ErrCallsMustBePositive, resource)
		}
		if limit.Window <= 0 {
			return nil, errors.Wrap(ErrWindowMustBePositive, resource)
		}
		windows[resource] = &window{limit: limit}
	}

	return &Limiter{windows: windows}, nil
}

// Acquire blocks until a call to the resource is permitted or the context
// ends. The permit is consumed on return; there is nothing to release,
// the window does the bookkeeping by itself.
func (l *Limiter) Acquire(ctx context.Context, resource string) error {
	l.mu.Lock()
	win, ok := l.windows[resource]
	l.mu.Unlock()
	if !ok {
		return ctx.Err()
	}

	return win.acquire(ctx)
}

type window struct {
	limit   Limit
	mu      sync.Mutex
	grants  []time.Time
	waiters []chan struct{}
	timer   *time.Timer
}

func (w *window) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.Lock()
	// Waiters already in line keep their place; a newcomer may only jump
	// the queue when nobody is waiting.
	if len(w.waiters) == 0 && w.admit() {
		w.mu.Unlock()

		return nil
	}

	ready := make(chan struct{})
	w.waiters = append(w.waiters, ready)
	w.arm()
	w.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		// If the grant raced with cancellation the permit stays recorded.
		// The window only ever over-counts, never under.
		w.abandon(ready)

		return ctx.Err()
	}
}

// admit records a grant if the window has room. Caller holds w.mu.
func (w *window) admit() bool {
	now := time.Now()
	w.prune(now)
	if len(w.grants) >= w.limit.Calls {
		return false
	}
	w.grants = append(w.grants, now)

	return true
}

// prune drops grants that fell out of the window. Caller holds w.mu.
func (w *window) prune(now time.Time) {
	cut := now.Add(-w.limit.Window)
	idx := 0
	for idx < len(w.grants) && !w.grants[idx].After(cut) {
		idx++
	}
	w.grants = w.grants[idx:]
}

// arm schedules a wake-up for when the oldest grant expires. Caller holds w.mu.
func (w *window) arm() {
	if w.timer != nil || len(w.grants) == 0 {
		return
	}
	wait := time.Until(w.grants[0].Add(w.limit.Window))
	if wait < 0 {
		wait = 0
	}
	w.timer = time.AfterFunc(wait, w.wake)
}

func (w *window) wake() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.timer = nil
	for len(w.waiters) > 0 && w.admit() {
		close(w.waiters[0])
		w.waiters = w.waiters[1:]
	}
	if len(w.waiters) > 0 {
		w.arm()
	}
}

func (w *window) abandon(ready chan struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for idx, waiter := range w.waiters {
		if waiter == ready {
			w.waiters = append(w.waiters[:idx], w.waiters[idx+1:]...)

			return
		}
	}
}
