package tool

import (
	"context"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/publift/go-stageflow/pkg/tool/cache"
	"github.com/publift/go-stageflow/pkg/tool/ratelimit"
)

// CallSpec describes one external call: the resource it hits for rate
// limiting, the arguments that identify it for caching, and how long a
// successful result stays valid.
type CallSpec struct {
	Resource string
	Args     map[string]string
	TTL      time.Duration
}

// Key derives the cache key from the resource name and the normalised
// arguments. Argument order never changes the key.
func (s CallSpec) Key() string {
	names := make([]string, 0, len(s.Args))
	for name := range s.Args {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(s.Resource)
	for _, name := range names {
		b.WriteByte(0x1f)
		b.WriteString(strings.ToLower(strings.TrimSpace(name)))
		b.WriteByte(0x1e)
		b.WriteString(strings.TrimSpace(s.Args[name]))
	}

	return b.String()
}

// Performer runs the actual external call. The invoker treats it as opaque
// and only manages its retry, cache and rate-limit envelope.
type Performer func(ctx context.Context) (any, error)

// Config bounds the calls of one invoker.
type Config struct {
	// MaxRetries is the number of retries after the first attempt, spent
	// only on retryable failures.
	MaxRetries int
	// CallTimeout bounds each individual attempt. Zero means no per-call
	// deadline beyond the caller's context.
	CallTimeout time.Duration
	Backoff     Backoff
}

// Invoker wraps performers with caching, rate limiting and retries.
// Safe for concurrent use from a stage's fan-out.
type Invoker struct {
	cfg     Config
	limiter *ratelimit.Limiter
	cache   *cache.Cache
	log     *slog.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(inv *Invoker) {
		inv.log = log
	}
}

// WithRandSource fixes the jitter source, for deterministic tests.
func WithRandSource(src rand.Source) Option {
	return func(inv *Invoker) {
		inv.rnd = rand.New(src)
	}
}

// New creates an invoker sharing the given limiter and cache.
func New(cfg Config, limiter *ratelimit.Limiter, memo *cache.Cache, opts ...Option) *Invoker {
	inv := &Invoker{
		cfg:     cfg,
		limiter: limiter,
		cache:   memo,
		log:     slog.Default(),
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(inv)
	}

	return inv
}

// Invoke resolves the call: cache hit first (no permit, no retry), then a
// rate-limited attempt loop with exponential backoff on retryable
// failures. Exhausted calls return a *Error; a cancelled context returns
// the context error so the caller can tell abandonment from failure.
//
// Concurrent invocations with the same key share one in-flight call.
func (inv *Invoker) Invoke(ctx context.Context, spec CallSpec, perform Performer) (any, error) {
	return inv.cache.Do(ctx, spec.Key(), spec.TTL, func() (any, error) {
		return inv.call(ctx, spec, perform)
	})
}

func (inv *Invoker) call(ctx context.Context, spec CallSpec, perform Performer) (any, error) {
	var last error
	for attempt := 0; ; attempt++ {
		if err := inv.limiter.Acquire(ctx, spec.Resource); err != nil {
			return nil, errors.Wrapf(err, "acquiring permit for %s", spec.Resource)
		}

		result, err := inv.attempt(ctx, perform)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			// The run was cancelled or timed out around the call; abandon
			// instead of classifying.
			return nil, errors.Wrapf(ctx.Err(), "%s call abandoned", spec.Resource)
		}

		last = err
		kind := Classify(err)
		if !kind.Retryable() || attempt >= inv.cfg.MaxRetries {
			return nil, &Error{Kind: kind, Resource: spec.Resource, Attempts: attempt + 1, Err: last}
		}

		delay := inv.cfg.Backoff.Delay(attempt, inv.roll())
		inv.log.Debug("retrying tool call",
			"resource", spec.Resource,
			"attempt", attempt+1,
			"kind", string(kind),
			"delay", delay,
			"error", err.Error(),
		)
		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(ctx.Err(), "%s call abandoned", spec.Resource)
		case <-time.After(delay):
		}
	}
}

func (inv *Invoker) attempt(ctx context.Context, perform Performer) (any, error) {
	if inv.cfg.CallTimeout > 0 {
		callCtx, cancel := context.WithTimeout(ctx, inv.cfg.CallTimeout)
		defer cancel()

		return perform(callCtx)
	}

	return perform(ctx)
}

func (inv *Invoker) roll() float64 {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	return inv.rnd.Float64()
}
