package tool_test

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/publift/go-stageflow/pkg/tool"
	"github.com/publift/go-stageflow/pkg/tool/cache"
	"github.com/publift/go-stageflow/pkg/tool/ratelimit"
)

func newInvoker(t *testing.T, cfg tool.Config) *tool.Invoker {
	t.Helper()

	limiter, err := ratelimit.New(nil)
	require.NoError(t, err)

	return tool.New(cfg, limiter, cache.New(), tool.WithRandSource(rand.NewSource(1)))
}

func fastRetries(maxRetries int) tool.Config {
	return tool.Config{
		MaxRetries: maxRetries,
		Backoff:    tool.Backoff{Base: time.Millisecond, Max: 5 * time.Millisecond},
	}
}

func TestInvokeCacheHitSkipsPerformer(t *testing.T) {
	t.Parallel()

	inv := newInvoker(t, fastRetries(0))
	spec := tool.CallSpec{Resource: "search", Args: map[string]string{"query": "go"}, TTL: time.Minute}

	calls := 0
	perform := func(context.Context) (any, error) {
		calls++

		return "results", nil
	}

	for i := 0; i < 3; i++ {
		got, err := inv.Invoke(context.Background(), spec, perform)
		require.NoError(t, err)
		assert.Equal(t, "results", got)
	}
	assert.Equal(t, 1, calls)
}

func TestInvokeRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	inv := newInvoker(t, fastRetries(3))
	spec := tool.CallSpec{Resource: "search", Args: map[string]string{"query": "go"}}

	calls := 0
	perform := func(context.Context) (any, error) {
		calls++
		if calls < 3 {
			return nil, errors.Wrap(tool.ErrTransient, "upstream flaked")
		}

		return "results", nil
	}

	got, err := inv.Invoke(context.Background(), spec, perform)
	require.NoError(t, err)
	assert.Equal(t, "results", got)
	assert.Equal(t, 3, calls)
}

func TestInvokeNonRetryableFailsImmediately(t *testing.T) {
	t.Parallel()

	inv := newInvoker(t, fastRetries(3))
	spec := tool.CallSpec{Resource: "repository", Args: map[string]string{"repo": "missing"}}

	calls := 0
	perform := func(context.Context) (any, error) {
		calls++

		return nil, errors.Wrap(tool.ErrNotFound, "no such repository")
	}

	_, err := inv.Invoke(context.Background(), spec, perform)
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var terr *tool.Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, tool.NotFound, terr.Kind)
	assert.Equal(t, "repository", terr.Resource)
	assert.Equal(t, 1, terr.Attempts)
	assert.ErrorIs(t, err, tool.ErrNotFound)
}

func TestInvokeExhaustsRetryBudget(t *testing.T) {
	t.Parallel()

	inv := newInvoker(t, fastRetries(2))
	spec := tool.CallSpec{Resource: "search", Args: map[string]string{"query": "go"}}

	calls := 0
	perform := func(context.Context) (any, error) {
		calls++

		return nil, errors.Wrap(tool.ErrTransient, "still down")
	}

	_, err := inv.Invoke(context.Background(), spec, perform)
	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var terr *tool.Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, tool.Transient, terr.Kind)
	assert.Equal(t, 3, terr.Attempts)
}

func TestInvokeCallTimeoutClassifiedAsTimeout(t *testing.T) {
	t.Parallel()

	cfg := fastRetries(0)
	cfg.CallTimeout = 20 * time.Millisecond
	inv := newInvoker(t, cfg)
	spec := tool.CallSpec{Resource: "search", Args: map[string]string{"query": "slow"}}

	perform := func(ctx context.Context) (any, error) {
		<-ctx.Done()

		return nil, ctx.Err()
	}

	_, err := inv.Invoke(context.Background(), spec, perform)
	require.Error(t, err)

	var terr *tool.Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, tool.Timeout, terr.Kind)
}

func TestInvokeCancelledContextAbandonsCall(t *testing.T) {
	t.Parallel()

	inv := newInvoker(t, fastRetries(3))
	spec := tool.CallSpec{Resource: "search", Args: map[string]string{"query": "go"}}

	ctx, cancel := context.WithCancel(context.Background())
	perform := func(ctx context.Context) (any, error) {
		cancel()
		<-ctx.Done()

		return nil, ctx.Err()
	}

	_, err := inv.Invoke(ctx, spec, perform)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	var terr *tool.Error
	assert.False(t, errors.As(err, &terr))
}

func TestInvokeFailureIsNotCached(t *testing.T) {
	t.Parallel()

	inv := newInvoker(t, fastRetries(0))
	spec := tool.CallSpec{Resource: "search", Args: map[string]string{"query": "go"}, TTL: time.Minute}

	calls := 0
	perform := func(context.Context) (any, error) {
		calls++
		if calls == 1 {
			return nil, errors.Wrap(tool.ErrUnauthorized, "token expired")
		}

		return "results", nil
	}

	_, err := inv.Invoke(context.Background(), spec, perform)
	require.Error(t, err)

	got, err := inv.Invoke(context.Background(), spec, perform)
	require.NoError(t, err)
	assert.Equal(t, "results", got)
	assert.Equal(t, 2, calls)
}

func TestInvokeConcurrentSameSpecSharesOneCall(t *testing.T) {
	t.Parallel()

	inv := newInvoker(t, fastRetries(0))
	spec := tool.CallSpec{Resource: "search", Args: map[string]string{"query": "go"}, TTL: time.Minute}

	var (
		mu      sync.Mutex
		calls   int
		release = make(chan struct{})
	)
	perform := func(context.Context) (any, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		<-release

		return "results", nil
	}

	var wgrp sync.WaitGroup
	for i := 0; i < 4; i++ {
		wgrp.Add(1)
		go func() {
			defer wgrp.Done()
			got, err := inv.Invoke(context.Background(), spec, perform)
			assert.NoError(t, err)
			assert.Equal(t, "results", got)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wgrp.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestCallSpecKeyIgnoresArgumentOrderAndSpacing(t *testing.T) {
	t.Parallel()

	first := tool.CallSpec{Resource: "search", Args: map[string]string{"query": "go", "lang": "en"}}
	second := tool.CallSpec{Resource: "search", Args: map[string]string{"LANG": "en", "Query ": "go"}}

	assert.Equal(t, first.Key(), second.Key())
}

func TestCallSpecKeyDistinguishesResourcesAndValues(t *testing.T) {
	t.Parallel()

	base := tool.CallSpec{Resource: "search", Args: map[string]string{"query": "go"}}
	otherResource := tool.CallSpec{Resource: "docs", Args: map[string]string{"query": "go"}}
	otherValue := tool.CallSpec{Resource: "search", Args: map[string]string{"query": "rust"}}

	assert.NotEqual(t, base.Key(), otherResource.Key())
	assert.NotEqual(t, base.Key(), otherValue.Key())
}

func TestClassify(t *testing.T) {
	t.Parallel()

	assert.Equal(t, tool.Timeout, tool.Classify(context.DeadlineExceeded))
	assert.Equal(t, tool.RateLimited, tool.Classify(errors.Wrap(tool.ErrRateLimited, "429")))
	assert.Equal(t, tool.Unauthorized, tool.Classify(tool.ErrUnauthorized))
	assert.Equal(t, tool.NotFound, tool.Classify(tool.ErrNotFound))
	assert.Equal(t, tool.Transient, tool.Classify(tool.ErrTransient))
	assert.Equal(t, tool.Unexpected, tool.Classify(errors.New("who knows")))
}

func TestKindRetryable(t *testing.T) {
	t.Parallel()

	assert.True(t, tool.Timeout.Retryable())
	assert.True(t, tool.RateLimited.Retryable())
	assert.True(t, tool.Transient.Retryable())
	assert.False(t, tool.Unauthorized.Retryable())
	assert.False(t, tool.NotFound.Retryable())
	assert.False(t, tool.Unexpected.Retryable())
}
