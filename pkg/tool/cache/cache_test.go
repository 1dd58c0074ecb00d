package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMiss(t *testing.T) {
	t.Parallel()

	c := New()

	_, ok := c.Get("missing")
	assert.False(t, ok)
}

func TestPutGet(t *testing.T) {
	t.Parallel()

	c := New()
	c.Put("key", "value", 0)

	got, ok := c.Get("key")
	require.True(t, ok)
	assert.Equal(t, "value", got)
	assert.Equal(t, 1, c.Len())
}

func TestExpiredEntryIsMissAndEvicted(t *testing.T) {
	t.Parallel()

	now := time.Now()
	c := New()
	c.now = func() time.Time { return now }

	c.Put("key", "value", time.Minute)

	got, ok := c.Get("key")
	require.True(t, ok)
	assert.Equal(t, "value", got)

	now = now.Add(2 * time.Minute)

	_, ok = c.Get("key")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestZeroTTLNeverExpires(t *testing.T) {
	t.Parallel()

	now := time.Now()
	c := New()
	c.now = func() time.Time { return now }

	c.Put("key", "value", 0)
	now = now.Add(24 * time.Hour)

	_, ok := c.Get("key")
	assert.True(t, ok)
}

func TestDoCachesSuccess(t *testing.T) {
	t.Parallel()

	c := New()

	calls := 0
	fn := func() (any, error) {
		calls++

		return "value", nil
	}

	for i := 0; i < 3; i++ {
		got, err := c.Do(context.Background(), "key", time.Minute, fn)
		require.NoError(t, err)
		assert.Equal(t, "value", got)
	}
	assert.Equal(t, 1, calls)
}

func TestDoNeverCachesFailure(t *testing.T) {
	t.Parallel()

	c := New()

	calls := 0
	fn := func() (any, error) {
		calls++

		return nil, errors.New("remote down")
	}

	_, err := c.Do(context.Background(), "key", time.Minute, fn)
	require.Error(t, err)
	_, err = c.Do(context.Background(), "key", time.Minute, fn)
	require.Error(t, err)

	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, c.Len())
}

func TestDoSharesInFlightCall(t *testing.T) {
	t.Parallel()

	c := New()

	var (
		mu      sync.Mutex
		calls   int
		release = make(chan struct{})
	)
	fn := func() (any, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		<-release

		return "value", nil
	}

	const waiters = 5
	var wgrp sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wgrp.Add(1)
		go func() {
			defer wgrp.Done()
			got, err := c.Do(context.Background(), "key", time.Minute, fn)
			assert.NoError(t, err)
			assert.Equal(t, "value", got)
		}()
	}

	// let every waiter join the flight before releasing it
	time.Sleep(50 * time.Millisecond)
	close(release)
	wgrp.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestDoAbandonedCallerStillPopulatesCache(t *testing.T) {
	t.Parallel()

	c := New()

	started := make(chan struct{})
	release := make(chan struct{})
	fn := func() (any, error) {
		close(started)
		<-release

		return "value", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errC := make(chan error, 1)
	go func() {
		_, err := c.Do(ctx, "key", time.Minute, fn)
		errC <- err
	}()

	<-started
	cancel()
	err := <-errC
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)

	// the flight finishes in the background; poll until its result lands
	require.Eventually(t, func() bool {
		got, ok := c.Get("key")

		return ok && got == "value"
	}, time.Second, 10*time.Millisecond)
}
