package lazy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_BuildsOnceUnderConcurrency(t *testing.T) {
	var v Value[string]
	var builds atomic.Int32
	release := make(chan struct{})

	build := func(context.Context) (string, error) {
		builds.Add(1)
		<-release
		return "model", nil
	}

	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			val, err := v.Get(context.Background(), build)
			assert.NoError(t, err)
			results[i] = val
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), builds.Load())
	for _, r := range results {
		assert.Equal(t, "model", r)
	}

	_, err := v.Get(context.Background(), build)
	require.NoError(t, err)
	assert.Equal(t, int32(1), builds.Load(), "memoized value must be reused")
}

func TestValue_FailureIsNotCached(t *testing.T) {
	var v Value[int]
	calls := 0
	build := func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("not yet")
		}
		return 42, nil
	}

	_, err := v.Get(context.Background(), build)
	require.Error(t, err)

	got, err := v.Get(context.Background(), build)
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 2, calls)
}

func TestValue_PeekAndReset(t *testing.T) {
	var v Value[int]
	_, ok := v.Peek()
	assert.False(t, ok)

	_, err := v.Get(context.Background(), func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)

	got, ok := v.Peek()
	assert.True(t, ok)
	assert.Equal(t, 7, got)

	old, ok := v.Reset()
	assert.True(t, ok)
	assert.Equal(t, 7, old)

	_, ok = v.Peek()
	assert.False(t, ok)
}

func TestValue_CancelledCallerDoesNotFailOthers(t *testing.T) {
	var v Value[string]
	started := make(chan struct{})
	release := make(chan struct{})
	var builds atomic.Int32
	build := func(ctx context.Context) (string, error) {
		builds.Add(1)
		close(started)
		select {
		case <-release:
			return "conn", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := v.Get(firstCtx, build)
		firstErr <- err
	}()
	<-started

	second := make(chan string, 1)
	go func() {
		val, err := v.Get(context.Background(), build)
		assert.NoError(t, err)
		second <- val
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	assert.Equal(t, "conn", <-second)
	assert.Equal(t, int32(1), builds.Load())

	got, ok := v.Peek()
	assert.True(t, ok)
	assert.Equal(t, "conn", got)
}
