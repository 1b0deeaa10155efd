// Package lazy memoizes expensive resources that must be created at most once.
package lazy

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Value holds a resource built on first use. Concurrent first callers share a
// single build; a successful result is kept until Reset, a failed build is
// not cached so the next caller tries again.
type Value[T any] struct {
	mu    sync.RWMutex
	val   T
	ready bool
	group singleflight.Group
}

// Get returns the memoized value, building it with build if needed. The
// build outlives any single caller: each caller stops waiting when its own
// ctx is done while the build keeps going for the others.
func (v *Value[T]) Get(ctx context.Context, build func(context.Context) (T, error)) (T, error) {
	if val, ok := v.load(); ok {
		return val, nil
	}
	bctx := context.WithoutCancel(ctx)
	ch := v.group.DoChan("build", func() (any, error) {
		if val, ok := v.load(); ok {
			return val, nil
		}
		val, err := build(bctx)
		if err != nil {
			return nil, err
		}
		v.mu.Lock()
		v.val, v.ready = val, true
		v.mu.Unlock()
		return val, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// Peek returns the value if it has already been built.
func (v *Value[T]) Peek() (T, bool) { return v.load() }

// Reset drops the memoized value and returns it.
func (v *Value[T]) Reset() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	val, ok := v.val, v.ready
	var zero T
	v.val, v.ready = zero, false
	return val, ok
}

func (v *Value[T]) load() (T, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.val, v.ready
}
