package utils

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultFanOutLimit caps concurrent calls when no limit is given
const DefaultFanOutLimit = 8

// Result is the outcome of one keyed call in a fan-out
type Result[T any] struct {
	Key   string
	Value T
	Err   error
}

// FanOut calls fn once per key with at most limit calls in flight and returns
// one Result per key in input order. A failing key never cancels the others.
// Keys still waiting for a slot when ctx ends get ctx's error.
func FanOut[T any](ctx context.Context, keys []string, limit int, fn func(ctx context.Context, key string) (T, error)) []Result[T] {
	if limit <= 0 {
		limit = DefaultFanOutLimit
	}

	results := make([]Result[T], len(keys))
	sem := semaphore.NewWeighted(int64(limit))
	var g errgroup.Group

	for i, key := range keys {
		results[i].Key = key
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i].Err = err
			continue
		}

		g.Go(func() error {
			defer sem.Release(1)
			results[i].Value, results[i].Err = fn(ctx, key)
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// Successes collects the values of successful results by key
func Successes[T any](results []Result[T]) map[string]T {
	out := make(map[string]T, len(results))
	for _, r := range results {
		if r.Err == nil {
			out[r.Key] = r.Value
		}
	}
	return out
}

// Failures collects the errors of failed results by key
func Failures[T any](results []Result[T]) map[string]error {
	out := make(map[string]error)
	for _, r := range results {
		if r.Err != nil {
			out[r.Key] = r.Err
		}
	}
	return out
}

// FirstError returns the first error in input order, for callers that want
// all-or-nothing semantics
func FirstError[T any](results []Result[T]) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}
