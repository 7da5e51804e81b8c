// Package fanout runs a function over a slice with bounded concurrency while
// keeping results positional.
package fanout

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Result pairs the output for one input item with its error.
type Result[R any] struct {
	Value R
	Err   error
}

// Gather calls fn for every item with at most limit calls in flight and
// returns one Result per item in input order. A failing item never cancels
// its siblings; a cancelled ctx marks the items not yet started as failed.
func Gather[T, R any](ctx context.Context, items []T, limit int, fn func(context.Context, int, T) (R, error)) []Result[R] {
	results := make([]Result[R], len(items))
	if len(items) == 0 {
		return results
	}
	if limit < 1 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)

	for i, item := range items {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					results[i] = Result[R]{Err: fmt.Errorf("panic: %v", r)}
				}
			}()
			if err := ctx.Err(); err != nil {
				results[i] = Result[R]{Err: err}
				return nil
			}
			v, err := fn(ctx, i, item)
			results[i] = Result[R]{Value: v, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Errors returns the non-nil errors in results, in order.
func Errors[R any](results []Result[R]) []error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errs
}
