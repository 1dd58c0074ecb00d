package tool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Fanout runs the call functions concurrently, at most limit at a time,
// and returns the result and error of every slot in input order. One slot
// failing does not cancel the others, so callers can keep whatever partial
// output the surviving calls produced. A limit below 1 means no bound.
func Fanout[T any](ctx context.Context, limit int, calls ...func(context.Context) (T, error)) ([]T, []error) {
	results := make([]T, len(calls))
	errs := make([]error, len(calls))

	grp := errgroup.Group{}
	if limit > 0 {
		grp.SetLimit(limit)
	}
	for idx, call := range calls {
		idx, call := idx, call
		grp.Go(func() error {
			results[idx], errs[idx] = call(ctx)

			return nil
		})
	}
	_ = grp.Wait()

	return results, errs
}
