package api

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// FanOut runs calls concurrently and returns the first error. The context
// handed to the calls is cancelled as soon as one fails.
func FanOut(ctx context.Context, calls ...func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, call := range calls {
		call := call
		g.Go(func() error {
			return call(gctx)
		})
	}
	return g.Wait()
}
