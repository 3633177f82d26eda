package main

import (
	"context"
	"errors"
	"iter"
)

// fetchPage is one cursor-based listing call: it takes an opaque cursor
// (empty for the first page) and returns a batch of items plus the next
// cursor, empty when the listing is exhausted.
type fetchPage[T any] func(ctx context.Context, cursor string) ([]T, string, error)

// paginate lazily traverses a paginated listing, acquiring the rate limiter
// before every underlying fetch. The sequence is forward-only and not
// restartable: iterating again re-issues from the start.
//
// A rate-limit rejection is converted into a backoff wait and the fetch is
// reissued; it never counts against maxRetries and never terminates the
// sequence. Transport errors are retried up to maxRetries attempts per
// page, then propagated as the final element so a truncated listing is
// never mistaken for a complete one.
func paginate[T any](ctx context.Context, rl *rateLimiter, maxRetries int, fetch fetchPage[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		cursor := ""
		attempts := 0
		for {
			if err := rl.acquire(ctx); err != nil {
				yield(zero, err)
				return
			}

			items, next, err := fetch(ctx, cursor)
			if err != nil {
				var sig *rateLimitSignal
				if errors.As(err, &sig) {
					rl.backoff(sig.retryAfter)
					continue
				}
				attempts++
				if attempts < maxRetries {
					continue
				}
				yield(zero, err)
				return
			}
			attempts = 0

			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}
			if next == "" {
				return
			}
			cursor = next
		}
	}
}

// collectPages drains a paginated listing into a slice, stopping at the
// first error.
func collectPages[T any](ctx context.Context, rl *rateLimiter, maxRetries int, fetch fetchPage[T]) ([]T, error) {
	var out []T
	for item, err := range paginate(ctx, rl, maxRetries, fetch) {
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}
