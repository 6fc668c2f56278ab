// Package scan turns token-paginated store calls into lazy sequences so that
// continuation handling lives in exactly one place.
package scan

import (
	"context"
	"errors"
	"iter"
)

// ErrTokenLoop is returned when a store hands back the token it was given.
var ErrTokenLoop = errors.New("pagination token did not advance")

// PageFunc fetches the page that starts at token ("" for the first page) and
// returns the token of the next page, or "" when there is none.
type PageFunc[T any] func(ctx context.Context, token string) (items []T, next string, err error)

// Pages yields every page in order. A fetch error, or cancellation of ctx
// between pages, is yielded once and ends the sequence. A page already in
// flight is allowed to finish.
func Pages[T any](ctx context.Context, fetch PageFunc[T]) iter.Seq2[[]T, error] {
	return PagesFrom(ctx, fetch, "")
}

// PagesFrom is Pages resumed at a token taken from an earlier page.
func PagesFrom[T any](ctx context.Context, fetch PageFunc[T], token string) iter.Seq2[[]T, error] {
	return func(yield func([]T, error) bool) {
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			items, next, err := fetch(ctx, token)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(items, nil) {
				return
			}
			if next == "" {
				return
			}
			if next == token {
				yield(nil, ErrTokenLoop)
				return
			}
			token = next
		}
	}
}

// All flattens Pages into single items.
func All[T any](ctx context.Context, fetch PageFunc[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for page, err := range Pages(ctx, fetch) {
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			for _, item := range page {
				if !yield(item, nil) {
					return
				}
			}
		}
	}
}
