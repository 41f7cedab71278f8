// Package catalog fetches raw model records from a remote model catalog.
package catalog

import (
	"context"

	"github.com/oxide-lab/discover/internal/filter"
	"github.com/oxide-lab/discover/internal/model"
)

// Searcher returns the raw records in the window [offset, offset+limit) of the
// catalog results for query. Records are untrusted and must be sanitized.
type Searcher interface {
	Search(ctx context.Context, query string, f filter.Filters, offset, limit int) ([]model.Raw, error)
}

// SearcherFunc adapts a function to Searcher.
type SearcherFunc func(ctx context.Context, query string, f filter.Filters, offset, limit int) ([]model.Raw, error)

func (fn SearcherFunc) Search(ctx context.Context, query string, f filter.Filters, offset, limit int) ([]model.Raw, error) {
	return fn(ctx, query, f, offset, limit)
}

type requestIDKey struct{}

// WithRequestID attaches a request id that Hub sends with its calls.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id set by WithRequestID.
func RequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}
