// Package backend builds the document store and the optional change feed
// selected by configuration.
package backend

import (
	"context"

	"spendwise/internal/amqp"
	"spendwise/internal/store"
)

// CleanupFunc releases the resources held by a Result.
type CleanupFunc func() error

// Result is a ready store plus the feed that keeps it in step with other
// processes. Feed is nil when no broker is configured.
type Result struct {
	Store   store.DocumentStore
	Feed    *amqp.Feed
	Cleanup CleanupFunc
}

// Ready reports whether the store answers queries.
func (r *Result) Ready(ctx context.Context) error {
	q := store.Query{Path: store.CollectionPath("_ready", store.Categories), Limit: 1}
	_, err := r.Store.Query(ctx, q)
	return err
}

// Factory creates stores based on configuration.
type Factory interface {
	Create(ctx context.Context, config Config) (*Result, error)
}
