// Package engine mirrors one identity's transactions, categories and
// budgets from the document store into observable collections, keeps the
// default categories reconciled, and validates writes before sending them
// to the store.
//
// Collections are written only by subscription callbacks. Mutations go
// straight to the store and their effect shows up through the next
// snapshot.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"spendwise/internal/auth"
	"spendwise/internal/core"
	"spendwise/internal/notify"
	"spendwise/internal/store"
)

type Engine struct {
	store    store.DocumentStore
	notifier notify.Notifier
	logger   *slog.Logger

	Transactions *Collection[core.Transaction]
	Categories   *Collection[core.Category]
	Budgets      *Collection[core.Budget]

	mu       sync.Mutex
	identity string
	gen      uint64
	cancel   context.CancelFunc
	unsubs   []store.Unsubscribe
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithNotifier(n notify.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

func New(s store.DocumentStore, opts ...Option) *Engine {
	e := &Engine{
		store:        s,
		logger:       slog.Default(),
		Transactions: newCollection[core.Transaction](),
		Categories:   newCollection[core.Category](),
		Budgets:      newCollection[core.Budget](),
	}
	for _, o := range opts {
		o(e)
	}
	if e.notifier == nil {
		e.notifier = notify.NewLog(e.logger)
	}
	e.logger = e.logger.With("component", "engine")
	return e
}

// Identity returns the identity currently mirrored, or "".
func (e *Engine) Identity() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.identity
}

// SetIdentity switches the mirrored identity. An empty identity signs out:
// all collections are cleared and every subscription cancelled before
// SetIdentity returns. Switching identities tears the old ones down the
// same way before subscribing for the new identity.
func (e *Engine) SetIdentity(ctx context.Context, identity string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if identity == e.identity {
		return nil
	}
	e.teardownLocked()
	if identity == "" {
		e.logger.InfoContext(ctx, "Signed out, local state cleared")
		return nil
	}

	e.identity = identity
	gen := e.gen
	e.Transactions.reset(gen, true)
	e.Categories.reset(gen, true)
	e.Budgets.reset(gen, true)

	// Subscriptions outlive the caller's request.
	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancel = cancel

	e.subscribeLocked(subCtx, store.Query{
		Path:       store.CollectionPath(identity, store.Transactions),
		OrderBy:    "date",
		Descending: true,
	}, func(docs []store.Document) {
		e.Transactions.publish(gen, State[core.Transaction]{Items: decodeAll[core.Transaction](e.logger, docs)})
	}, func(err error) { failCollection(e, gen, e.Transactions, store.Transactions, err) })

	e.subscribeLocked(subCtx, store.Query{
		Path: store.CollectionPath(identity, store.Categories),
	}, func(docs []store.Document) {
		e.onCategories(subCtx, identity, gen, docs)
	}, func(err error) { failCollection(e, gen, e.Categories, store.Categories, err) })

	e.subscribeLocked(subCtx, store.Query{
		Path: store.CollectionPath(identity, store.Budgets),
	}, func(docs []store.Document) {
		e.Budgets.publish(gen, State[core.Budget]{Items: decodeAll[core.Budget](e.logger, docs)})
	}, func(err error) { failCollection(e, gen, e.Budgets, store.Budgets, err) })

	e.logger.InfoContext(ctx, "Subscribed to collections", "identity", identity)
	return nil
}

func (e *Engine) subscribeLocked(ctx context.Context, q store.Query, onSnapshot store.SnapshotFunc, onError store.ErrorFunc) {
	unsub, err := e.store.Subscribe(ctx, q, onSnapshot, onError)
	if err != nil {
		onError(err)
		return
	}
	e.unsubs = append(e.unsubs, unsub)
}

// teardownLocked cancels subscriptions and clears all local state.
func (e *Engine) teardownLocked() {
	for _, u := range e.unsubs {
		u()
	}
	e.unsubs = nil
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.identity = ""
	e.gen++
	e.Transactions.reset(e.gen, false)
	e.Categories.reset(e.gen, false)
	e.Budgets.reset(e.gen, false)
}

// Close signs out and releases every subscription.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.teardownLocked()
}

// WatchSession follows the provider's identity until ctx is done.
func (e *Engine) WatchSession(ctx context.Context, p auth.Provider) error {
	cancel := p.Watch(func(identity string) {
		if err := e.SetIdentity(ctx, identity); err != nil {
			e.logger.ErrorContext(ctx, "Failed to switch identity", "error", err)
		}
	})
	<-ctx.Done()
	cancel()
	e.Close()
	return nil
}

func failCollection[T any](e *Engine, gen uint64, c *Collection[T], kind store.Kind, err error) {
	serr := &SubscriptionError{Collection: kind, Err: err}
	e.logger.Error("Subscription failed", "collection", kind, "generation", gen, "error", err)
	applied := c.update(gen, func(s *State[T]) {
		s.Loading = false
		s.Err = serr
	})
	if !applied {
		return
	}
	e.notifier.Notify(context.Background(), notify.Error(
		fmt.Sprintf("Error loading %s", kind),
		err.Error(),
	))
}

func decodeAll[T any](logger *slog.Logger, docs []store.Document) []T {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := d.Decode(&v); err != nil {
			logger.Warn("Skipping undecodable document", "id", d.ID, "error", err)
			continue
		}
		setID(&v, d.ID)
		out = append(out, v)
	}
	return out
}

func setID(v any, id string) {
	switch x := v.(type) {
	case *core.Transaction:
		x.ID = id
	case *core.Category:
		x.ID = id
	case *core.Budget:
		x.ID = id
	}
}

// onCategories reconciles defaults before publishing a categories snapshot.
func (e *Engine) onCategories(ctx context.Context, identity string, gen uint64, docs []store.Document) {
	stored := decodeAll[core.Category](e.logger, docs)
	plan := Reconcile(stored)
	path := store.CollectionPath(identity, store.Categories)

	if plan.Seed {
		if err := e.commitCategories(ctx, path, plan.Writes); err != nil {
			e.logger.ErrorContext(ctx, "Failed to seed default categories", "identity", identity, "error", err)
			if e.Categories.update(gen, func(s *State[core.Category]) { s.Loading = false }) {
				e.notifier.Notify(ctx, notify.Error("Error setting up categories", err.Error()))
			}
			return
		}
		e.logger.InfoContext(ctx, "Seeded default categories", "identity", identity, "count", len(plan.Writes))
		e.notifier.Notify(ctx, notify.Info("Welcome!", "Default categories have been set up."))
		return
	}

	if len(plan.Writes) > 0 {
		if err := e.commitCategories(ctx, path, plan.Writes); err != nil {
			e.logger.ErrorContext(ctx, "Failed to reconcile default categories", "identity", identity, "error", err)
			e.notifier.Notify(ctx, notify.Error("Error updating default categories", err.Error()))
		} else {
			e.logger.InfoContext(ctx, "Reconciled default categories", "identity", identity, "count", len(plan.Writes))
		}
	}

	e.Categories.publish(gen, State[core.Category]{Items: plan.Merged})
}

func (e *Engine) commitCategories(ctx context.Context, path string, cats []core.Category) error {
	b := store.NewBatch()
	for _, c := range cats {
		id := c.ID
		c.ID = ""
		if err := b.Set(path, id, c); err != nil {
			return err
		}
	}
	return e.store.Commit(ctx, b)
}
