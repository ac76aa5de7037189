package store

import (
	"context"
	"log/slog"
	"sync"
)

// Loader runs a query against the backing store.
type Loader func(ctx context.Context, q Query) ([]Document, error)

// Hub fans change notifications out to live subscriptions. Each
// subscription runs its own delivery goroutine and coalesces wake-ups, so a
// burst of writes yields at least one fresh snapshot and deliveries for one
// subscription never overlap.
type Hub struct {
	load Loader

	mu     sync.Mutex
	subs   map[uint64]*subscription
	next   uint64
	closed bool
	wg     sync.WaitGroup
}

type subscription struct {
	q    Query
	wake chan struct{}
	done chan struct{}
	once sync.Once
}

func NewHub(load Loader) *Hub {
	return &Hub{load: load, subs: make(map[uint64]*subscription)}
}

// Subscribe registers a live query and schedules its first delivery.
func (h *Hub) Subscribe(ctx context.Context, q Query, onSnapshot SnapshotFunc, onError ErrorFunc) (Unsubscribe, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	id := h.next
	h.next++
	s := &subscription{
		q:    q,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	s.wake <- struct{}{}
	h.subs[id] = s
	h.wg.Add(1)
	h.mu.Unlock()

	go h.run(ctx, id, s, onSnapshot, onError)

	return func() { h.cancel(id, s) }, nil
}

func (h *Hub) run(ctx context.Context, id uint64, s *subscription, onSnapshot SnapshotFunc, onError ErrorFunc) {
	defer h.wg.Done()
	defer h.cancel(id, s)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-s.wake:
		}

		docs, err := h.load(ctx, s.q)

		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		if err != nil {
			slog.WarnContext(ctx, "Subscription load failed", "component", "store", "path", s.q.Path, "error", err)
			if onError != nil {
				onError(err)
			}
			continue
		}
		if onSnapshot != nil {
			onSnapshot(docs)
		}
	}
}

func (h *Hub) cancel(id uint64, s *subscription) {
	s.once.Do(func() {
		close(s.done)
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	})
}

// Notify wakes every subscription on one of the given collection paths.
func (h *Hub) Notify(paths ...string) {
	changed := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		changed[p] = struct{}{}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		if _, ok := changed[s.q.Path]; ok {
			s.signal()
		}
	}
}

// NotifyAll wakes every live subscription.
func (h *Hub) NotifyAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		s.signal()
	}
}

// signal queues a reload unless one is already pending.
func (s *subscription) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Active returns the number of live subscriptions.
func (h *Hub) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close cancels every subscription and waits for delivery goroutines to
// exit. It must not be called from a snapshot callback.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := make([]*subscription, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.once.Do(func() { close(s.done) })
	}
	h.mu.Lock()
	h.subs = map[uint64]*subscription{}
	h.mu.Unlock()
	h.wg.Wait()
}
