package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"spendwise/internal/engine"
	"spendwise/internal/notify"
)

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	recent := []notify.Notification{}
	if s.broadcaster != nil {
		recent = append(recent, s.broadcaster.Recent()...)
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": recent})
}

// dirtySet records which collections changed since the stream last wrote.
// Listeners only flip flags and poke wake, so they never block a publish.
type dirtySet struct {
	mu    sync.Mutex
	kinds map[string]bool
	wake  chan struct{}
}

func (d *dirtySet) mark(kind string) {
	d.mu.Lock()
	d.kinds[kind] = true
	d.mu.Unlock()
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dirtySet) take() map[string]bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.kinds
	d.kinds = map[string]bool{}
	return out
}

func watch[T any](c *engine.Collection[T], d *dirtySet, kind string) func() {
	return c.Subscribe(func(engine.State[T]) { d.mark(kind) })
}

// handleEvents streams collection states and notifications as server-sent
// events. Every collection is sent once on connect.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	d := &dirtySet{kinds: map[string]bool{}, wake: make(chan struct{}, 1)}
	defer watch(s.engine.Transactions, d, "transactions")()
	defer watch(s.engine.Categories, d, "categories")()
	defer watch(s.engine.Budgets, d, "budgets")()

	var notes <-chan notify.Notification
	if s.broadcaster != nil {
		ch, cancel := s.broadcaster.Subscribe()
		defer cancel()
		notes = ch
	}

	for {
		for kind := range d.take() {
			var err error
			switch kind {
			case "transactions":
				err = writeEvent(w, kind, collectionState(s.engine.Transactions.Snapshot()))
			case "categories":
				err = writeEvent(w, kind, collectionState(s.engine.Categories.Snapshot()))
			case "budgets":
				err = writeEvent(w, kind, collectionState(s.engine.Budgets.Snapshot()))
			}
			if err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-s.closing:
			return
		case <-d.wake:
		case n, ok := <-notes:
			if !ok {
				notes = nil
				continue
			}
			if writeEvent(w, "notification", n) != nil {
				return
			}
		}
	}
}

func writeEvent(w io.Writer, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
