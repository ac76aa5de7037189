// Package memory is an in-process document store. It backs tests and the
// memory backend, optionally seeded from and saved to a JSON file.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"

	"spendwise/internal/store"
)

// Fault lets callers fail selected operations. op is one of add, set,
// update, delete, get, query, commit, load.
type Fault func(op, path string) error

type Store struct {
	mu     sync.Mutex
	data   map[string]map[string]json.RawMessage
	writes int
	fault  Fault
	hub    *store.Hub
}

var _ store.DocumentStore = (*Store)(nil)

func New() *Store {
	s := &Store{data: map[string]map[string]json.RawMessage{}}
	s.hub = store.NewHub(s.load)
	return s
}

// NewFromFile seeds the store with a dump written by Save. A missing file
// yields an empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	if err := json.Unmarshal(b, &s.data); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return s, nil
}

// Save writes every collection to path as JSON.
func (s *Store) Save(path string) error {
	s.mu.Lock()
	b, err := json.MarshalIndent(s.data, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

// SetFault installs or clears (nil) a fault hook.
func (s *Store) SetFault(f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = f
}

// WriteCount returns how many write operations have been applied.
func (s *Store) WriteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// ActiveSubscriptions returns the number of live subscriptions.
func (s *Store) ActiveSubscriptions() int {
	return s.hub.Active()
}

func (s *Store) check(op, path string) error {
	if s.fault == nil {
		return nil
	}
	return s.fault(op, path)
}

func (s *Store) coll(path string) map[string]json.RawMessage {
	c, ok := s.data[path]
	if !ok {
		c = map[string]json.RawMessage{}
		s.data[path] = c
	}
	return c
}

func (s *Store) Add(_ context.Context, path string, data any) (string, error) {
	doc, err := store.NewDocument(uuid.NewString(), data)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	if err := s.check("add", path); err != nil {
		s.mu.Unlock()
		return "", err
	}
	s.coll(path)[doc.ID] = doc.Data
	s.writes++
	s.mu.Unlock()
	s.hub.Notify(path)
	return doc.ID, nil
}

func (s *Store) Set(_ context.Context, path, id string, data any) error {
	doc, err := store.NewDocument(id, data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if err := s.check("set", path); err != nil {
		s.mu.Unlock()
		return err
	}
	s.coll(path)[id] = doc.Data
	s.writes++
	s.mu.Unlock()
	s.hub.Notify(path)
	return nil
}

func (s *Store) Update(_ context.Context, path, id string, fields map[string]any) error {
	s.mu.Lock()
	if err := s.check("update", path); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.updateLocked(path, id, fields); err != nil {
		s.mu.Unlock()
		return err
	}
	s.writes++
	s.mu.Unlock()
	s.hub.Notify(path)
	return nil
}

func (s *Store) updateLocked(path, id string, fields map[string]any) error {
	cur, ok := s.data[path][id]
	if !ok {
		return fmt.Errorf("%w: %s/%s", store.ErrNotFound, path, id)
	}
	merged, err := store.MergeFields(cur, fields)
	if err != nil {
		return err
	}
	s.data[path][id] = merged
	return nil
}

func (s *Store) Delete(_ context.Context, path, id string) error {
	s.mu.Lock()
	if err := s.check("delete", path); err != nil {
		s.mu.Unlock()
		return err
	}
	delete(s.coll(path), id)
	s.writes++
	s.mu.Unlock()
	s.hub.Notify(path)
	return nil
}

func (s *Store) Get(_ context.Context, path, id string) (store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("get", path); err != nil {
		return store.Document{}, err
	}
	data, ok := s.data[path][id]
	if !ok {
		return store.Document{}, fmt.Errorf("%w: %s/%s", store.ErrNotFound, path, id)
	}
	return store.Document{ID: id, Data: data}, nil
}

func (s *Store) Query(_ context.Context, q store.Query) ([]store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("query", q.Path); err != nil {
		return nil, err
	}
	return s.snapshotLocked(q), nil
}

func (s *Store) snapshotLocked(q store.Query) []store.Document {
	docs := make([]store.Document, 0, len(s.data[q.Path]))
	for id, data := range s.data[q.Path] {
		docs = append(docs, store.Document{ID: id, Data: data})
	}
	return store.Apply(docs, q)
}

func (s *Store) load(_ context.Context, q store.Query) ([]store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("load", q.Path); err != nil {
		return nil, err
	}
	return s.snapshotLocked(q), nil
}

type docKey struct{ path, id string }

type staged struct {
	data    json.RawMessage
	deleted bool
}

// Commit stages every write against a copy-on-write overlay and applies the
// overlay only when all of them succeed.
func (s *Store) Commit(_ context.Context, b *store.Batch) error {
	if b.Len() == 0 {
		return nil
	}
	writes := b.Writes()

	s.mu.Lock()
	if err := s.check("commit", writes[0].Path); err != nil {
		s.mu.Unlock()
		return err
	}
	overlay := make(map[docKey]staged, len(writes))
	order := make([]docKey, 0, len(writes))
	put := func(k docKey, v staged) {
		if _, ok := overlay[k]; !ok {
			order = append(order, k)
		}
		overlay[k] = v
	}
	for _, w := range writes {
		k := docKey{w.Path, w.ID}
		switch w.Op {
		case store.OpSet:
			put(k, staged{data: w.Data})
		case store.OpUpdate:
			cur, ok := s.data[w.Path][w.ID]
			if v, seen := overlay[k]; seen {
				cur, ok = v.data, !v.deleted
			}
			if !ok {
				s.mu.Unlock()
				return fmt.Errorf("%w: %s/%s", store.ErrNotFound, w.Path, w.ID)
			}
			merged, err := store.MergeFields(cur, w.Fields)
			if err != nil {
				s.mu.Unlock()
				return fmt.Errorf("merge %s/%s: %w", w.Path, w.ID, err)
			}
			put(k, staged{data: merged})
		case store.OpDelete:
			put(k, staged{deleted: true})
		}
	}
	for _, k := range order {
		v := overlay[k]
		if v.deleted {
			delete(s.coll(k.path), k.id)
			continue
		}
		s.coll(k.path)[k.id] = v.data
	}
	s.writes++
	s.mu.Unlock()
	s.hub.Notify(b.Paths()...)
	return nil
}

func (s *Store) Subscribe(ctx context.Context, q store.Query, onSnapshot store.SnapshotFunc, onError store.ErrorFunc) (store.Unsubscribe, error) {
	return s.hub.Subscribe(ctx, q, onSnapshot, onError)
}

// Refresh wakes subscriptions on paths changed by another writer.
func (s *Store) Refresh(paths ...string) {
	s.hub.Notify(paths...)
}

func (s *Store) RefreshAll() {
	s.hub.NotifyAll()
}

func (s *Store) Close() error {
	s.hub.Close()
	return nil
}
