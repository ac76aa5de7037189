// Package supabase keeps documents in a Supabase (PostgREST) table:
//
//	create table documents (
//	    path text not null,
//	    id   text not null,
//	    data jsonb not null,
//	    primary key (path, id)
//	);
//
// PostgREST has no push channel for this client, so subscriptions poll and
// deliver only when the result changed.
package supabase

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	"spendwise/internal/store"
)

const table = "documents"

// ErrBatchDelete is returned for batches mixing deletes with other writes;
// only a single request is atomic over PostgREST.
var ErrBatchDelete = errors.New("supabase batches cannot contain deletes")

type row struct {
	Path string          `json:"path"`
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

type Store struct {
	client *supabase.Client
	hub    *store.Hub

	pollEvery time.Duration
	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

var _ store.DocumentStore = (*Store)(nil)

// New connects to the project at url. pollEvery sets how often live
// subscriptions re-read their collection.
func New(url, key string, pollEvery time.Duration) (*Store, error) {
	client, err := supabase.NewClient(url, key, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	if pollEvery <= 0 {
		pollEvery = 5 * time.Second
	}
	s := &Store{
		client:    client,
		pollEvery: pollEvery,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	s.hub = store.NewHub(s.Query)
	go s.pollLoop()
	return s, nil
}

func (s *Store) pollLoop() {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.pollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.hub.NotifyAll()
		}
	}
}

func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopCh)
		<-s.doneCh
		s.hub.Close()
	})
	return nil
}

// Refresh polls the given collections immediately.
func (s *Store) Refresh(paths ...string) {
	s.hub.Notify(paths...)
}

func (s *Store) RefreshAll() {
	s.hub.NotifyAll()
}

func (s *Store) upsert(rows []row) error {
	_, _, err := s.client.From(table).Insert(rows, true, "path,id", "minimal", "").Execute()
	return err
}

func (s *Store) Add(ctx context.Context, path string, data any) (string, error) {
	doc, err := store.NewDocument(uuid.NewString(), data)
	if err != nil {
		return "", err
	}
	if _, _, err := s.client.From(table).Insert(row{Path: path, ID: doc.ID, Data: doc.Data}, false, "", "minimal", "").Execute(); err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}
	s.hub.Notify(path)
	return doc.ID, nil
}

func (s *Store) Set(ctx context.Context, path, id string, data any) error {
	doc, err := store.NewDocument(id, data)
	if err != nil {
		return err
	}
	if err := s.upsert([]row{{Path: path, ID: id, Data: doc.Data}}); err != nil {
		return fmt.Errorf("set document: %w", err)
	}
	s.hub.Notify(path)
	return nil
}

func (s *Store) merged(ctx context.Context, path, id string, fields map[string]any) (row, error) {
	cur, err := s.Get(ctx, path, id)
	if err != nil {
		return row{}, err
	}
	data, err := store.MergeFields(cur.Data, fields)
	if err != nil {
		return row{}, fmt.Errorf("merge document: %w", err)
	}
	return row{Path: path, ID: id, Data: data}, nil
}

func (s *Store) Update(ctx context.Context, path, id string, fields map[string]any) error {
	r, err := s.merged(ctx, path, id, fields)
	if err != nil {
		return err
	}
	if _, _, err := s.client.From(table).
		Update(map[string]any{"data": r.Data}, "minimal", "").
		Eq("path", path).
		Eq("id", id).
		Execute(); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	s.hub.Notify(path)
	return nil
}

func (s *Store) Delete(ctx context.Context, path, id string) error {
	if _, _, err := s.client.From(table).
		Delete("minimal", "").
		Eq("path", path).
		Eq("id", id).
		Execute(); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	s.hub.Notify(path)
	return nil
}

func (s *Store) Get(ctx context.Context, path, id string) (store.Document, error) {
	data, _, err := s.client.From(table).
		Select("id,data", "", false).
		Eq("path", path).
		Eq("id", id).
		Execute()
	if err != nil {
		return store.Document{}, fmt.Errorf("get document: %w", err)
	}
	var rows []row
	if err := json.Unmarshal(data, &rows); err != nil {
		return store.Document{}, fmt.Errorf("parse document: %w", err)
	}
	if len(rows) == 0 {
		return store.Document{}, fmt.Errorf("%w: %s/%s", store.ErrNotFound, path, id)
	}
	return store.Document{ID: rows[0].ID, Data: rows[0].Data}, nil
}

func (s *Store) Query(ctx context.Context, q store.Query) ([]store.Document, error) {
	fb := s.client.From(table).
		Select("id,data", "", false).
		Eq("path", q.Path)
	for _, f := range q.Where {
		fb = fb.Eq("data->>"+f.Field, f.Value)
	}
	if q.OrderBy != "" {
		fb = fb.Order("data->>"+q.OrderBy, &postgrest.OrderOpts{Ascending: !q.Descending})
	} else {
		fb = fb.Order("id", &postgrest.OrderOpts{Ascending: true})
	}
	if q.Limit > 0 {
		fb = fb.Limit(q.Limit, "")
	}

	data, _, err := fb.Execute()
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	var rows []row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse documents: %w", err)
	}
	docs := make([]store.Document, len(rows))
	for i, r := range rows {
		docs[i] = store.Document{ID: r.ID, Data: r.Data}
	}
	return docs, nil
}

// Commit sends every set and update as one bulk upsert request, which
// PostgREST runs in a single transaction.
func (s *Store) Commit(ctx context.Context, b *store.Batch) error {
	if b.Len() == 0 {
		return nil
	}
	rows := make([]row, 0, b.Len())
	for _, w := range b.Writes() {
		switch w.Op {
		case store.OpSet:
			rows = append(rows, row{Path: w.Path, ID: w.ID, Data: w.Data})
		case store.OpUpdate:
			r, err := s.merged(ctx, w.Path, w.ID, w.Fields)
			if err != nil {
				return err
			}
			rows = append(rows, r)
		case store.OpDelete:
			return ErrBatchDelete
		}
	}
	if err := s.upsert(rows); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	s.hub.Notify(b.Paths()...)
	return nil
}

func (s *Store) Subscribe(ctx context.Context, q store.Query, onSnapshot store.SnapshotFunc, onError store.ErrorFunc) (store.Unsubscribe, error) {
	return s.hub.Subscribe(ctx, q, changesOnly(q.Path, onSnapshot), onError)
}

// changesOnly drops polled snapshots identical to the previous delivery.
func changesOnly(path string, next store.SnapshotFunc) store.SnapshotFunc {
	var last [32]byte
	delivered := false
	return func(docs []store.Document) {
		fp := fingerprint(docs)
		if delivered && fp == last {
			return
		}
		delivered, last = true, fp
		slog.Debug("Collection changed", "component", "storage", "path", path, "documents", len(docs))
		next(docs)
	}
}

func fingerprint(docs []store.Document) [32]byte {
	h := sha256.New()
	for _, d := range docs {
		h.Write([]byte(d.ID))
		h.Write([]byte{0})
		h.Write(d.Data)
		h.Write([]byte{0})
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
