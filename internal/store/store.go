// Package store defines the document-store port the sync engine talks to.
//
// A store holds JSON documents grouped in collections addressed by a slash
// separated path. Every identity owns three collections:
//
//	identity/{id}/transactions
//	identity/{id}/categories
//	identity/{id}/budgets
//
// Subscriptions deliver the full matching collection on every change. They
// never deliver diffs.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind names one of the per-identity collections.
type Kind string

const (
	Transactions Kind = "transactions"
	Categories   Kind = "categories"
	Budgets      Kind = "budgets"
)

var (
	ErrNotFound    = errors.New("document not found")
	ErrClosed      = errors.New("store closed")
	ErrInvalidPath = errors.New("invalid collection path")
)

// CollectionPath returns the path of an identity's collection.
func CollectionPath(identity string, kind Kind) string {
	return "identity/" + identity + "/" + string(kind)
}

// SplitPath is the inverse of CollectionPath.
func SplitPath(path string) (identity string, kind Kind, err error) {
	parts := strings.Split(path, "/")
	if len(parts) != 3 || parts[0] != "identity" || parts[1] == "" || parts[2] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return parts[1], Kind(parts[2]), nil
}

// Document is a stored document. Data never contains the id.
type Document struct {
	ID   string
	Data json.RawMessage
}

// NewDocument encodes v as the body of a document.
func NewDocument(id string, v any) (Document, error) {
	data, err := encode(v)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: id, Data: data}, nil
}

// Decode unmarshals the document body into v.
func (d Document) Decode(v any) error {
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("decode document %s: %w", d.ID, err)
	}
	return nil
}

func encode(v any) (json.RawMessage, error) {
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return b, nil
}

// Filter is an equality match on a top-level document field.
type Filter struct {
	Field string
	Value string
}

// Query selects documents of one collection.
type Query struct {
	Path       string
	Where      []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// Where is shorthand for a single-filter query.
func Where(path, field, value string) Query {
	return Query{Path: path, Where: []Filter{{Field: field, Value: value}}}
}

type (
	SnapshotFunc func(docs []Document)
	ErrorFunc    func(err error)
	Unsubscribe  func()
)

// DocumentStore is the remote store of record.
type DocumentStore interface {
	// Add creates a document under a store-assigned id.
	Add(ctx context.Context, path string, data any) (string, error)
	// Set creates or overwrites the document with the given id.
	Set(ctx context.Context, path, id string, data any) error
	// Update merges fields into an existing document.
	Update(ctx context.Context, path, id string, fields map[string]any) error
	Delete(ctx context.Context, path, id string) error
	Get(ctx context.Context, path, id string) (Document, error)
	// Query is a point-in-time read.
	Query(ctx context.Context, q Query) ([]Document, error)
	// Commit applies every write of the batch atomically.
	Commit(ctx context.Context, b *Batch) error
	// Subscribe delivers the query result now and after every change to the
	// collection until the returned func is called or ctx is done.
	// Deliveries for one subscription never overlap.
	Subscribe(ctx context.Context, q Query, onSnapshot SnapshotFunc, onError ErrorFunc) (Unsubscribe, error)
	Close() error
}

// ChangePublisher is told about the collections touched by each committed
// write, so other processes can refresh their subscriptions.
type ChangePublisher interface {
	PublishChange(ctx context.Context, paths []string) error
}

// Refresher accepts change notifications that originated elsewhere.
type Refresher interface {
	Refresh(paths ...string)
	// RefreshAll re-reads every live subscription, for when change
	// notifications may have been missed.
	RefreshAll()
}
