// Package sqlite stores documents in a single SQLite table, one row per
// document keyed by (path, id) with the body held as JSON.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"spendwise/internal/store"
)

var fieldName = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

var ErrInvalidField = errors.New("invalid field name")

type Store struct {
	db        *sql.DB
	hub       *store.Hub
	publisher store.ChangePublisher
}

var (
	_ store.DocumentStore = (*Store)(nil)
	_ store.Refresher     = (*Store)(nil)
)

type Option func(*Store)

// WithChangePublisher announces every committed write to other processes.
func WithChangePublisher(p store.ChangePublisher) Option {
	return func(s *Store) { s.publisher = p }
}

// Open opens (creating if needed) the database at dbPath and migrates it.
func Open(dbPath string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &Store{db: db}
	for _, o := range opts {
		o(s)
	}
	s.hub = store.NewHub(s.Query)
	return s, nil
}

// SetChangePublisher installs the publisher after construction, for feeds
// that need the store to exist first.
func (s *Store) SetChangePublisher(p store.ChangePublisher) {
	s.publisher = p
}

func (s *Store) Close() error {
	s.hub.Close()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) changed(ctx context.Context, paths ...string) {
	s.hub.Notify(paths...)
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishChange(ctx, paths); err != nil {
		slog.WarnContext(ctx, "Failed to publish change", "component", "storage", "paths", paths, "error", err)
	}
}

// Refresh wakes local subscriptions for writes made by another process.
func (s *Store) Refresh(paths ...string) {
	s.hub.Notify(paths...)
}

func (s *Store) RefreshAll() {
	s.hub.NotifyAll()
}

// ActiveSubscriptions returns the number of live subscriptions.
func (s *Store) ActiveSubscriptions() int {
	return s.hub.Active()
}

const upsertSQL = `INSERT INTO documents (path, id, data, updated_at)
VALUES (?, ?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
ON CONFLICT (path, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) Add(ctx context.Context, path string, data any) (string, error) {
	doc, err := store.NewDocument(uuid.NewString(), data)
	if err != nil {
		return "", err
	}
	if _, err := s.db.ExecContext(ctx, upsertSQL, path, doc.ID, string(doc.Data)); err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}
	s.changed(ctx, path)
	return doc.ID, nil
}

func (s *Store) Set(ctx context.Context, path, id string, data any) error {
	doc, err := store.NewDocument(id, data)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, upsertSQL, path, id, string(doc.Data)); err != nil {
		return fmt.Errorf("set document: %w", err)
	}
	s.changed(ctx, path)
	return nil
}

func (s *Store) Update(ctx context.Context, path, id string, fields map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	if err := update(ctx, tx, path, id, fields); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}
	s.changed(ctx, path)
	return nil
}

func update(ctx context.Context, ex execer, path, id string, fields map[string]any) error {
	var cur string
	err := ex.QueryRowContext(ctx, `SELECT data FROM documents WHERE path = ? AND id = ?`, path, id).Scan(&cur)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s/%s", store.ErrNotFound, path, id)
	}
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	merged, err := store.MergeFields(json.RawMessage(cur), fields)
	if err != nil {
		return fmt.Errorf("merge document: %w", err)
	}
	if _, err := ex.ExecContext(ctx, upsertSQL, path, id, string(merged)); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, path, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE path = ? AND id = ?`, path, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	s.changed(ctx, path)
	return nil
}

func (s *Store) Get(ctx context.Context, path, id string) (store.Document, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM documents WHERE path = ? AND id = ?`, path, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Document{}, fmt.Errorf("%w: %s/%s", store.ErrNotFound, path, id)
	}
	if err != nil {
		return store.Document{}, fmt.Errorf("get document: %w", err)
	}
	return store.Document{ID: id, Data: json.RawMessage(data)}, nil
}

// buildQuery renders q as SQL. Field names are restricted to identifiers
// since they are spliced into JSON paths.
func buildQuery(q store.Query) (string, []any, error) {
	var b strings.Builder
	args := []any{q.Path}
	b.WriteString(`SELECT id, data FROM documents WHERE path = ?`)
	for _, f := range q.Where {
		if !fieldName.MatchString(f.Field) {
			return "", nil, fmt.Errorf("%w: %q", ErrInvalidField, f.Field)
		}
		fmt.Fprintf(&b, ` AND CAST(json_extract(data, '$.%s') AS TEXT) = ?`, f.Field)
		args = append(args, f.Value)
	}
	if q.OrderBy != "" {
		if !fieldName.MatchString(q.OrderBy) {
			return "", nil, fmt.Errorf("%w: %q", ErrInvalidField, q.OrderBy)
		}
		dir := "ASC"
		if q.Descending {
			dir = "DESC"
		}
		fmt.Fprintf(&b, ` ORDER BY json_extract(data, '$.%s') %s, id`, q.OrderBy, dir)
	} else {
		b.WriteString(` ORDER BY id`)
	}
	if q.Limit > 0 {
		b.WriteString(` LIMIT ?`)
		args = append(args, q.Limit)
	}
	return b.String(), args, nil
}

func (s *Store) Query(ctx context.Context, q store.Query) ([]store.Document, error) {
	query, args, err := buildQuery(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []store.Document
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, store.Document{ID: id, Data: json.RawMessage(data)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

func (s *Store) Commit(ctx context.Context, b *store.Batch) error {
	if b.Len() == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	for _, w := range b.Writes() {
		switch w.Op {
		case store.OpSet:
			_, err = tx.ExecContext(ctx, upsertSQL, w.Path, w.ID, string(w.Data))
		case store.OpUpdate:
			err = update(ctx, tx, w.Path, w.ID, w.Fields)
		case store.OpDelete:
			_, err = tx.ExecContext(ctx, `DELETE FROM documents WHERE path = ? AND id = ?`, w.Path, w.ID)
		}
		if err != nil {
			return fmt.Errorf("batch %s %s/%s: %w", w.Op, w.Path, w.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	s.changed(ctx, b.Paths()...)
	return nil
}

func (s *Store) Subscribe(ctx context.Context, q store.Query, onSnapshot store.SnapshotFunc, onError store.ErrorFunc) (store.Unsubscribe, error) {
	if _, _, err := buildQuery(q); err != nil {
		return nil, err
	}
	return s.hub.Subscribe(ctx, q, onSnapshot, onError)
}
