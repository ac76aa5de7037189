package store

import (
	"encoding/json"
	"sort"
)

type Op int

const (
	OpSet Op = iota
	OpUpdate
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpSet:
		return "set"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Write is a single staged batch operation.
type Write struct {
	Op     Op
	Path   string
	ID     string
	Data   json.RawMessage
	Fields map[string]any
}

// Batch stages writes that a store commits atomically.
type Batch struct {
	writes []Write
}

func NewBatch() *Batch {
	return &Batch{}
}

func (b *Batch) Set(path, id string, data any) error {
	raw, err := encode(data)
	if err != nil {
		return err
	}
	b.writes = append(b.writes, Write{Op: OpSet, Path: path, ID: id, Data: raw})
	return nil
}

func (b *Batch) Update(path, id string, fields map[string]any) {
	b.writes = append(b.writes, Write{Op: OpUpdate, Path: path, ID: id, Fields: fields})
}

func (b *Batch) Delete(path, id string) {
	b.writes = append(b.writes, Write{Op: OpDelete, Path: path, ID: id})
}

func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.writes)
}

func (b *Batch) Writes() []Write {
	return append([]Write(nil), b.writes...)
}

// Paths returns the distinct collection paths touched by the batch.
func (b *Batch) Paths() []string {
	seen := map[string]struct{}{}
	for _, w := range b.writes {
		seen[w.Path] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// MergeFields applies a partial update to an encoded document.
func MergeFields(data json.RawMessage, fields map[string]any) (json.RawMessage, error) {
	m := map[string]any{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
	}
	for k, v := range fields {
		m[k] = v
	}
	return json.Marshal(m)
}
