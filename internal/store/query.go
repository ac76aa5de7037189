package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Apply filters, orders and limits docs in process according to q.
// Stores without native querying share it.
func Apply(docs []Document, q Query) []Document {
	type row struct {
		doc    Document
		fields map[string]any
	}
	rows := make([]row, 0, len(docs))
	for _, d := range docs {
		fields := map[string]any{}
		if err := json.Unmarshal(d.Data, &fields); err != nil {
			continue
		}
		if !matches(fields, q.Where) {
			continue
		}
		rows = append(rows, row{doc: d, fields: fields})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if q.OrderBy != "" {
			c := compareValues(rows[i].fields[q.OrderBy], rows[j].fields[q.OrderBy])
			if c != 0 {
				if q.Descending {
					return c > 0
				}
				return c < 0
			}
		}
		return rows[i].doc.ID < rows[j].doc.ID
	})

	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	out := make([]Document, len(rows))
	for i, r := range rows {
		out[i] = r.doc
	}
	return out
}

func matches(fields map[string]any, where []Filter) bool {
	for _, f := range where {
		v, ok := fields[f.Field]
		if !ok || ValueString(v) != f.Value {
			return false
		}
	}
	return true
}

// ValueString renders a decoded JSON value the way equality filters see it.
func ValueString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func compareValues(a, b any) int {
	switch av := a.(type) {
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case string:
		if bv, ok := b.(string); ok {
			ta, errA := time.Parse(time.RFC3339Nano, av)
			tb, errB := time.Parse(time.RFC3339Nano, bv)
			if errA == nil && errB == nil {
				return ta.Compare(tb)
			}
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	}
	// Missing values sort first.
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return 0
}
