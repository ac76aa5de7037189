package engine

import (
	"sort"
	"strings"

	"spendwise/internal/core"
)

// Plan is the outcome of reconciling stored categories with the canonical
// defaults.
type Plan struct {
	// Seed is set when the store holds no categories at all. Every default
	// must be written and nothing published until the store echoes them.
	Seed bool
	// Writes are defaults to overwrite or create.
	Writes []core.Category
	// Merged is the stored set with Writes applied, in display order.
	Merged []core.Category
}

// Reconcile compares stored categories against the canonical defaults.
// User-created categories pass through untouched.
func Reconcile(stored []core.Category) Plan {
	defaults := core.DefaultCategories()
	if len(stored) == 0 {
		return Plan{Seed: true, Writes: defaults}
	}

	byID := make(map[string]int, len(stored))
	merged := append([]core.Category(nil), stored...)
	for i, c := range merged {
		byID[c.ID] = i
	}

	var writes []core.Category
	for _, d := range defaults {
		i, ok := byID[d.ID]
		if !ok {
			writes = append(writes, d)
			merged = append(merged, d)
			continue
		}
		cur := merged[i]
		if cur.Name != d.Name || cur.Icon != d.Icon || cur.Color != d.Color {
			writes = append(writes, d)
			merged[i] = d
		}
	}

	SortCategories(merged)
	return Plan{Writes: writes, Merged: merged}
}

// SortCategories orders defaults first in canonical order, then user
// categories by name ignoring case.
func SortCategories(cats []core.Category) {
	sort.SliceStable(cats, func(i, j int) bool {
		a, b := cats[i], cats[j]
		ai, aDef := core.DefaultIndex(a.ID)
		bi, bDef := core.DefaultIndex(b.ID)
		switch {
		case aDef && bDef:
			return ai < bi
		case aDef != bDef:
			return aDef
		}
		an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if an != bn {
			return an < bn
		}
		return a.ID < b.ID
	})
}
