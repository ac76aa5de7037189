package supabase

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"spendwise/internal/store"
)

func TestChangesOnlySkipsIdenticalPolls(t *testing.T) {
	var got [][]store.Document
	f := changesOnly("identity/u1/budgets", func(docs []store.Document) { got = append(got, docs) })

	a := []store.Document{{ID: "1", Data: json.RawMessage(`{"amount":500}`)}}
	b := []store.Document{{ID: "1", Data: json.RawMessage(`{"amount":650}`)}}

	f(nil)
	f(nil)
	f(a)
	f(a)
	f(b)
	f(nil)

	assert.Len(t, got, 4)
	assert.Empty(t, got[0])
	assert.Equal(t, b, got[2])
	assert.Empty(t, got[3])
}

func TestFingerprintSeparatesFields(t *testing.T) {
	x := []store.Document{{ID: "ab", Data: json.RawMessage(`c`)}}
	y := []store.Document{{ID: "a", Data: json.RawMessage(`bc`)}}
	assert.NotEqual(t, fingerprint(x), fingerprint(y))
}
