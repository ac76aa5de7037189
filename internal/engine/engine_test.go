package engine

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendwise/internal/auth"
	"spendwise/internal/core"
	"spendwise/internal/notify"
	"spendwise/internal/store"
	"spendwise/internal/store/memory"
)

const wait = 2 * time.Second
const tick = 5 * time.Millisecond

func newEngine(t *testing.T) (*Engine, *memory.Store, *notify.Broadcaster) {
	t.Helper()
	s := memory.New()
	b := notify.NewBroadcaster(100)
	e := New(s, WithNotifier(b))
	t.Cleanup(func() {
		e.Close()
		_ = s.Close()
	})
	return e, s, b
}

// signIn switches identity and waits until all three collections loaded.
func signIn(t *testing.T, e *Engine, id string) {
	t.Helper()
	require.NoError(t, e.SetIdentity(context.Background(), id))
	require.Eventually(t, func() bool {
		return !e.Transactions.Snapshot().Loading &&
			!e.Categories.Snapshot().Loading &&
			!e.Budgets.Snapshot().Loading
	}, wait, tick)
}

func TestFreshIdentityIsSeededWithDefaults(t *testing.T) {
	e, s, _ := newEngine(t)
	signIn(t, e, "alice")

	cats := e.Categories.Items()
	assert.Equal(t, core.DefaultCategories(), cats)

	stored, err := s.Query(context.Background(), store.Query{Path: store.CollectionPath("alice", store.Categories)})
	require.NoError(t, err)
	assert.Len(t, stored, 12)
	for _, d := range stored {
		assert.NotContains(t, string(d.Data), `"id"`)
	}
}

func TestStoredDriftIsHealed(t *testing.T) {
	e, s, _ := newEngine(t)
	ctx := context.Background()
	path := store.CollectionPath("alice", store.Categories)
	for _, c := range core.DefaultCategories() {
		id := c.ID
		c.ID = ""
		if id == "food" {
			c.Name, c.Icon, c.Color = "Old Food", core.IconPizza, "red"
		}
		if id == "gifts" {
			continue
		}
		require.NoError(t, s.Set(ctx, path, id, c))
	}
	require.NoError(t, s.Set(ctx, path, "mine", core.Category{Name: "Pets", Icon: core.IconPawPrint}))

	signIn(t, e, "alice")

	cats := e.Categories.Items()
	require.Len(t, cats, 13)
	assert.Equal(t, core.DefaultCategories(), cats[:12])
	assert.Equal(t, "Pets", cats[12].Name)

	for _, id := range []string{"food", "gifts"} {
		d, err := s.Get(ctx, path, id)
		require.NoError(t, err)
		var c core.Category
		require.NoError(t, d.Decode(&c))
		c.ID = id
		i, _ := core.DefaultIndex(id)
		assert.Equal(t, core.DefaultCategories()[i], c)
	}
	d, err := s.Get(ctx, path, "mine")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Pets","icon":"PawPrint"}`, string(d.Data))
}

func TestSignOutClearsStateAndCancelsSubscriptions(t *testing.T) {
	e, s, _ := newEngine(t)
	ctx := context.Background()
	signIn(t, e, "alice")
	_, err := e.AddTransaction(ctx, coffee())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(e.Transactions.Items()) == 1 }, wait, tick)
	assert.Equal(t, 3, s.ActiveSubscriptions())

	require.NoError(t, e.SetIdentity(ctx, ""))
	assert.Empty(t, e.Transactions.Items())
	assert.Empty(t, e.Categories.Items())
	assert.Empty(t, e.Budgets.Items())
	assert.False(t, e.Categories.Snapshot().Loading)
	assert.Equal(t, 0, s.ActiveSubscriptions())
	assert.Equal(t, "", e.Identity())
}

func TestIdentitySwitchNeverLeaksPriorDocuments(t *testing.T) {
	e, s, _ := newEngine(t)
	ctx := context.Background()
	signIn(t, e, "alice")
	_, err := e.AddTransaction(ctx, coffee())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(e.Transactions.Items()) == 1 }, wait, tick)
	aliceTx := e.Transactions.Items()[0].ID

	var switched, leaked atomic.Bool
	cancel := e.Transactions.Subscribe(func(st State[core.Transaction]) {
		if !switched.Load() {
			return
		}
		for _, tx := range st.Items {
			if tx.ID == aliceTx {
				leaked.Store(true)
			}
		}
	})
	defer cancel()

	switched.Store(true)
	signIn(t, e, "bob")
	assert.Empty(t, e.Transactions.Items())
	assert.Len(t, e.Categories.Items(), 12)
	assert.Equal(t, 3, s.ActiveSubscriptions())

	// Writes to alice's data no longer reach bob's view.
	require.NoError(t, s.Set(ctx, store.CollectionPath("alice", store.Transactions), "late", coffee()))
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, e.Transactions.Items())

	assert.False(t, leaked.Load())
}

func TestSetIdentityTwiceIsNoop(t *testing.T) {
	e, s, _ := newEngine(t)
	signIn(t, e, "alice")
	require.NoError(t, e.SetIdentity(context.Background(), "alice"))
	assert.Equal(t, 3, s.ActiveSubscriptions())
}

func TestSubscriptionErrorClearsLoadingAndNotifies(t *testing.T) {
	e, s, b := newEngine(t)
	s.SetFault(func(op, path string) error {
		if op == "load" && strings.HasSuffix(path, "/budgets") {
			return errors.New("permission denied")
		}
		return nil
	})

	signIn(t, e, "alice")

	st := e.Budgets.Snapshot()
	assert.False(t, st.Loading)
	assert.Empty(t, st.Items)
	var serr *SubscriptionError
	require.ErrorAs(t, st.Err, &serr)
	assert.Equal(t, store.Budgets, serr.Collection)

	// Other collections keep working.
	assert.Len(t, e.Categories.Items(), 12)
	assert.NoError(t, e.Transactions.Snapshot().Err)

	found := false
	for _, n := range b.Recent() {
		if n.Level == notify.LevelError && strings.Contains(n.Title, "budgets") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestSeedFailureNotifies(t *testing.T) {
	e, s, b := newEngine(t)
	s.SetFault(func(op, _ string) error {
		if op == "commit" {
			return errors.New("unavailable")
		}
		return nil
	})
	signIn(t, e, "alice")
	assert.Empty(t, e.Categories.Items())
	require.NotEmpty(t, b.Recent())
	assert.Equal(t, "Error setting up categories", b.Recent()[0].Title)
}

func TestWatchSession(t *testing.T) {
	e, s, _ := newEngine(t)
	sess := auth.NewSession()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = e.WatchSession(ctx, sess)
		close(done)
	}()

	require.NoError(t, sess.SignIn("alice"))
	require.Eventually(t, func() bool { return len(e.Categories.Items()) == 12 }, wait, tick)

	sess.SignOut()
	assert.Empty(t, e.Categories.Items())
	assert.Equal(t, 0, s.ActiveSubscriptions())

	require.NoError(t, sess.SignIn("bob"))
	cancel()
	<-done
	assert.Equal(t, "", e.Identity())
	assert.Equal(t, 0, s.ActiveSubscriptions())
}

func currentGen(e *Engine) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gen
}

func TestFailureFromStaleGenerationIsDropped(t *testing.T) {
	tests := []struct {
		name       string
		stale      bool
		wantNotify int
	}{
		{name: "current generation", stale: false, wantNotify: 1},
		{name: "previous identity", stale: true, wantNotify: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, b := newEngine(t)
			signIn(t, e, "alice")
			gen := currentGen(e)
			if tt.stale {
				signIn(t, e, "bob")
			}
			before := len(b.Recent())

			failCollection(e, gen, e.Budgets, store.Budgets, errors.New("permission denied"))

			assert.Len(t, b.Recent(), before+tt.wantNotify)
			if tt.stale {
				assert.NoError(t, e.Budgets.Snapshot().Err)
			} else {
				assert.Error(t, e.Budgets.Snapshot().Err)
			}
		})
	}
}

func TestWelcomeOnlyWhenDefaultsAreSeeded(t *testing.T) {
	welcomes := func(b *notify.Broadcaster) int {
		n := 0
		for _, x := range b.Recent() {
			if x.Level == notify.LevelInfo && x.Title == "Welcome!" {
				assert.Equal(t, "Default categories have been set up.", x.Description)
				n++
			}
		}
		return n
	}
	tests := []struct {
		name    string
		preseed bool
		want    int
	}{
		{name: "fresh identity", want: 1},
		{name: "categories already stored", preseed: true, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, s, b := newEngine(t)
			if tt.preseed {
				path := store.CollectionPath("alice", store.Categories)
				for _, c := range core.DefaultCategories() {
					id := c.ID
					c.ID = ""
					require.NoError(t, s.Set(context.Background(), path, id, c))
				}
			}
			signIn(t, e, "alice")
			assert.Equal(t, tt.want, welcomes(b))

			require.NoError(t, e.SetIdentity(context.Background(), ""))
			signIn(t, e, "alice")
			assert.Equal(t, tt.want, welcomes(b), "second sign-in finds the stored defaults")
		})
	}
}
