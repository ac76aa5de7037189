package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendwise/internal/core"
	"spendwise/internal/notify"
	"spendwise/internal/store"
)

func coffee() core.Transaction {
	return core.Transaction{
		Date:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Description: "Coffee",
		Amount:      core.MustParseMoney("4.50"),
		CategoryID:  "food",
		Type:        core.Expense,
	}
}

func TestMutationsRequireIdentity(t *testing.T) {
	e, s, _ := newEngine(t)
	sub, err := e.AddTransaction(context.Background(), coffee())
	assert.ErrorIs(t, err, ErrNotSignedIn)
	assert.True(t, IsValidation(err))
	assert.Equal(t, Failed, sub.Status)
	assert.Equal(t, 0, s.WriteCount())
}

func TestAddTransactionIsTwoPhase(t *testing.T) {
	e, _, _ := newEngine(t)
	ctx := context.Background()
	signIn(t, e, "alice")

	older := coffee()
	older.Description = "Lunch"
	older.Date = older.Date.AddDate(0, 0, -3)
	_, err := e.AddTransaction(ctx, older)
	require.NoError(t, err)

	sub, err := e.AddTransaction(ctx, coffee())
	require.NoError(t, err)
	assert.Equal(t, Submitted, sub.Status)
	assert.NotEmpty(t, sub.ID)

	require.Eventually(t, func() bool { return len(e.Transactions.Items()) == 2 }, wait, tick)
	txs := e.Transactions.Items()
	assert.Equal(t, sub.ID, txs[0].ID, "most recent first")
	assert.Equal(t, "Coffee", txs[0].Description)
	assert.Equal(t, "4.50", txs[0].Amount.String())
}

func TestAddTransactionValidation(t *testing.T) {
	e, s, _ := newEngine(t)
	signIn(t, e, "alice")
	before := s.WriteCount()

	bad := coffee()
	bad.Amount = core.Money{}
	sub, err := e.AddTransaction(context.Background(), bad)
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
	assert.True(t, IsValidation(err))
	assert.Equal(t, Failed, sub.Status)
	assert.Equal(t, before, s.WriteCount())
}

func TestRemoteFailureNotifiesAndLeavesStateAlone(t *testing.T) {
	e, s, b := newEngine(t)
	signIn(t, e, "alice")
	s.SetFault(func(op, _ string) error {
		if op == "add" {
			return errors.New("network down")
		}
		return nil
	})

	sub, err := e.AddTransaction(context.Background(), coffee())
	assert.True(t, IsRemote(err))
	assert.Equal(t, Failed, sub.Status)
	assert.Equal(t, "Error adding transaction", UserMessage(err))
	assert.Empty(t, e.Transactions.Items())

	recent := b.Recent()
	require.NotEmpty(t, recent)
	last := recent[len(recent)-1]
	assert.Equal(t, notify.LevelError, last.Level)
	assert.Equal(t, "network down", last.Description)
}

func TestUpdateAndDeleteTransaction(t *testing.T) {
	e, _, _ := newEngine(t)
	ctx := context.Background()
	signIn(t, e, "alice")

	sub, err := e.AddTransaction(ctx, coffee())
	require.NoError(t, err)

	_, err = e.UpdateTransaction(ctx, coffee())
	assert.ErrorIs(t, err, ErrMissingID)

	tx := coffee()
	tx.ID = sub.ID
	tx.Amount = core.MustParseMoney("5")
	_, err = e.UpdateTransaction(ctx, tx)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		items := e.Transactions.Items()
		return len(items) == 1 && items[0].Amount.String() == "5.00"
	}, wait, tick)

	missing := coffee()
	missing.ID = "nope"
	_, err = e.UpdateTransaction(ctx, missing)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.True(t, IsRemote(err))

	_, err = e.DeleteTransaction(ctx, sub.ID)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(e.Transactions.Items()) == 0 }, wait, tick)
}

func TestCategoryNamesStayUnique(t *testing.T) {
	e, _, _ := newEngine(t)
	ctx := context.Background()
	signIn(t, e, "alice")

	_, err := e.AddCategory(ctx, core.Category{Name: "  food "})
	assert.ErrorIs(t, err, ErrDuplicateCategory)

	sub, err := e.AddCategory(ctx, core.Category{Name: "Pets", Icon: "PawPrint"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(e.Categories.Items()) == 13 }, wait, tick)

	_, err = e.AddCategory(ctx, core.Category{Name: "PETS"})
	assert.ErrorIs(t, err, ErrDuplicateCategory)

	// Renaming to its own name in another case is allowed.
	_, err = e.UpdateCategory(ctx, core.Category{ID: sub.ID, Name: "pets", Icon: "PawPrint"})
	require.NoError(t, err)

	_, err = e.UpdateCategory(ctx, core.Category{ID: sub.ID, Name: "Housing"})
	assert.ErrorIs(t, err, ErrDuplicateCategory)

	require.Eventually(t, func() bool {
		cats := e.Categories.Items()
		return len(cats) == 13 && cats[12].Name == "pets"
	}, wait, tick)

	seen := map[string]bool{}
	for _, c := range e.Categories.Items() {
		key := c.Name
		for k := range seen {
			assert.False(t, core.SameName(k, key))
		}
		seen[key] = true
	}
}

func TestUnknownIconFallsBack(t *testing.T) {
	e, _, _ := newEngine(t)
	signIn(t, e, "alice")
	sub, err := e.AddCategory(context.Background(), core.Category{Name: "Misc", Icon: "Sparkles"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(e.Categories.Items()) == 13 }, wait, tick)
	for _, c := range e.Categories.Items() {
		if c.ID == sub.ID {
			assert.Equal(t, core.IconTags, c.Icon)
		}
	}
}

func TestDeleteDefaultCategoryIsRefused(t *testing.T) {
	e, s, _ := newEngine(t)
	signIn(t, e, "alice")
	before := s.WriteCount()

	for _, d := range core.DefaultCategories() {
		sub, err := e.DeleteCategory(context.Background(), d.ID)
		assert.ErrorIs(t, err, ErrDefaultCategory)
		assert.Equal(t, Failed, sub.Status)
	}
	assert.Equal(t, before, s.WriteCount())
	assert.Len(t, e.Categories.Items(), 12)
}

func TestDeleteReferencedCategoryIsRefused(t *testing.T) {
	e, _, _ := newEngine(t)
	ctx := context.Background()
	signIn(t, e, "alice")

	byTx, err := e.AddCategory(ctx, core.Category{Name: "Pets"})
	require.NoError(t, err)
	byBudget, err := e.AddCategory(ctx, core.Category{Name: "Travel"})
	require.NoError(t, err)
	free, err := e.AddCategory(ctx, core.Category{Name: "Spare"})
	require.NoError(t, err)

	tx := coffee()
	tx.CategoryID = byTx.ID
	_, err = e.AddTransaction(ctx, tx)
	require.NoError(t, err)
	_, err = e.AddBudget(ctx, core.Budget{CategoryID: byBudget.ID, Amount: core.MustParseMoney("100"), Period: core.Monthly})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(e.Categories.Items()) == 15 }, wait, tick)

	// The reference check reads the store, so it holds before snapshots land.
	_, err = e.DeleteCategory(ctx, byTx.ID)
	assert.ErrorIs(t, err, ErrCategoryInUse)
	_, err = e.DeleteCategory(ctx, byBudget.ID)
	assert.ErrorIs(t, err, ErrCategoryInUse)
	assert.True(t, IsValidation(err))

	_, err = e.DeleteCategory(ctx, free.ID)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(e.Categories.Items()) == 14 }, wait, tick)
}

func TestDeleteCategoryReferenceQueryFailure(t *testing.T) {
	e, s, _ := newEngine(t)
	ctx := context.Background()
	signIn(t, e, "alice")
	s.SetFault(func(op, _ string) error {
		if op == "query" {
			return errors.New("timeout")
		}
		return nil
	})
	_, err := e.DeleteCategory(ctx, "custom")
	assert.True(t, IsRemote(err))
}

func TestBudgetPairsStayUnique(t *testing.T) {
	e, _, _ := newEngine(t)
	ctx := context.Background()
	signIn(t, e, "alice")

	monthly := core.Budget{CategoryID: "food", Amount: core.MustParseMoney("500"), Period: core.Monthly}
	sub, err := e.AddBudget(ctx, monthly)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(e.Budgets.Items()) == 1 }, wait, tick)

	_, err = e.AddBudget(ctx, monthly)
	assert.ErrorIs(t, err, ErrDuplicateBudget)

	yearly := monthly
	yearly.Period = core.Yearly
	ySub, err := e.AddBudget(ctx, yearly)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(e.Budgets.Items()) == 2 }, wait, tick)

	// Moving the yearly budget onto the monthly pair is refused.
	yearly.ID = ySub.ID
	yearly.Period = core.Monthly
	_, err = e.UpdateBudget(ctx, yearly)
	assert.ErrorIs(t, err, ErrDuplicateBudget)

	monthly.ID = sub.ID
	monthly.Amount = core.MustParseMoney("650")
	_, err = e.UpdateBudget(ctx, monthly)
	require.NoError(t, err)

	_, err = e.DeleteBudget(ctx, ySub.ID)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		items := e.Budgets.Items()
		return len(items) == 1 && items[0].Amount.String() == "650.00"
	}, wait, tick)
}
