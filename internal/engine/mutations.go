package engine

import (
	"context"
	"encoding/json"
	"strings"

	"spendwise/internal/core"
	"spendwise/internal/notify"
	"spendwise/internal/store"
)

// All mutations are two-phase. They return once the store accepted or
// refused the write; the collections change only when the matching
// snapshot arrives. Validation failures never reach the store. Nothing is
// retried.

func (e *Engine) pathFor(kind store.Kind) (string, error) {
	id := e.Identity()
	if id == "" {
		return "", validation(ErrNotSignedIn, "You must be signed in.")
	}
	return store.CollectionPath(id, kind), nil
}

// fields converts a document body into an update field map.
func fields(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	delete(m, "id")
	return m, nil
}

// remoteFailure logs and notifies a failed store call.
func (e *Engine) remoteFailure(ctx context.Context, op string, err error, title string) (Submission, error) {
	e.logger.ErrorContext(ctx, "Store write failed", "operation", op, "error", err)
	e.notifier.Notify(ctx, notify.Error(title, err.Error()))
	return failed(remote(op, err, title))
}

func (e *Engine) succeeded(ctx context.Context, title, desc string) {
	e.notifier.Notify(ctx, notify.Info(title, desc))
}

// AddTransaction stores a new transaction under a store-assigned id.
func (e *Engine) AddTransaction(ctx context.Context, tx core.Transaction) (Submission, error) {
	path, err := e.pathFor(store.Transactions)
	if err != nil {
		return failed(err)
	}
	tx = tx.Normalize()
	if err := tx.Validate(); err != nil {
		return failed(validation(err, err.Error()))
	}
	tx.ID = ""
	id, err := e.store.Add(ctx, path, tx)
	if err != nil {
		return e.remoteFailure(ctx, "add transaction", err, "Error adding transaction")
	}
	e.succeeded(ctx, "Transaction added", tx.Description)
	return submitted(id)
}

func (e *Engine) UpdateTransaction(ctx context.Context, tx core.Transaction) (Submission, error) {
	path, err := e.pathFor(store.Transactions)
	if err != nil {
		return failed(err)
	}
	if strings.TrimSpace(tx.ID) == "" {
		return failed(validation(ErrMissingID, "Transaction id is required."))
	}
	tx = tx.Normalize()
	if err := tx.Validate(); err != nil {
		return failed(validation(err, err.Error()))
	}
	f, err := fields(tx)
	if err != nil {
		return failed(validation(err, "Invalid transaction."))
	}
	if err := e.store.Update(ctx, path, tx.ID, f); err != nil {
		return e.remoteFailure(ctx, "update transaction", err, "Error updating transaction")
	}
	e.succeeded(ctx, "Transaction updated", tx.Description)
	return submitted(tx.ID)
}

func (e *Engine) DeleteTransaction(ctx context.Context, id string) (Submission, error) {
	path, err := e.pathFor(store.Transactions)
	if err != nil {
		return failed(err)
	}
	if strings.TrimSpace(id) == "" {
		return failed(validation(ErrMissingID, "Transaction id is required."))
	}
	if err := e.store.Delete(ctx, path, id); err != nil {
		return e.remoteFailure(ctx, "delete transaction", err, "Error deleting transaction")
	}
	e.succeeded(ctx, "Transaction deleted", "")
	return submitted(id)
}

// nameTaken checks the local categories for a case-insensitive name clash,
// ignoring the category with id self.
func (e *Engine) nameTaken(name, self string) bool {
	for _, c := range e.Categories.Items() {
		if c.ID != self && core.SameName(c.Name, name) {
			return true
		}
	}
	return false
}

func (e *Engine) AddCategory(ctx context.Context, c core.Category) (Submission, error) {
	path, err := e.pathFor(store.Categories)
	if err != nil {
		return failed(err)
	}
	c = c.Normalize()
	if err := c.Validate(); err != nil {
		return failed(validation(err, err.Error()))
	}
	if e.nameTaken(c.Name, "") {
		return failed(validation(ErrDuplicateCategory, `A category named "`+c.Name+`" already exists.`))
	}
	c.ID = ""
	id, err := e.store.Add(ctx, path, c)
	if err != nil {
		return e.remoteFailure(ctx, "add category", err, "Error adding category")
	}
	e.succeeded(ctx, "Category added", c.Name)
	return submitted(id)
}

// UpdateCategory edits a category. Edits to a default category's name,
// icon or color are reverted by the next reconciliation.
func (e *Engine) UpdateCategory(ctx context.Context, c core.Category) (Submission, error) {
	path, err := e.pathFor(store.Categories)
	if err != nil {
		return failed(err)
	}
	if strings.TrimSpace(c.ID) == "" {
		return failed(validation(ErrMissingID, "Category id is required."))
	}
	c = c.Normalize()
	if err := c.Validate(); err != nil {
		return failed(validation(err, err.Error()))
	}
	if e.nameTaken(c.Name, c.ID) {
		return failed(validation(ErrDuplicateCategory, `Another category named "`+c.Name+`" already exists.`))
	}
	f, err := fields(c)
	if err != nil {
		return failed(validation(err, "Invalid category."))
	}
	if err := e.store.Update(ctx, path, c.ID, f); err != nil {
		return e.remoteFailure(ctx, "update category", err, "Error updating category")
	}
	e.succeeded(ctx, "Category updated", c.Name)
	return submitted(c.ID)
}

// DeleteCategory refuses defaults and any category still referenced. The
// reference check queries the store, not the local collections.
func (e *Engine) DeleteCategory(ctx context.Context, id string) (Submission, error) {
	path, err := e.pathFor(store.Categories)
	if err != nil {
		return failed(err)
	}
	if strings.TrimSpace(id) == "" {
		return failed(validation(ErrMissingID, "Category id is required."))
	}
	if core.IsDefaultCategory(id) {
		return failed(validation(ErrDefaultCategory, "Default categories cannot be deleted."))
	}

	identity, _, _ := store.SplitPath(path)
	for _, kind := range []store.Kind{store.Transactions, store.Budgets} {
		q := store.Where(store.CollectionPath(identity, kind), "categoryId", id)
		q.Limit = 1
		refs, err := e.store.Query(ctx, q)
		if err != nil {
			return e.remoteFailure(ctx, "check category references", err, "Error deleting category")
		}
		if len(refs) > 0 {
			return failed(validation(ErrCategoryInUse,
				"Cannot delete a category that is used by "+string(kind)+"."))
		}
	}

	if err := e.store.Delete(ctx, path, id); err != nil {
		return e.remoteFailure(ctx, "delete category", err, "Error deleting category")
	}
	e.succeeded(ctx, "Category deleted", "")
	return submitted(id)
}

// budgetTaken checks the local budgets for another budget on the same
// category and period.
func (e *Engine) budgetTaken(b core.Budget) bool {
	for _, x := range e.Budgets.Items() {
		if x.ID != b.ID && x.CategoryID == b.CategoryID && x.Period == b.Period {
			return true
		}
	}
	return false
}

func (e *Engine) AddBudget(ctx context.Context, b core.Budget) (Submission, error) {
	path, err := e.pathFor(store.Budgets)
	if err != nil {
		return failed(err)
	}
	b.ID = ""
	if err := b.Validate(); err != nil {
		return failed(validation(err, err.Error()))
	}
	if e.budgetTaken(b) {
		return failed(validation(ErrDuplicateBudget, "A "+string(b.Period)+" budget for this category already exists."))
	}
	id, err := e.store.Add(ctx, path, b)
	if err != nil {
		return e.remoteFailure(ctx, "add budget", err, "Error adding budget")
	}
	e.succeeded(ctx, "Budget added", "")
	return submitted(id)
}

func (e *Engine) UpdateBudget(ctx context.Context, b core.Budget) (Submission, error) {
	path, err := e.pathFor(store.Budgets)
	if err != nil {
		return failed(err)
	}
	if strings.TrimSpace(b.ID) == "" {
		return failed(validation(ErrMissingID, "Budget id is required."))
	}
	if err := b.Validate(); err != nil {
		return failed(validation(err, err.Error()))
	}
	if e.budgetTaken(b) {
		return failed(validation(ErrDuplicateBudget, "A "+string(b.Period)+" budget for this category already exists."))
	}
	f, err := fields(b)
	if err != nil {
		return failed(validation(err, "Invalid budget."))
	}
	if err := e.store.Update(ctx, path, b.ID, f); err != nil {
		return e.remoteFailure(ctx, "update budget", err, "Error updating budget")
	}
	e.succeeded(ctx, "Budget updated", "")
	return submitted(b.ID)
}

func (e *Engine) DeleteBudget(ctx context.Context, id string) (Submission, error) {
	path, err := e.pathFor(store.Budgets)
	if err != nil {
		return failed(err)
	}
	if strings.TrimSpace(id) == "" {
		return failed(validation(ErrMissingID, "Budget id is required."))
	}
	if err := e.store.Delete(ctx, path, id); err != nil {
		return e.remoteFailure(ctx, "delete budget", err, "Error deleting budget")
	}
	e.succeeded(ctx, "Budget deleted", "")
	return submitted(id)
}
