// Package report derives totals, breakdowns and series from synced
// collections. Every function is pure and recomputed on demand.
package report

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"spendwise/internal/core"
)

const Uncategorized = "Uncategorized"

func Totals(txs []core.Transaction) core.Totals {
	var t core.Totals
	for _, tx := range txs {
		switch tx.Type {
		case core.Income:
			t.Income = t.Income.Add(tx.Amount)
		case core.Expense:
			t.Expenses = t.Expenses.Add(tx.Amount)
		}
	}
	t.Balance = t.Income.Sub(t.Expenses)
	return t
}

// MonthToDate returns the window from the start of now's month to now.
func MonthToDate(now time.Time) (time.Time, time.Time) {
	y, m, _ := now.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, now.Location()), now
}

func within(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}

// CategoryBreakdown sums expenses per category inside [from, to]. Only
// categories with a positive total are returned, in category order.
func CategoryBreakdown(txs []core.Transaction, cats []core.Category, from, to time.Time) []core.CategoryAmount {
	sums := map[string]core.Money{}
	for _, tx := range txs {
		if tx.Type != core.Expense || !within(tx.Date, from, to) {
			continue
		}
		sums[tx.CategoryID] = sums[tx.CategoryID].Add(tx.Amount)
	}

	var out []core.CategoryAmount
	for i, c := range cats {
		sum := sums[c.ID]
		if !sum.IsPositive() {
			continue
		}
		fill := c.Color
		if fill == "" {
			fill = core.FallbackChartColor(i)
		}
		out = append(out, core.CategoryAmount{CategoryID: c.ID, Name: c.Name, Amount: sum, Fill: fill})
	}
	return out
}

// MonthlySeries buckets expenses by calendar month for the n months ending
// with now's month, oldest first.
func MonthlySeries(txs []core.Transaction, now time.Time, n int) []core.MonthAmount {
	loc := now.Location()
	y, m, _ := now.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, loc)

	out := make([]core.MonthAmount, n)
	index := make(map[string]int, n)
	for i := 0; i < n; i++ {
		month := first.AddDate(0, i-n+1, 0)
		key := month.Format("2006-01")
		out[i] = core.MonthAmount{Key: key, Label: month.Format("Jan 06")}
		index[key] = i
	}
	for _, tx := range txs {
		if tx.Type != core.Expense {
			continue
		}
		if i, ok := index[tx.Date.In(loc).Format("2006-01")]; ok {
			out[i].Amount = out[i].Amount.Add(tx.Amount)
		}
	}
	return out
}

// Entry is a transaction with its category resolved for display.
type Entry struct {
	core.Transaction
	CategoryName string    `json:"categoryName"`
	CategoryIcon core.Icon `json:"categoryIcon"`
	// Resolved is false for dangling category references.
	Resolved bool `json:"resolved"`
}

// MarshalJSON flattens the transaction fields next to the category ones.
// It is needed because the embedded Transaction has its own encoder.
func (e Entry) MarshalJSON() ([]byte, error) {
	tx, err := json.Marshal(e.Transaction)
	if err != nil {
		return nil, err
	}
	extra, err := json.Marshal(struct {
		CategoryName string    `json:"categoryName"`
		CategoryIcon core.Icon `json:"categoryIcon"`
		Resolved     bool      `json:"resolved"`
	}{e.CategoryName, e.CategoryIcon, e.Resolved})
	if err != nil {
		return nil, err
	}
	out := append(tx[:len(tx)-1], ',')
	return append(out, extra[1:]...), nil
}

// Resolve joins transactions with their categories. Dangling references
// render as Uncategorized.
func Resolve(txs []core.Transaction, cats []core.Category) []Entry {
	byID := make(map[string]core.Category, len(cats))
	for _, c := range cats {
		byID[c.ID] = c
	}
	out := make([]Entry, len(txs))
	for i, tx := range txs {
		e := Entry{Transaction: tx, CategoryName: Uncategorized, CategoryIcon: core.FallbackIcon}
		if c, ok := byID[tx.CategoryID]; ok {
			e.CategoryName, e.CategoryIcon, e.Resolved = c.Name, c.Icon, true
		}
		out[i] = e
	}
	return out
}

// Recent returns the n latest transactions, newest first.
func Recent(txs []core.Transaction, cats []core.Category, n int) []Entry {
	sorted := append([]core.Transaction(nil), txs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.After(sorted[j].Date) })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return Resolve(sorted, cats)
}

// Utilization describes how much of a budget has been spent.
type Utilization struct {
	BudgetID     string            `json:"budgetId,omitempty"`
	CategoryID   string            `json:"categoryId,omitempty"`
	CategoryName string            `json:"categoryName,omitempty"`
	Period       core.BudgetPeriod `json:"period,omitempty"`
	Allocated    core.Money        `json:"allocated"`
	Spent        core.Money        `json:"spent"`
	Remaining    core.Money        `json:"remaining"`
	Overage      core.Money        `json:"overage"`
	Progress     float64           `json:"progress"`
	Exceeded     bool              `json:"exceeded"`
}

var hundred = decimal.NewFromInt(100)

// BudgetUtilization computes progress = clamp(spent/allocated*100, 0, 100)
// and flags spending above the allocation.
func BudgetUtilization(allocated, spent core.Money) Utilization {
	u := Utilization{Allocated: allocated, Spent: spent}
	u.Exceeded = spent.Cmp(allocated) > 0

	switch {
	case allocated.IsPositive():
		p := spent.Decimal().Div(allocated.Decimal()).Mul(hundred)
		u.Progress, _ = decimal.Max(decimal.Zero, decimal.Min(hundred, p)).Round(2).Float64()
	case spent.IsPositive():
		u.Progress = 100
	}

	if u.Exceeded {
		u.Overage = spent.Sub(allocated)
	} else {
		u.Remaining = allocated.Sub(spent)
	}
	return u
}

// periodWindow returns the window a budget period covers at now.
func periodWindow(p core.BudgetPeriod, now time.Time) (time.Time, time.Time) {
	y, m, _ := now.Date()
	loc := now.Location()
	if p == core.Yearly {
		return time.Date(y, 1, 1, 0, 0, 0, 0, loc), time.Date(y+1, 1, 1, 0, 0, 0, 0, loc).Add(-time.Nanosecond)
	}
	return time.Date(y, m, 1, 0, 0, 0, 0, loc), time.Date(y, m+1, 1, 0, 0, 0, 0, loc).Add(-time.Nanosecond)
}

// BudgetOverview computes utilization of every budget against its
// category's expenses in the current month or year.
func BudgetOverview(budgets []core.Budget, txs []core.Transaction, cats []core.Category, now time.Time) []Utilization {
	names := make(map[string]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	out := make([]Utilization, 0, len(budgets))
	for _, b := range budgets {
		from, to := periodWindow(b.Period, now)
		var spent core.Money
		for _, tx := range txs {
			if tx.Type == core.Expense && tx.CategoryID == b.CategoryID && within(tx.Date, from, to) {
				spent = spent.Add(tx.Amount)
			}
		}
		u := BudgetUtilization(b.Amount, spent)
		u.BudgetID, u.CategoryID, u.Period = b.ID, b.CategoryID, b.Period
		u.CategoryName = Uncategorized
		if n, ok := names[b.CategoryID]; ok {
			u.CategoryName = n
		}
		out = append(out, u)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CategoryName < out[j].CategoryName })
	return out
}

// Dashboard bundles the views shown on the overview page.
type Dashboard struct {
	Totals       core.Totals           `json:"totals"`
	Recent       []Entry               `json:"recent"`
	MonthToDate  []core.CategoryAmount `json:"monthToDate"`
	Monthly      []core.MonthAmount    `json:"monthly"`
	Budgets      []Utilization         `json:"budgets"`
	Transactions int                   `json:"transactionCount"`
}

const (
	RecentCount  = 5
	SeriesMonths = 6
)

func BuildDashboard(txs []core.Transaction, cats []core.Category, budgets []core.Budget, now time.Time) Dashboard {
	from, to := MonthToDate(now)
	return Dashboard{
		Totals:       Totals(txs),
		Recent:       Recent(txs, cats, RecentCount),
		MonthToDate:  CategoryBreakdown(txs, cats, from, to),
		Monthly:      MonthlySeries(txs, now, SeriesMonths),
		Budgets:      BudgetOverview(budgets, txs, cats, now),
		Transactions: len(txs),
	}
}
