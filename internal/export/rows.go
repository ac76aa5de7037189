// Package export renders a transaction list as CSV, PDF or a spreadsheet.
// All formats share the same columns and a totals row.
package export

import (
	"errors"
	"strconv"
	"time"

	"spendwise/internal/core"
)

var Headers = []string{"S.No", "Date", "Description", "Amount", "Type", "Category Name"}

const (
	missingCategory = "N/A"
	dateLayout      = "2006-01-02"
)

var ErrNoTransactions = errors.New("there are no transactions to export")

// Row is one exported transaction.
type Row struct {
	SNo          int
	Date         string
	Description  string
	Amount       string
	Type         string
	CategoryName string
}

func (r Row) Fields() []string {
	return []string{strconv.Itoa(r.SNo), r.Date, r.Description, r.Amount, r.Type, r.CategoryName}
}

// Table is the export body plus the sum of every amount.
type Table struct {
	Rows  []Row
	Total core.Money
}

// BuildTable numbers transactions in the given order and resolves their
// categories. Dangling references render as N/A.
func BuildTable(txs []core.Transaction, cats []core.Category) (Table, error) {
	if len(txs) == 0 {
		return Table{}, ErrNoTransactions
	}
	names := make(map[string]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}

	t := Table{Rows: make([]Row, len(txs))}
	for i, tx := range txs {
		name, ok := names[tx.CategoryID]
		if !ok || name == "" {
			name = missingCategory
		}
		t.Rows[i] = Row{
			SNo:          i + 1,
			Date:         tx.Date.Format(dateLayout),
			Description:  tx.Description,
			Amount:       tx.Amount.String(),
			Type:         string(tx.Type),
			CategoryName: name,
		}
		t.Total = t.Total.Add(tx.Amount)
	}
	return t, nil
}

// FileName returns the download name for an export made at now.
func FileName(ext string, now time.Time) string {
	return "spendwise_transactions_" + now.Format(dateLayout) + "." + ext
}
