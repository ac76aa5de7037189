package export

import (
	"context"
	"time"

	"spendwise/internal/core"
	"spendwise/internal/sheets"
)

// SheetRows lays the table out the way the CSV does, as spreadsheet values.
func SheetRows(t Table) [][]any {
	rows := make([][]any, 0, len(t.Rows)+3)
	header := make([]any, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	rows = append(rows, header)
	for _, r := range t.Rows {
		rows = append(rows, []any{r.SNo, r.Date, r.Description, r.Amount, r.Type, r.CategoryName})
	}
	rows = append(rows, []any{}, []any{"", "", "Total", t.Total.String(), "", ""})
	return rows
}

// ToSheet writes the export to a sheet named after the export date.
func ToSheet(ctx context.Context, w sheets.RowWriter, txs []core.Transaction, cats []core.Category, now time.Time) (string, error) {
	t, err := BuildTable(txs, cats)
	if err != nil {
		return "", err
	}
	return w.WriteRows(ctx, "Transactions "+now.Format(dateLayout), SheetRows(t))
}
