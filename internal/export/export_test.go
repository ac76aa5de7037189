package export

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendwise/internal/core"
)

func fixtures() ([]core.Transaction, []core.Category) {
	cats := []core.Category{{ID: "food", Name: "Food"}}
	txs := []core.Transaction{
		{Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Description: `Coffee "large", to go`, Amount: core.MustParseMoney("4.50"), Type: core.Expense, CategoryID: "food"},
		{Date: time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC), Description: "Salary", Amount: core.MustParseMoney("1000"), Type: core.Income, CategoryID: "gone"},
	}
	return txs, cats
}

func TestWriteCSV(t *testing.T) {
	txs, cats := fixtures()
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, txs, cats))

	want := strings.Join([]string{
		`S.No,Date,Description,Amount,Type,Category Name`,
		`"1","2024-03-01","Coffee ""large"", to go","4.50","expense","Food"`,
		`"2","2024-02-28","Salary","1000.00","income","N/A"`,
		``,
		`,,Total,1004.50,,`,
	}, "\r\n")
	assert.Equal(t, want, buf.String())
}

func TestEmptyExportsFail(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, WriteCSV(&buf, nil, nil), ErrNoTransactions)
	assert.ErrorIs(t, WritePDF(&buf, nil, nil, time.Now()), ErrNoTransactions)
	assert.Zero(t, buf.Len())
}

func TestWritePDF(t *testing.T) {
	txs, cats := fixtures()
	for i := 0; i < 80; i++ {
		txs = append(txs, txs[0])
	}
	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, txs, cats, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestFileName(t *testing.T) {
	now := time.Date(2024, 3, 2, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "spendwise_transactions_2024-03-02.csv", FileName("csv", now))
	assert.Equal(t, "spendwise_transactions_2024-03-02.pdf", FileName("pdf", now))
}

type fakeWriter struct {
	sheet string
	rows  [][]any
}

func (f *fakeWriter) WriteRows(_ context.Context, sheet string, rows [][]any) (string, error) {
	f.sheet, f.rows = sheet, rows
	return sheet + "!A1", nil
}

func TestToSheet(t *testing.T) {
	txs, cats := fixtures()
	w := &fakeWriter{}
	ref, err := ToSheet(context.Background(), w, txs, cats, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "Transactions 2024-03-02!A1", ref)
	require.Len(t, w.rows, 5)
	assert.Equal(t, "S.No", w.rows[0][0])
	assert.Equal(t, []any{2, "2024-02-28", "Salary", "1000.00", "income", "N/A"}, w.rows[2])
	assert.Empty(t, w.rows[3])
	assert.Equal(t, "1004.50", w.rows[4][3])
}
