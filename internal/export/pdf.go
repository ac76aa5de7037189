package export

import (
	"io"
	"time"

	"github.com/go-pdf/fpdf"

	"spendwise/internal/core"
)

var columnWidths = []float64{14, 26, 62, 24, 20, 44}

// WritePDF renders the transactions as a grid table followed by a bold
// totals row.
func WritePDF(w io.Writer, txs []core.Transaction, cats []core.Category, now time.Time) error {
	t, err := BuildTable(txs, cats)
	if err != nil {
		return err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(core.AppName+" transactions", false)
	pdf.SetCreationDate(now)
	pdf.SetMargins(10, 20, 10)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	header := func() {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(41, 128, 185)
		pdf.SetTextColor(255, 255, 255)
		for i, h := range Headers {
			pdf.CellFormat(columnWidths[i], 8, h, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Helvetica", "", 10)
	}
	pdf.SetHeaderFunc(func() {
		if pdf.PageNo() > 1 {
			header()
		}
	})

	header()
	for _, r := range t.Rows {
		for i, f := range r.Fields() {
			align := "L"
			if i == 0 || i == 3 {
				align = "R"
			}
			pdf.CellFormat(columnWidths[i], 7, truncate(pdf, tr(f), columnWidths[i]-2), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(5)
	pdf.SetFont("Helvetica", "B", 10)
	totals := []string{"", "", "Total Expenses", t.Total.String(), "", ""}
	for i, f := range totals {
		align := "L"
		if i == 3 {
			align = "R"
		}
		pdf.CellFormat(columnWidths[i], 8, f, "", 0, align, false, 0, "")
	}
	pdf.Ln(-1)

	return pdf.Output(w)
}

// truncate shortens s with an ellipsis so it fits in width.
func truncate(pdf *fpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+"...") > width {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}
