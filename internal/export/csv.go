package export

import (
	"bufio"
	"io"
	"strings"

	"spendwise/internal/core"
)

const crlf = "\r\n"

// quote always wraps the field in double quotes, doubling inner quotes.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// WriteCSV writes the header, one fully quoted line per transaction, a
// blank line and the totals line. Lines end with CRLF; the last line has
// no terminator.
func WriteCSV(w io.Writer, txs []core.Transaction, cats []core.Category) error {
	t, err := BuildTable(txs, cats)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	bw.WriteString(strings.Join(Headers, ","))
	for _, r := range t.Rows {
		fields := r.Fields()
		for i, f := range fields {
			fields[i] = quote(f)
		}
		bw.WriteString(crlf)
		bw.WriteString(strings.Join(fields, ","))
	}
	bw.WriteString(crlf)
	bw.WriteString(crlf)
	bw.WriteString(strings.Join([]string{"", "", "Total", t.Total.String(), "", ""}, ","))
	return bw.Flush()
}
