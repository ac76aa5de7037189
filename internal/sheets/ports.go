// Package sheets defines the outbound port for pushing tabular exports to
// a spreadsheet service.
package sheets

import "context"

// RowWriter replaces the contents of a named sheet with rows and returns a
// reference to the written range.
type RowWriter interface {
	WriteRows(ctx context.Context, sheet string, rows [][]any) (ref string, err error)
}
