// Package storage defines the tabular store the ledger is kept in. A store
// holds named sheets of string rows and offers row-level reads, overwrites and
// appends. It has no transactions and no compare-and-swap; callers that need
// atomicity across rows must provide it themselves.
package storage

import (
	"context"
	"errors"
)

// ErrRowNotFound is returned when an index does not address an existing data row.
var ErrRowNotFound = errors.New("row not found")

// Store is implemented by memorystore, sqlstore and gsheets.
//
// Row indexes are zero-based positions among the data rows of a sheet; a
// header row, if the backend has one, is not addressable. A sheet that has
// never been written reads as empty.
type Store interface {
	Rows(ctx context.Context, sheet string) ([][]string, error)
	Row(ctx context.Context, sheet string, index int) ([]string, error)
	SetRow(ctx context.Context, sheet string, index int, cells []string) error
	// AppendRow adds cells after the last row and returns the new row's index.
	AppendRow(ctx context.Context, sheet string, cells []string) (int, error)
}

// CloneRow copies cells so callers never alias a store's internal slices.
func CloneRow(cells []string) []string {
	out := make([]string, len(cells))
	copy(out, cells)
	return out
}

// CloneRows deep-copies a sheet.
func CloneRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = CloneRow(row)
	}
	return out
}
