// Package gsheets stores sheets in a Google Sheets spreadsheet, the backend
// the venue keeps its stock and sales in.
package gsheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"buffet/pkg/storage"
)

// valueInput makes written cells parse as if typed into the sheet.
const valueInput = "USER_ENTERED"

// lastColumn bounds the ranges read; no sheet the venue uses is wider.
const lastColumn = "Z"

// Store implements storage.Store over the Sheets values API. Data rows start
// after headerRows header rows.
type Store struct {
	svc           *sheets.Service
	spreadsheetID string
	headerRows    int
}

// New connects to spreadsheetID. Pass option.WithCredentialsFile for a
// service account, or nothing to use application default credentials.
func New(ctx context.Context, spreadsheetID string, opts ...option.ClientOption) (*Store, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}
	return &Store{svc: svc, spreadsheetID: spreadsheetID, headerRows: 1}, nil
}

// CredentialsOption returns the client option for a service account key
// file, or nil options when path is empty.
func CredentialsOption(path string) []option.ClientOption {
	if path == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(path)}
}

// a1 renders sheet!A<row>[:Z<end>]. Sheet names are quoted so spaces survive.
func a1(sheet string, row int, end string) string {
	ref := fmt.Sprintf("'%s'!A%d", strings.ReplaceAll(sheet, "'", "''"), row)
	if end != "" {
		ref += ":" + end
	}
	return ref
}

// sheetRow converts a zero-based data row index to the 1-based sheet row number.
func (s *Store) sheetRow(index int) int {
	return index + s.headerRows + 1
}

func (s *Store) Rows(ctx context.Context, sheet string) ([][]string, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, a1(sheet, s.sheetRow(0), lastColumn)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sheet, err)
	}
	rows := make([][]string, len(resp.Values))
	for i, values := range resp.Values {
		rows[i] = toCells(values)
	}
	return rows, nil
}

// Row reads the sheet and picks one row; the values API cannot tell an empty row from a missing one.
func (s *Store) Row(ctx context.Context, sheet string, index int) ([]string, error) {
	rows, err := s.Rows(ctx, sheet)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(rows) {
		return nil, fmt.Errorf("%w: %s[%d]", storage.ErrRowNotFound, sheet, index)
	}
	return rows[index], nil
}

func (s *Store) SetRow(ctx context.Context, sheet string, index int, cells []string) error {
	if index < 0 {
		return fmt.Errorf("%w: %s[%d]", storage.ErrRowNotFound, sheet, index)
	}
	body := &sheets.ValueRange{Values: [][]interface{}{toValues(cells)}}
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, a1(sheet, s.sheetRow(index), ""), body).
		ValueInputOption(valueInput).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write %s[%d]: %w", sheet, index, err)
	}
	return nil
}

func (s *Store) AppendRow(ctx context.Context, sheet string, cells []string) (int, error) {
	body := &sheets.ValueRange{Values: [][]interface{}{toValues(cells)}}
	resp, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, a1(sheet, 1, lastColumn), body).
		ValueInputOption(valueInput).InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("append %s: %w", sheet, err)
	}
	if resp.Updates == nil {
		return 0, fmt.Errorf("append %s: response has no updated range", sheet)
	}
	row, err := firstRow(resp.Updates.UpdatedRange)
	if err != nil {
		return 0, fmt.Errorf("append %s: %w", sheet, err)
	}
	return row - s.headerRows - 1, nil
}

// firstRow extracts 5 from "'Ventas'!A5:E5".
func firstRow(updated string) (int, error) {
	ref := updated[strings.LastIndex(updated, "!")+1:]
	if i := strings.IndexByte(ref, ':'); i >= 0 {
		ref = ref[:i]
	}
	digits := strings.TrimLeft(ref, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("unexpected range %q", updated)
	}
	return n, nil
}

func toCells(values []interface{}) []string {
	cells := make([]string, len(values))
	for i, v := range values {
		cells[i] = fmt.Sprint(v)
	}
	return cells
}

func toValues(cells []string) []interface{} {
	values := make([]interface{}, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	return values
}
