package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buffet/pkg/storage"
	"buffet/pkg/storage/memorystore"
)

func seededLedger(t *testing.T, opts ...LedgerOption) (*Ledger, *memorystore.Store) {
	t.Helper()
	store, err := memorystore.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.Replace(context.Background(), DefaultStockSheet, [][]string{
		{"Empanada", "5", "0", "2", "$1.500", "10", "$15.000,00", "Comida"},
		{"Alfajor", "3", "1", "", "$800,50", "", "", "Dulces"},
		{"", "9", "9", "9", "$1", "0", "$0,00", "?"},
	}))
	return NewLedger(store, append([]LedgerOption{WithRetry(3, time.Millisecond)}, opts...)...), store
}

func TestReadCatalogDecodesRows(t *testing.T) {
	ledger, _ := seededLedger(t)

	products, err := ledger.ReadCatalog(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2, "row without a name is skipped")

	empanada := products[0]
	assert.Equal(t, "Empanada", empanada.Name)
	assert.Equal(t, 0, empanada.Row)
	assert.Equal(t, map[Space]int{1: 5, 2: 0, 3: 2}, empanada.StockBySpace)
	assert.True(t, empanada.Price.Equal(decimal.NewFromInt(1500)))
	assert.Equal(t, 10, empanada.UnitsSold)
	assert.Equal(t, "Comida", empanada.Category)

	alfajor := products[1]
	assert.Equal(t, 0, alfajor.StockIn(3))
	assert.Equal(t, 0, alfajor.UnitsSold)
	assert.True(t, alfajor.Earned.IsZero())
}

func TestFindProductStripsQuantityPrefix(t *testing.T) {
	ledger, _ := seededLedger(t)
	ctx := context.Background()

	p, err := ledger.FindProduct(ctx, "(2) Alfajor")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Row)

	_, err = ledger.FindProduct(ctx, "Medialuna")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestApplyStockDeltaUpdatesRow(t *testing.T) {
	ledger, store := seededLedger(t)
	ctx := context.Background()
	p, err := ledger.FindProduct(ctx, "Empanada")
	require.NoError(t, err)

	change, err := ledger.ApplyStockDelta(ctx, p, 1, 2, p.Price)
	require.NoError(t, err)
	assert.Equal(t, "5", change.Previous[1])

	row, err := store.Row(ctx, DefaultStockSheet, 0)
	require.NoError(t, err)
	assert.Equal(t, "3", row[1])
	assert.Equal(t, "12", row[5])
	assert.Equal(t, "$18.000,00", row[6])
	assert.Equal(t, "Comida", row[7])
}

func TestApplyStockDeltaInsufficientWritesNothing(t *testing.T) {
	ledger, store := seededLedger(t)
	ctx := context.Background()
	p, err := ledger.FindProduct(ctx, "Empanada")
	require.NoError(t, err)

	before, err := store.Row(ctx, DefaultStockSheet, 0)
	require.NoError(t, err)

	_, err = ledger.ApplyStockDelta(ctx, p, 2, 1, p.Price)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	after, err := store.Row(ctx, DefaultStockSheet, 0)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestApplyStockDeltaRejectsUnknownSpace(t *testing.T) {
	ledger, _ := seededLedger(t)
	p, err := ledger.FindProduct(context.Background(), "Empanada")
	require.NoError(t, err)

	_, err = ledger.ApplyStockDelta(context.Background(), p, 7, 1, p.Price)
	assert.ErrorIs(t, err, ErrUnknownSpace)
}

func TestRestorePutsPreviousRowBack(t *testing.T) {
	ledger, store := seededLedger(t)
	ctx := context.Background()
	p, err := ledger.FindProduct(ctx, "Alfajor")
	require.NoError(t, err)

	change, err := ledger.ApplyStockDelta(ctx, p, 1, 3, p.Price)
	require.NoError(t, err)
	require.NoError(t, ledger.Restore(ctx, change))

	row, err := store.Row(ctx, DefaultStockSheet, 1)
	require.NoError(t, err)
	assert.Equal(t, change.Previous, row)
}

func TestAppendOrderAssignsIncreasingIDs(t *testing.T) {
	ledger, store := seededLedger(t)
	ctx := context.Background()

	first, err := ledger.AppendOrder(ctx, Sale{Description: "(1) Empanada", Total: decimal.NewFromInt(1500), Space: ledger.SpaceLabel(1)})
	require.NoError(t, err)
	second, err := ledger.AppendOrder(ctx, Sale{Description: "(2) Alfajor", Total: decimal.RequireFromString("1601"), Space: ledger.SpaceLabel(2)})
	require.NoError(t, err)
	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)

	rows, err := store.Rows(ctx, DefaultSalesSheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "(2) Alfajor", "$1.601,00", "Espacio 2", "FALSE"}, rows[1])

	sales, err := ledger.ReadOrders(ctx)
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.Equal(t, "$1.500,00", sales[0].TotalText)
	assert.False(t, sales[0].Delivered)
}

type flakyStore struct {
	storage.Store
	failures int
	calls    int
}

func (f *flakyStore) Rows(ctx context.Context, sheet string) ([][]string, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("quota exceeded")
	}
	return f.Store.Rows(ctx, sheet)
}

func TestReadCatalogRetriesTransientFailures(t *testing.T) {
	_, store := seededLedger(t)
	flaky := &flakyStore{Store: store, failures: 2}
	ledger := NewLedger(flaky, WithRetry(3, time.Millisecond))

	products, err := ledger.ReadCatalog(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 2)
	assert.Equal(t, 3, flaky.calls)
}

func TestReadCatalogGivesUpAfterBoundedAttempts(t *testing.T) {
	_, store := seededLedger(t)
	flaky := &flakyStore{Store: store, failures: 10}
	ledger := NewLedger(flaky, WithRetry(3, time.Millisecond))

	_, err := ledger.ReadCatalog(context.Background())
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
	assert.Equal(t, 3, flaky.calls)
}

// trimmingStore reads rows without their trailing blank cells and merges
// SetRow over the existing row, as spreadsheet backends do.
type trimmingStore struct {
	storage.Store
}

func trimBlanks(row []string) []string {
	end := len(row)
	for end > 0 && row[end-1] == "" {
		end--
	}
	return row[:end]
}

func (s trimmingStore) Rows(ctx context.Context, sheet string) ([][]string, error) {
	rows, err := s.Store.Rows(ctx, sheet)
	for i := range rows {
		rows[i] = trimBlanks(rows[i])
	}
	return rows, err
}

func (s trimmingStore) Row(ctx context.Context, sheet string, index int) ([]string, error) {
	row, err := s.Store.Row(ctx, sheet, index)
	return trimBlanks(row), err
}

func (s trimmingStore) SetRow(ctx context.Context, sheet string, index int, cells []string) error {
	merged, err := s.Store.Row(ctx, sheet, index)
	if err != nil {
		return err
	}
	for i, c := range cells {
		if i >= len(merged) {
			merged = append(merged, "")
		}
		merged[i] = c
	}
	return s.Store.SetRow(ctx, sheet, index, merged)
}

func TestRestoreClearsCellsTheDeltaFilled(t *testing.T) {
	mem, err := memorystore.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { mem.Close() })
	ctx := context.Background()
	require.NoError(t, mem.Replace(ctx, DefaultStockSheet, [][]string{{"Empanada", "5", "5", "5", "$1.500"}}))
	ledger := NewLedger(trimmingStore{Store: mem}, WithRetry(1, 0))

	p, err := ledger.FindProduct(ctx, "Empanada")
	require.NoError(t, err)
	change, err := ledger.ApplyStockDelta(ctx, p, 1, 2, p.Price)
	require.NoError(t, err)
	assert.Len(t, change.Previous, len(change.Updated))

	require.NoError(t, ledger.Restore(ctx, change))
	row, err := ledger.store.Row(ctx, DefaultStockSheet, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Empanada", "5", "5", "5", "$1.500"}, row)

	restored, err := ledger.FindProduct(ctx, "Empanada")
	require.NoError(t, err)
	assert.Equal(t, 0, restored.UnitsSold)
	assert.True(t, restored.Earned.IsZero())
}
