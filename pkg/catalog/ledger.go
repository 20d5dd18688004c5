package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"buffet/pkg/money"
	"buffet/pkg/storage"
)

// Default sheet names, as the venue's spreadsheet has them.
const (
	DefaultStockSheet = "Stock"
	DefaultSalesSheet = "Ventas"
)

// Sales ledger columns.
const (
	saleID = iota
	saleDescription
	salePrice
	saleSpace
	saleDelivered
	saleWidth
)

// Ledger reads and updates the stock and sales sheets of a tabular store.
// It performs single-row read-modify-write updates; it does not serialize
// callers, so concurrent writers must be kept apart by the caller.
type Ledger struct {
	store       storage.Store
	layout      Layout
	stockSheet  string
	salesSheet  string
	spacePrefix string
	attempts    int
	delay       time.Duration
	logger      *slog.Logger
}

// LedgerOption customizes NewLedger.
type LedgerOption func(*Ledger)

// WithLayout replaces DefaultLayout.
func WithLayout(layout Layout) LedgerOption {
	return func(l *Ledger) { l.layout = layout }
}

// WithSheets names the stock and sales sheets.
func WithSheets(stock, sales string) LedgerOption {
	return func(l *Ledger) {
		if stock != "" {
			l.stockSheet = stock
		}
		if sales != "" {
			l.salesSheet = sales
		}
	}
}

// WithSpacePrefix sets the word written before the space number in the sales ledger.
func WithSpacePrefix(prefix string) LedgerOption {
	return func(l *Ledger) { l.spacePrefix = prefix }
}

// WithRetry bounds catalog reads to attempts tries spaced by delay.
func WithRetry(attempts int, delay time.Duration) LedgerOption {
	return func(l *Ledger) {
		if attempts > 0 {
			l.attempts = attempts
		}
		if delay >= 0 {
			l.delay = delay
		}
	}
}

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(logger *slog.Logger) LedgerOption {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLedger wraps store.
func NewLedger(store storage.Store, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		store:       store,
		layout:      DefaultLayout(),
		stockSheet:  DefaultStockSheet,
		salesSheet:  DefaultSalesSheet,
		spacePrefix: "Espacio",
		attempts:    3,
		delay:       500 * time.Millisecond,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Layout returns the column layout in use.
func (l *Ledger) Layout() Layout { return l.layout }

// SpaceLabel renders space as the sales ledger writes it.
func (l *Ledger) SpaceLabel(space Space) string { return space.Label(l.spacePrefix) }

// ReadCatalog fetches every product row. Failed reads are retried with a
// fixed delay; when all attempts fail the error wraps ErrCatalogUnavailable.
// Rows that cannot be decoded are skipped and logged.
func (l *Ledger) ReadCatalog(ctx context.Context) ([]Product, error) {
	var (
		rows    [][]string
		lastErr error
	)
	for attempt := 1; attempt <= l.attempts; attempt++ {
		rows, lastErr = l.store.Rows(ctx, l.stockSheet)
		if lastErr == nil {
			break
		}
		l.logger.Warn("catalog read failed", "attempt", attempt, "max_attempts", l.attempts, "error", lastErr)
		if attempt == l.attempts {
			break
		}
		timer := time.NewTimer(l.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, ctx.Err())
		case <-timer.C:
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, lastErr)
	}

	products := make([]Product, 0, len(rows))
	for i, row := range rows {
		p, err := l.layout.Decode(i, row)
		if err != nil {
			l.logger.Warn("skipping catalog row", "row", i, "error", err)
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

// FindProduct reads the catalog and returns the product named name; the leading "(n) " annotation is ignored.
func (l *Ledger) FindProduct(ctx context.Context, name string) (Product, error) {
	products, err := l.ReadCatalog(ctx)
	if err != nil {
		return Product{}, err
	}
	name = NormalizeName(name)
	p, ok := Find(products, name)
	if !ok {
		return Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, name)
	}
	return p, nil
}

// StockChange records one applied delta so it can be undone. Previous is as
// wide as Updated; cells the store did not return are blank.
type StockChange struct {
	Product  string
	Row      int
	Previous []string
	Updated  []string
}

// ApplyStockDelta rereads the product's row and, when stock in space covers
// quantity, writes the lowered stock together with the raised units sold and
// money earned in one row update. When it does not, nothing is written and the
// error wraps ErrInsufficientStock. If the write itself fails, the returned
// change is still filled in because the store may have applied it.
func (l *Ledger) ApplyStockDelta(ctx context.Context, p Product, space Space, quantity int, unitPrice decimal.Decimal) (StockChange, error) {
	if !l.layout.HasSpace(space) {
		return StockChange{}, fmt.Errorf("%w: %d", ErrUnknownSpace, space)
	}
	if quantity < 1 {
		return StockChange{}, fmt.Errorf("quantity %d for %s must be positive", quantity, p.Name)
	}
	cells, err := l.store.Row(ctx, l.stockSheet, p.Row)
	if err != nil {
		return StockChange{}, fmt.Errorf("read %s: %w", p.Name, err)
	}
	current, err := l.layout.Decode(p.Row, cells)
	if err != nil {
		return StockChange{}, err
	}
	if current.Name != p.Name {
		return StockChange{}, fmt.Errorf("%w: %s is no longer at row %d", ErrProductNotFound, p.Name, p.Row)
	}

	newStock := current.StockIn(space) - quantity
	if newStock < 0 {
		return StockChange{}, fmt.Errorf("%w: %s has %d in space %d, %d requested",
			ErrInsufficientStock, p.Name, current.StockIn(space), space, quantity)
	}
	current.StockBySpace[space] = newStock
	current.UnitsSold += quantity
	current.Earned = current.Earned.Add(unitPrice.Mul(decimal.NewFromInt(int64(quantity))))

	updated := l.layout.Encode(current, cells)
	// Stores may trim trailing blank cells on read and only overwrite the
	// cells they are sent, so the prior row is padded to the written width.
	previous := make([]string, len(updated))
	copy(previous, cells)
	change := StockChange{Product: p.Name, Row: p.Row, Previous: previous, Updated: updated}
	if err := l.store.SetRow(ctx, l.stockSheet, p.Row, change.Updated); err != nil {
		// The write may still have landed; the change is returned so it can be restored.
		return change, fmt.Errorf("write %s: %w", p.Name, err)
	}
	return change, nil
}

// Restore writes back the row as it was before change.
func (l *Ledger) Restore(ctx context.Context, change StockChange) error {
	if err := l.store.SetRow(ctx, l.stockSheet, change.Row, change.Previous); err != nil {
		return fmt.Errorf("restore %s: %w", change.Product, err)
	}
	return nil
}

// AppendOrder writes sale as a new ledger row and returns its id, one more
// than the number of rows already present. The id is only unique while a
// single writer appends at a time.
func (l *Ledger) AppendOrder(ctx context.Context, sale Sale) (int, error) {
	rows, err := l.store.Rows(ctx, l.salesSheet)
	if err != nil {
		return 0, fmt.Errorf("count sales: %w", err)
	}
	id := len(rows) + 1
	row := make([]string, saleWidth)
	row[saleID] = strconv.Itoa(id)
	row[saleDescription] = sale.Description
	row[salePrice] = money.FormatDecimal(sale.Total, money.Ledger)
	row[saleSpace] = sale.Space
	row[saleDelivered] = strings.ToUpper(strconv.FormatBool(sale.Delivered))
	if _, err := l.store.AppendRow(ctx, l.salesSheet, row); err != nil {
		return 0, fmt.Errorf("append sale %d: %w", id, err)
	}
	return id, nil
}

// ReadOrders returns the sales ledger in row order.
func (l *Ledger) ReadOrders(ctx context.Context) ([]Sale, error) {
	rows, err := l.store.Rows(ctx, l.salesSheet)
	if err != nil {
		return nil, err
	}
	sales := make([]Sale, 0, len(rows))
	for i, row := range rows {
		sale, err := decodeSale(row)
		if err != nil {
			l.logger.Warn("skipping sales row", "row", i, "error", err)
			continue
		}
		sales = append(sales, sale)
	}
	return sales, nil
}

func decodeSale(row []string) (Sale, error) {
	id, err := strconv.Atoi(strings.TrimSpace(cell(row, saleID)))
	if err != nil {
		return Sale{}, fmt.Errorf("%w: id %q", ErrMalformedRow, cell(row, saleID))
	}
	total, err := amount(cell(row, salePrice))
	if err != nil {
		return Sale{}, fmt.Errorf("%w: sale %d total: %v", ErrMalformedRow, id, err)
	}
	delivered, _ := strconv.ParseBool(strings.TrimSpace(cell(row, saleDelivered)))
	return Sale{
		ID:          id,
		Description: cell(row, saleDescription),
		Total:       total,
		TotalText:   money.FormatDecimal(total, money.Ledger),
		Space:       cell(row, saleSpace),
		Delivered:   delivered,
	}, nil
}
