package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"buffet/pkg/catalog"
)

// Ledger is the part of catalog.Ledger the pipeline drives.
type Ledger interface {
	Layout() catalog.Layout
	SpaceLabel(space catalog.Space) string
	ReadCatalog(ctx context.Context) ([]catalog.Product, error)
	ApplyStockDelta(ctx context.Context, p catalog.Product, space catalog.Space, quantity int, unitPrice decimal.Decimal) (catalog.StockChange, error)
	Restore(ctx context.Context, change catalog.StockChange) error
	AppendOrder(ctx context.Context, sale catalog.Sale) (int, error)
	ReadOrders(ctx context.Context) ([]catalog.Sale, error)
}

// MaxQuantity bounds one product's quantity in an order, after repeated lines are merged.
const MaxQuantity = 1000

// CompensationTimeout bounds the restore writes, which run even after the commit context expired.
const CompensationTimeout = 10 * time.Second

var tracer = otel.Tracer("buffet/pkg/order")

// Pipeline commits orders against a Ledger. Commit is not safe for
// concurrent use; Service runs it inside the commit critical section.
type Pipeline struct {
	ledger Ledger
	logger *slog.Logger
}

// NewPipeline wraps ledger. A nil logger means slog.Default().
func NewPipeline(ledger Ledger, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{ledger: ledger, logger: logger}
}

// planned is a request line matched to its catalog row.
type planned struct {
	product  catalog.Product
	quantity int
}

// Commit validates req against a fresh catalog read and, only when every
// line can be served, applies all stock deltas and appends the sale.
// Either every effect lands or none does, except when a compensating write
// fails; that case is logged and returned as ErrCommitFailed.
func (p *Pipeline) Commit(ctx context.Context, commitID string, req Request) (Order, error) {
	ctx, span := tracer.Start(ctx, "order.commit")
	defer span.End()
	span.SetAttributes(attribute.String("commit.id", commitID), attribute.Int("order.space", int(req.Space)))

	logger := p.logger.With("commit_id", commitID, "space", int(req.Space))
	order, err := p.commit(ctx, logger, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("commit rejected", "error", err)
		return Order{}, err
	}
	span.SetAttributes(attribute.Int("order.id", order.ID))
	logger.Info("order committed", "order_id", order.ID, "items", order.Description, "total", order.Total.StringFixed(2))
	return order, nil
}

func (p *Pipeline) commit(ctx context.Context, logger *slog.Logger, req Request) (Order, error) {
	if err := validate(req, p.ledger.Layout()); err != nil {
		return Order{}, err
	}
	items := merge(req.Items)
	for _, it := range items {
		if it.Quantity > MaxQuantity {
			return Order{}, newValidationError("quantity for %s must be at most %d", it.ProductName, MaxQuantity)
		}
	}

	products, err := p.ledger.ReadCatalog(ctx)
	if err != nil {
		return Order{}, err
	}

	// Every line is checked before anything is written.
	plan := make([]planned, 0, len(items))
	for _, it := range items {
		product, ok := catalog.Find(products, it.ProductName)
		if !ok {
			return Order{}, &ItemError{Product: it.ProductName, Err: ErrUnknownProduct}
		}
		if product.StockIn(req.Space) < it.Quantity {
			return Order{}, &ItemError{Product: it.ProductName, Err: ErrInsufficientStock}
		}
		plan = append(plan, planned{product: product, quantity: it.Quantity})
	}

	applied := make([]catalog.StockChange, 0, len(plan))
	for _, step := range plan {
		change, err := p.ledger.ApplyStockDelta(ctx, step.product, req.Space, step.quantity, step.product.Price)
		if err != nil {
			if change.Previous != nil {
				applied = append(applied, change)
			}
			return Order{}, p.compensate(ctx, logger, applied, classify(step.product.Name, err))
		}
		applied = append(applied, change)
	}

	order := Order{Space: req.Space, Items: make([]Item, len(plan))}
	for i, step := range plan {
		line := step.product.Price.Mul(decimal.NewFromInt(int64(step.quantity)))
		order.Items[i] = Item{ProductName: step.product.Name, Quantity: step.quantity, LineTotal: line}
		order.Total = order.Total.Add(line)
	}
	order.Description = Describe(order.Items)

	id, err := p.ledger.AppendOrder(ctx, catalog.Sale{
		Description: order.Description,
		Total:       order.Total,
		Space:       p.ledger.SpaceLabel(req.Space),
	})
	if err != nil {
		return Order{}, p.compensate(ctx, logger, applied, fmt.Errorf("%w: append sale: %v", ErrCommitFailed, err))
	}
	order.ID = id
	return order, nil
}

// classify maps a failed delta to the error the caller sees. A row that
// changed under us outside the commit lock still reads as the order-level
// failure; anything else is a write failure.
func classify(product string, err error) error {
	switch {
	case errors.Is(err, catalog.ErrInsufficientStock):
		return &ItemError{Product: product, Err: ErrInsufficientStock}
	case errors.Is(err, catalog.ErrProductNotFound):
		return &ItemError{Product: product, Err: ErrUnknownProduct}
	default:
		return fmt.Errorf("%w: %s: %v", ErrCommitFailed, product, err)
	}
}

// compensate restores applied rows in reverse order and returns cause, or
// ErrCommitFailed when some row could not be restored.
func (p *Pipeline) compensate(ctx context.Context, logger *slog.Logger, applied []catalog.StockChange, cause error) error {
	if len(applied) == 0 {
		return cause
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), CompensationTimeout)
	defer cancel()

	span := trace.SpanFromContext(ctx)
	var stranded []string
	for i := len(applied) - 1; i >= 0; i-- {
		change := applied[i]
		if err := p.ledger.Restore(ctx, change); err != nil {
			logger.Error("restore failed", "product", change.Product, "row", change.Row, "error", err)
			stranded = append(stranded, fmt.Sprintf("%s (row %d) should read %q", change.Product, change.Row, change.Previous))
		}
	}
	if len(stranded) > 0 {
		span.AddEvent("stock not restored", trace.WithAttributes(attribute.Int("rows", len(stranded))))
		logger.Error("commit left stock partially applied, manual reconciliation required",
			"cause", cause, "rows", strings.Join(stranded, "; "))
		return fmt.Errorf("%w: %v; %d row(s) not restored, manual reconciliation required", ErrCommitFailed, cause, len(stranded))
	}
	span.AddEvent("stock restored", trace.WithAttributes(attribute.Int("rows", len(applied))))
	logger.Info("commit rolled back", "restored", len(applied), "cause", cause)
	return cause
}

func validate(req Request, layout catalog.Layout) error {
	if !layout.HasSpace(req.Space) {
		return newValidationError("unknown space %d", req.Space)
	}
	if len(req.Items) == 0 {
		return newValidationError("at least one item is required")
	}
	for _, it := range req.Items {
		if strings.TrimSpace(it.ProductName) == "" {
			return newValidationError("product name is required")
		}
		if it.Quantity < 1 {
			return newValidationError("quantity for %s must be at least 1", it.ProductName)
		}
		if it.Quantity > MaxQuantity {
			return newValidationError("quantity for %s must be at most %d", it.ProductName, MaxQuantity)
		}
	}
	return nil
}
