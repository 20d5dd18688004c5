// Package kiosk is the customer-facing ordering loop: it reads commands, keeps
// the cart, and talks to the server through httpapi.Client.
package kiosk

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"text/tabwriter"

	"buffet/pkg/cart"
	"buffet/pkg/catalog"
	"buffet/pkg/money"
	"buffet/pkg/order"
)

// API is the server surface the kiosk uses; httpapi.Client implements it.
type API interface {
	FetchCatalog(ctx context.Context, space catalog.Space) ([]catalog.Product, error)
	SubmitOrder(ctx context.Context, req order.Request) (int, error)
}

// errQuit ends Run without error.
var errQuit = errors.New("quit")

// Kiosk is one ordering session.
type Kiosk struct {
	api      API
	cart     *cart.Cart
	products []catalog.Product
	out      io.Writer
	logger   *slog.Logger
}

// New starts a session at space writing its output to out.
func New(api API, space catalog.Space, out io.Writer, logger *slog.Logger) *Kiosk {
	if logger == nil {
		logger = slog.Default()
	}
	return &Kiosk{api: api, cart: cart.New(space), out: out, logger: logger}
}

// Space is the selected space, saved into the session preferences on exit.
func (k *Kiosk) Space() catalog.Space { return k.cart.Space() }

// Cart exposes the session cart.
func (k *Kiosk) Cart() *cart.Cart { return k.cart }

// Run reads commands from in until "quit", end of input, or ctx ends.
func (k *Kiosk) Run(ctx context.Context, in io.Reader) error {
	if err := k.refresh(ctx); err != nil {
		k.printf("catalog unavailable: %v\n", err)
	}
	k.printf("Space %d. Type \"help\" for commands.\n", k.Space())

	scanner := bufio.NewScanner(in)
	for {
		k.printf("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		err := k.Exec(ctx, scanner.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			k.printf("%v\n", err)
		}
	}
}

// Exec runs one command line. Cart violations come back as errors for the
// customer to read; the session carries on.
func (k *Kiosk) Exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, arg := strings.ToLower(fields[0]), strings.Join(fields[1:], " ")

	switch cmd {
	case "help", "?":
		k.help()
	case "space":
		return k.switchSpace(ctx, arg)
	case "list", "ls":
		if err := k.refresh(ctx); err != nil {
			return err
		}
		k.list()
	case "add":
		p, err := k.lookup(arg)
		if err != nil {
			return err
		}
		if err := k.cart.AddItem(p.Name, p.UnitPrice, p.StockIn(k.Space())); err != nil {
			return err
		}
		k.show()
	case "inc", "+":
		p, err := k.lookup(arg)
		if err != nil {
			return err
		}
		if err := k.cart.IncrementQuantity(p.Name, p.StockIn(k.Space())); err != nil {
			return err
		}
		k.show()
	case "dec", "-":
		if err := k.cart.DecrementQuantity(k.lineName(arg)); err != nil {
			return err
		}
		k.show()
	case "rm", "remove":
		k.cart.RemoveItem(k.lineName(arg))
		k.show()
	case "cart", "order":
		k.show()
	case "cancel":
		k.cart.Clear()
		k.printf("Order cancelled.\n")
	case "submit", "pay":
		return k.submit(ctx)
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q, try \"help\"", cmd)
	}
	return nil
}

func (k *Kiosk) switchSpace(ctx context.Context, arg string) error {
	space, err := catalog.ParseSpace(arg)
	if err != nil {
		return err
	}
	k.cart.SetSpace(space)
	if err := k.refresh(ctx); err != nil {
		return err
	}
	k.printf("Space %d selected, cart emptied.\n", space)
	k.list()
	return nil
}

func (k *Kiosk) refresh(ctx context.Context) error {
	products, err := k.api.FetchCatalog(ctx, k.Space())
	if err != nil {
		return err
	}
	k.products = products
	return nil
}

// lookup finds a product in the last fetched catalog by list number or name.
func (k *Kiosk) lookup(arg string) (catalog.Product, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return catalog.Product{}, fmt.Errorf("which product? give its number or name")
	}
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(k.products) {
			return catalog.Product{}, fmt.Errorf("no product number %d", n)
		}
		return k.products[n-1], nil
	}
	name := catalog.NormalizeName(arg)
	for _, p := range k.products {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return catalog.Product{}, fmt.Errorf("%w: %s", catalog.ErrProductNotFound, name)
}

// lineName resolves arg to a product name, falling back to the raw text for
// lines whose product left the catalog.
func (k *Kiosk) lineName(arg string) string {
	if p, err := k.lookup(arg); err == nil {
		return p.Name
	}
	return catalog.NormalizeName(strings.TrimSpace(arg))
}

func (k *Kiosk) submit(ctx context.Context) error {
	if k.cart.Empty() {
		return fmt.Errorf("the cart is empty")
	}
	id, err := k.api.SubmitOrder(ctx, k.cart.Request())
	if err != nil {
		k.logger.Warn("order failed", "space", int(k.Space()), "error", err)
		return fmt.Errorf("order not placed, your cart is unchanged: %w", err)
	}
	k.cart.Clear()
	k.printf("Order #%d placed. Thank you!\n", id)
	if err := k.refresh(ctx); err != nil {
		k.printf("catalog unavailable: %v\n", err)
	}
	return nil
}

func (k *Kiosk) list() {
	if len(k.products) == 0 {
		k.printf("Nothing in stock at space %d.\n", k.Space())
		return
	}
	tw := tabwriter.NewWriter(k.out, 0, 4, 2, ' ', 0)
	for i, p := range k.products {
		fmt.Fprintf(tw, "%d.\t%s\t%s\t%s\t%d left\n", i+1, p.Name, p.Category, p.UnitPrice, p.StockIn(k.Space()))
	}
	tw.Flush()
}

func (k *Kiosk) show() {
	if k.cart.Empty() {
		k.printf("Your order is empty.\n")
		return
	}
	tw := tabwriter.NewWriter(k.out, 0, 4, 2, ' ', 0)
	for _, l := range k.cart.Lines() {
		fmt.Fprintf(tw, "(%d)\t%s\t%s\n", l.Quantity, l.ProductName, money.FormatDisplay(float64(l.Quantity)*l.UnitPrice))
	}
	fmt.Fprintf(tw, "\tTotal\t%s\n", money.FormatDisplay(k.cart.Total()))
	tw.Flush()
}

func (k *Kiosk) help() {
	k.printf(`Commands:
  list               products in stock here
  space N            switch space (empties the cart)
  add N|name         add one unit
  inc N|name         one more unit (max %d per product)
  dec N|name         one less unit
  rm N|name          remove the product
  cart               show your order
  cancel             empty the cart
  submit             place the order
  quit
`, cart.MaxPerProduct)
}

func (k *Kiosk) printf(format string, args ...any) {
	fmt.Fprintf(k.out, format, args...)
}
