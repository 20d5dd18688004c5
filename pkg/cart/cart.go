// Package cart holds the order a customer is composing at one space.
package cart

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"buffet/pkg/catalog"
	"buffet/pkg/money"
	"buffet/pkg/order"
)

// MaxPerProduct caps one product's quantity in a single order, whatever the stock.
const MaxPerProduct = 5

var (
	ErrOutOfStock     = errors.New("out of stock")
	ErrQuantityCapped = errors.New("quantity limit reached")
	ErrLineNotFound   = errors.New("product is not in the cart")
)

// Line is one product in the cart. UnitPrice is the price seen when the
// product was first added; it is not refreshed.
type Line struct {
	ProductName string
	Quantity    int
	UnitPrice   float64
}

// Cart is owned by a single session and is not safe for concurrent use.
type Cart struct {
	space catalog.Space
	lines []Line
}

// New returns an empty cart for space.
func New(space catalog.Space) *Cart {
	return &Cart{space: space}
}

// Space returns the selected space.
func (c *Cart) Space() catalog.Space { return c.space }

// Lines returns a copy of the lines in the order they were added.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Len is the number of distinct products.
func (c *Cart) Len() int { return len(c.lines) }

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool { return len(c.lines) == 0 }

func (c *Cart) find(name string) int {
	for i, l := range c.lines {
		if l.ProductName == name {
			return i
		}
	}
	return -1
}

// AddItem puts one unit of the product in the cart. A product already in
// the cart is incremented under the same limits as IncrementQuantity.
func (c *Cart) AddItem(rawName, priceText string, availableStock int) error {
	name := catalog.NormalizeName(rawName)
	if c.find(name) >= 0 {
		return c.IncrementQuantity(name, availableStock)
	}
	if availableStock <= 0 {
		return fmt.Errorf("%w: %s", ErrOutOfStock, name)
	}
	price, err := money.Parse(priceText)
	if err != nil {
		return fmt.Errorf("price of %s: %w", name, err)
	}
	c.lines = append(c.lines, Line{ProductName: name, Quantity: 1, UnitPrice: price})
	return nil
}

// IncrementQuantity adds one unit while the line stays within both
// availableStock and MaxPerProduct. Otherwise the line is left as it is.
func (c *Cart) IncrementQuantity(name string, availableStock int) error {
	i := c.find(catalog.NormalizeName(name))
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrLineNotFound, name)
	}
	l := &c.lines[i]
	if l.Quantity >= availableStock || l.Quantity >= MaxPerProduct {
		return fmt.Errorf("%w: %s has %d (stock %d, max %d)", ErrQuantityCapped, l.ProductName, l.Quantity, availableStock, MaxPerProduct)
	}
	l.Quantity++
	return nil
}

// DecrementQuantity removes one unit; the last unit removes the line.
func (c *Cart) DecrementQuantity(name string) error {
	i := c.find(catalog.NormalizeName(name))
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrLineNotFound, name)
	}
	if c.lines[i].Quantity <= 1 {
		c.remove(i)
		return nil
	}
	c.lines[i].Quantity--
	return nil
}

// RemoveItem drops the line; removing a product that is not there does nothing.
func (c *Cart) RemoveItem(name string) {
	if i := c.find(catalog.NormalizeName(name)); i >= 0 {
		c.remove(i)
	}
}

func (c *Cart) remove(i int) {
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
}

// SetSpace switches to space and empties the cart, even when space is unchanged.
func (c *Cart) SetSpace(space catalog.Space) {
	c.space = space
	c.lines = nil
}

// Clear empties the cart and keeps the space.
func (c *Cart) Clear() {
	c.lines = nil
}

// Total is the sum of quantity times unit price.
func (c *Cart) Total() float64 {
	sum := decimal.Zero
	for _, l := range c.lines {
		sum = sum.Add(decimal.NewFromFloat(l.UnitPrice).Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum.InexactFloat64()
}

// Request builds the order submission for the current contents.
func (c *Cart) Request() order.Request {
	req := order.Request{Space: c.space, TotalPrice: c.Total(), Items: make([]order.RequestItem, len(c.lines))}
	for i, l := range c.lines {
		req.Items[i] = order.RequestItem{ProductName: l.ProductName, Quantity: l.Quantity, Price: l.UnitPrice}
	}
	return req
}
