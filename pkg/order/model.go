package order

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"buffet/pkg/catalog"
)

// RequestItem is one cart line as the client submits it. Price is the
// client's snapshot and is only kept for logging; the catalog price wins.
type RequestItem struct {
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price,omitempty"`
}

// Request is the body of POST /orders.
type Request struct {
	Items      []RequestItem `json:"items"`
	TotalPrice float64       `json:"totalPrice,omitempty"`
	Space      catalog.Space `json:"space"`
}

// Item is a committed line with its total at catalog price.
type Item struct {
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

// Order is a committed sale.
type Order struct {
	ID          int             `json:"id"`
	Items       []Item          `json:"items"`
	Total       decimal.Decimal `json:"totalPrice"`
	Space       catalog.Space   `json:"space"`
	Delivered   bool            `json:"delivered"`
	Description string          `json:"description"`
}

// Describe renders items the way the sales ledger stores them: "(2) Empanada, (1) Alfajor".
func Describe(items []Item) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = fmt.Sprintf("(%d) %s", it.Quantity, it.ProductName)
	}
	return strings.Join(parts, ", ")
}

// merge folds repeated product names into one line, keeping first-seen order.
func merge(items []RequestItem) []RequestItem {
	index := make(map[string]int, len(items))
	out := make([]RequestItem, 0, len(items))
	for _, it := range items {
		name := catalog.NormalizeName(strings.TrimSpace(it.ProductName))
		if i, ok := index[name]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		index[name] = len(out)
		it.ProductName = name
		out = append(out, it)
	}
	return out
}
