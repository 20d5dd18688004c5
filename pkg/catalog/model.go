package catalog

import (
	"regexp"

	"github.com/shopspring/decimal"
)

// Product is one row of the stock sheet with its columns mapped to names.
type Product struct {
	// Row is the product's data-row index in the stock sheet.
	Row          int           `json:"-"`
	Name         string        `json:"name"`
	UnitPrice    string        `json:"unitPrice"`
	StockBySpace map[Space]int `json:"stockBySpace"`
	Category     string        `json:"category"`
	UnitsSold    int           `json:"unitsSold"`
	MoneyEarned  string        `json:"moneyEarned"`

	Price  decimal.Decimal `json:"-"`
	Earned decimal.Decimal `json:"-"`
}

// StockIn returns the stock counter for space, zero when the product has none there.
func (p Product) StockIn(space Space) int {
	return p.StockBySpace[space]
}

// Sale is one row of the sales ledger.
type Sale struct {
	ID          int             `json:"id"`
	Description string          `json:"description"`
	Total       decimal.Decimal `json:"-"`
	TotalText   string          `json:"total"`
	Space       string          `json:"space"`
	Delivered   bool            `json:"delivered"`
}

var quantityPrefix = regexp.MustCompile(`^\(\d+\) `)

// NormalizeName strips a leading "(3) " multiplicity annotation, the form order descriptions use.
func NormalizeName(raw string) string {
	return quantityPrefix.ReplaceAllString(raw, "")
}

// Find returns the product named name from a catalog snapshot.
func Find(products []Product, name string) (Product, bool) {
	for _, p := range products {
		if p.Name == name {
			return p, true
		}
	}
	return Product{}, false
}

// InSpace keeps the products with stock left in space, in catalog order.
func InSpace(products []Product, space Space) []Product {
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if p.StockIn(space) > 0 {
			out = append(out, p)
		}
	}
	return out
}
