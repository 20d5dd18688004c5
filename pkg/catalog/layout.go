package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"buffet/pkg/money"
)

// Layout maps the positional columns of the stock sheet to Product fields.
// Column numbers are zero-based cell indexes.
type Layout struct {
	Name        int           `yaml:"name"`
	Price       int           `yaml:"price"`
	Stock       map[Space]int `yaml:"stock"`
	Category    int           `yaml:"category"`
	UnitsSold   int           `yaml:"units_sold"`
	MoneyEarned int           `yaml:"money_earned"`
}

// DefaultLayout is the sheet the venue has always used: stock for space N sits in column N.
func DefaultLayout() Layout {
	return Layout{
		Name:        0,
		Stock:       map[Space]int{1: 1, 2: 2, 3: 3},
		Price:       4,
		UnitsSold:   5,
		MoneyEarned: 6,
		Category:    7,
	}
}

// Spaces lists the configured spaces in ascending order.
func (l Layout) Spaces() []Space {
	spaces := make([]Space, 0, len(l.Stock))
	for s := range l.Stock {
		spaces = append(spaces, s)
	}
	sort.Slice(spaces, func(i, j int) bool { return spaces[i] < spaces[j] })
	return spaces
}

// HasSpace reports whether the layout has a stock column for space.
func (l Layout) HasSpace(space Space) bool {
	_, ok := l.Stock[space]
	return ok
}

// Width is the number of cells a row needs to hold every mapped column.
func (l Layout) Width() int {
	width := 0
	for _, col := range []int{l.Name, l.Price, l.Category, l.UnitsSold, l.MoneyEarned} {
		if col+1 > width {
			width = col + 1
		}
	}
	for _, col := range l.Stock {
		if col+1 > width {
			width = col + 1
		}
	}
	return width
}

// Validate rejects layouts with negative or overlapping columns.
func (l Layout) Validate() error {
	if len(l.Stock) == 0 {
		return fmt.Errorf("layout: no stock columns")
	}
	seen := make(map[int]string)
	claim := func(col int, field string) error {
		if col < 0 {
			return fmt.Errorf("layout: %s column %d is negative", field, col)
		}
		if other, ok := seen[col]; ok {
			return fmt.Errorf("layout: %s and %s share column %d", field, other, col)
		}
		seen[col] = field
		return nil
	}
	fields := []struct {
		col  int
		name string
	}{
		{l.Name, "name"}, {l.Price, "price"}, {l.Category, "category"},
		{l.UnitsSold, "units_sold"}, {l.MoneyEarned, "money_earned"},
	}
	for _, f := range fields {
		if err := claim(f.col, f.name); err != nil {
			return err
		}
	}
	for _, space := range l.Spaces() {
		if space < 1 {
			return fmt.Errorf("layout: %w %d", ErrUnknownSpace, space)
		}
		if err := claim(l.Stock[space], "stock "+space.String()); err != nil {
			return err
		}
	}
	return nil
}

// Decode builds a Product from the cells of data row index.
// Empty counters and amounts read as zero, as a freshly added sheet row has them.
func (l Layout) Decode(index int, cells []string) (Product, error) {
	p := Product{
		Row:          index,
		Name:         strings.TrimSpace(cell(cells, l.Name)),
		UnitPrice:    cell(cells, l.Price),
		Category:     cell(cells, l.Category),
		MoneyEarned:  cell(cells, l.MoneyEarned),
		StockBySpace: make(map[Space]int, len(l.Stock)),
	}
	if p.Name == "" {
		return Product{}, fmt.Errorf("%w: row %d has no name", ErrMalformedRow, index)
	}

	var err error
	if p.Price, err = amount(p.UnitPrice); err != nil {
		return Product{}, fmt.Errorf("%w: %s price: %v", ErrMalformedRow, p.Name, err)
	}
	if p.Earned, err = amount(p.MoneyEarned); err != nil {
		return Product{}, fmt.Errorf("%w: %s money earned: %v", ErrMalformedRow, p.Name, err)
	}
	if p.UnitsSold, err = count(cell(cells, l.UnitsSold)); err != nil {
		return Product{}, fmt.Errorf("%w: %s units sold: %v", ErrMalformedRow, p.Name, err)
	}
	for space, col := range l.Stock {
		n, err := count(cell(cells, col))
		if err != nil {
			return Product{}, fmt.Errorf("%w: %s stock %d: %v", ErrMalformedRow, p.Name, space, err)
		}
		p.StockBySpace[space] = n
	}
	return p, nil
}

// Encode writes the mutable fields of p (stock, units sold, money earned) over a copy of base.
func (l Layout) Encode(p Product, base []string) []string {
	width := l.Width()
	if len(base) > width {
		width = len(base)
	}
	out := make([]string, width)
	copy(out, base)
	for space, col := range l.Stock {
		out[col] = strconv.Itoa(p.StockBySpace[space])
	}
	out[l.UnitsSold] = strconv.Itoa(p.UnitsSold)
	out[l.MoneyEarned] = money.FormatDecimal(p.Earned, money.Ledger)
	return out
}

// Row renders every field of p, for seeding a sheet.
func (l Layout) Row(p Product) []string {
	out := l.Encode(p, nil)
	out[l.Name] = p.Name
	out[l.Price] = p.UnitPrice
	out[l.Category] = p.Category
	return out
}

func cell(cells []string, col int) string {
	if col < 0 || col >= len(cells) {
		return ""
	}
	return cells[col]
}

func count(text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, nil
	}
	return strconv.Atoi(text)
}

func amount(text string) (decimal.Decimal, error) {
	if strings.TrimSpace(text) == "" {
		return decimal.Zero, nil
	}
	return money.ParseDecimal(text)
}
