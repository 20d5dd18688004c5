package app

import (
	"context"
	"fmt"

	"buffet/pkg/catalog"
	"buffet/pkg/storage"
)

// seeder is implemented by stores that can overwrite a whole sheet.
type seeder interface {
	Replace(ctx context.Context, sheet string, rows [][]string) error
}

// demoProducts fill an empty stock sheet so a fresh install can take orders.
var demoProducts = []catalog.Product{
	{Name: "Empanada", UnitPrice: "$1.500", Category: "Comida", StockBySpace: map[catalog.Space]int{1: 20, 2: 20, 3: 10}},
	{Name: "Choripán", UnitPrice: "$2.800", Category: "Comida", StockBySpace: map[catalog.Space]int{1: 15, 2: 10, 3: 0}},
	{Name: "Alfajor", UnitPrice: "$800", Category: "Dulces", StockBySpace: map[catalog.Space]int{1: 30, 2: 30, 3: 30}},
	{Name: "Medialuna", UnitPrice: "$650,50", Category: "Dulces", StockBySpace: map[catalog.Space]int{1: 24, 2: 0, 3: 12}},
	{Name: "Agua", UnitPrice: "$1.000", Category: "Bebidas", StockBySpace: map[catalog.Space]int{1: 40, 2: 40, 3: 40}},
	{Name: "Café", UnitPrice: "$1.200", Category: "Bebidas", StockBySpace: map[catalog.Space]int{1: 50, 2: 0, 3: 0}},
}

// seedCatalog writes demoProducts into sheet when it holds no rows.
// It reports whether anything was written.
func seedCatalog(ctx context.Context, store storage.Store, sheet string, layout catalog.Layout) (bool, error) {
	s, ok := store.(seeder)
	if !ok {
		return false, fmt.Errorf("store %T cannot be seeded", store)
	}
	rows, err := store.Rows(ctx, sheet)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", sheet, err)
	}
	if len(rows) > 0 {
		return false, nil
	}

	seed := make([][]string, 0, len(demoProducts))
	for _, p := range demoProducts {
		seed = append(seed, layout.Row(p))
	}
	if err := s.Replace(ctx, sheet, seed); err != nil {
		return false, fmt.Errorf("seed %s: %w", sheet, err)
	}
	return true, nil
}
