package catalog

import "errors"

var (
	// ErrCatalogUnavailable is returned once every catalog read attempt has failed.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	// ErrProductNotFound is returned when no row carries the requested name.
	ErrProductNotFound = errors.New("product not found")
	// ErrInsufficientStock is returned when a decrement would leave stock below zero; nothing is written.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrUnknownSpace is returned for space labels that do not name a configured space.
	ErrUnknownSpace = errors.New("unknown space")
	// ErrMalformedRow is returned when a sheet row cannot be decoded with the layout.
	ErrMalformedRow = errors.New("malformed row")
)
