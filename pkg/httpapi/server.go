package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"buffet/pkg/catalog"
	"buffet/pkg/order"
)

// maxBodyBytes caps order payloads; a full cart is a few hundred bytes.
const maxBodyBytes = 1 << 20

// Orders is what the server needs from order.Service.
type Orders interface {
	Submit(ctx context.Context, req order.Request) (order.Order, error)
	Catalog(ctx context.Context) ([]catalog.Product, error)
	List(ctx context.Context) ([]catalog.Sale, error)
}

// Server wires HTTP endpoints to the order service.
type Server struct {
	orders         Orders
	layout         catalog.Layout
	logger         *slog.Logger
	requestTimeout time.Duration
}

// New builds a Server. layout renders catalog rows in their sheet positions.
func New(orders Orders, layout catalog.Layout, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		orders:         orders,
		layout:         layout,
		logger:         logger,
		requestTimeout: 30 * time.Second,
	}
}

// Handler exposes the router with request ids, recovery, logging and tracing.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Get("/catalog", s.getCatalog)
	r.Get("/orders", s.listOrders)
	r.Post("/orders", s.createOrder)

	// Paths the first kiosk build called.
	r.Get("/sheets", s.legacyRows)
	r.Post("/sheets/add", s.legacyAdd)

	return otelhttp.NewHandler(r, "buffet",
		otelhttp.WithFilter(func(r *http.Request) bool { return r.URL.Path != "/healthz" }),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "HTTP " + r.Method + " " + r.URL.Path
		}),
	)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CatalogResponse is the body of GET /catalog. Products holds each row in
// its sheet column order; Catalog holds the same products with named fields.
type CatalogResponse struct {
	Products [][]string        `json:"products"`
	Catalog  []catalog.Product `json:"catalog"`
}

// OrderResponse is the body of a successful POST /orders.
type OrderResponse struct {
	OrderID int         `json:"orderId"`
	Order   order.Order `json:"order"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// loadCatalog reads the catalog, narrowed to products in stock at ?space= when given.
func (s *Server) loadCatalog(w http.ResponseWriter, r *http.Request) ([]catalog.Product, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	products, err := s.orders.Catalog(ctx)
	if err != nil {
		s.logger.Error("catalog read failed", "error", err)
		s.respondError(w, err)
		return nil, false
	}
	if raw := r.URL.Query().Get("space"); raw != "" {
		space, err := catalog.ParseSpace(raw)
		if err != nil || !s.layout.HasSpace(space) {
			s.respondError(w, fmt.Errorf("%w: %w %q", errBadRequest, catalog.ErrUnknownSpace, raw))
			return nil, false
		}
		products = catalog.InSpace(products, space)
	}
	return products, true
}

func (s *Server) rows(products []catalog.Product) [][]string {
	rows := make([][]string, len(products))
	for i, p := range products {
		rows[i] = s.layout.Row(p)
	}
	return rows
}

func (s *Server) getCatalog(w http.ResponseWriter, r *http.Request) {
	products, ok := s.loadCatalog(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, CatalogResponse{Products: s.rows(products), Catalog: products})
}

func (s *Server) legacyRows(w http.ResponseWriter, r *http.Request) {
	products, ok := s.loadCatalog(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string][][]string{"getRows": s.rows(products)})
}

// submit decodes an order request and commits it. Client prices are ignored by the pipeline.
func (s *Server) submit(w http.ResponseWriter, r *http.Request) (order.Order, bool) {
	var req order.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.logger.Warn("order rejected: unable to decode payload", "error", err)
		s.respondError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return order.Order{}, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()
	placed, err := s.orders.Submit(ctx, req)
	if err != nil {
		s.logger.Warn("order failed", "space", int(req.Space), "items", len(req.Items), "error", err,
			"request_id", middleware.GetReqID(r.Context()))
		s.respondError(w, err)
		return order.Order{}, false
	}
	return placed, true
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	placed, ok := s.submit(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, OrderResponse{OrderID: placed.ID, Order: placed})
}

func (s *Server) legacyAdd(w http.ResponseWriter, r *http.Request) {
	placed, ok := s.submit(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"newId": placed.ID})
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	sales, err := s.orders.List(ctx)
	if err != nil {
		s.logger.Error("order listing failed", "error", err)
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]catalog.Sale{"orders": sales})
}

// errBadRequest marks decoding failures for statusFor.
var errBadRequest = errors.New("bad request")

// statusFor maps domain errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case order.IsValidation(err), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, order.ErrUnknownProduct):
		return http.StatusNotFound
	case errors.Is(err, order.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, catalog.ErrCatalogUnavailable), errors.Is(err, order.ErrQueueBusy):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError keeps error payloads consistent for the kiosk.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
