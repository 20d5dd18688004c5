package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"buffet/pkg/catalog"
	"buffet/pkg/order"
)

// APIError is a non-2xx reply. It matches the order and catalog sentinels
// its status stands for, so callers can use errors.Is on client errors too.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server replied %d", e.Status)
	}
	return e.Message
}

// Unwrap maps the status back to the sentinel statusFor produced it from.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return order.ErrUnknownProduct
	case http.StatusConflict:
		return order.ErrInsufficientStock
	case http.StatusServiceUnavailable:
		return order.ErrQueueBusy
	case http.StatusInternalServerError:
		return order.ErrCommitFailed
	}
	return nil
}

// Client talks to Server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the server at baseURL. A nil httpClient
// gets a traced client with a 30s timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   30 * time.Second,
		}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// FetchCatalog returns the products in stock at space, or every product when space is zero.
func (c *Client) FetchCatalog(ctx context.Context, space catalog.Space) ([]catalog.Product, error) {
	path := "/catalog"
	if space > 0 {
		path += "?space=" + url.QueryEscape(space.String())
	}
	var resp CatalogResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Catalog, nil
}

// SubmitOrder sends req and returns the assigned order id.
func (c *Client) SubmitOrder(ctx context.Context, req order.Request) (int, error) {
	var resp OrderResponse
	if err := c.do(ctx, http.MethodPost, "/orders", req, &resp); err != nil {
		return 0, err
	}
	return resp.OrderID, nil
}

// Orders returns the sales ledger.
func (c *Client) Orders(ctx context.Context) ([]catalog.Sale, error) {
	var resp struct {
		Orders []catalog.Sale `json:"orders"`
	}
	if err := c.do(ctx, http.MethodGet, "/orders", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Orders, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var e errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
