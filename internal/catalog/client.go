// Package catalog is the storefront's HTTP client for the market basket API.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/market-basket/market-basket/internal/orders"
	"github.com/market-basket/market-basket/internal/products"
)

// ErrNotFound reports a 404 from the API.
var ErrNotFound = errors.New("catalog: not found")

// FetchError is returned for non-2xx responses.
type FetchError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *FetchError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("catalog: %s %s: status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("catalog: %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
}

func (e *FetchError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// Client talks to the API server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a Client. A nil hc uses a client with a 15s timeout.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// ListProducts fetches the catalog, bypassing caches.
func (c *Client) ListProducts(ctx context.Context) ([]products.Product, error) {
	var out []products.Product
	if err := c.do(ctx, http.MethodGet, "/products", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetProduct fetches one product.
func (c *Client) GetProduct(ctx context.Context, id int64) (products.Product, error) {
	var out products.Product
	if err := c.do(ctx, http.MethodGet, "/products/"+strconv.FormatInt(id, 10), nil, &out); err != nil {
		return products.Product{}, err
	}
	return out, nil
}

// TopProducts fetches the best sellers.
func (c *Client) TopProducts(ctx context.Context) ([]products.AdminProduct, error) {
	var out []products.AdminProduct
	if err := c.do(ctx, http.MethodGet, "/top-products", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitOrder posts an order. A set IdempotencyKey travels as the
// Idempotency-Key header.
func (c *Client) SubmitOrder(ctx context.Context, req orders.SubmitRequest) (orders.Order, error) {
	var out orders.Order
	var headers http.Header
	if req.IdempotencyKey != "" {
		headers = http.Header{orders.IdempotencyHeader: []string{req.IdempotencyKey}}
	}
	if err := c.do(ctx, http.MethodPost, "/orders", req, &out, headers); err != nil {
		return orders.Order{}, err
	}
	return out, nil
}

type recommendationItem struct {
	Product  recommendationProduct `json:"product"`
	Quantity int                   `json:"quantity"`
}

type recommendationProduct struct {
	Name string `json:"name"`
}

// Recommendations asks the API for names that go with the given basket names.
func (c *Client) Recommendations(ctx context.Context, names []string) ([]string, error) {
	body := struct {
		Items []recommendationItem `json:"items"`
	}{Items: make([]recommendationItem, 0, len(names))}
	for _, n := range names {
		body.Items = append(body.Items, recommendationItem{Product: recommendationProduct{Name: n}, Quantity: 1})
	}
	var out []string
	if err := c.do(ctx, http.MethodPost, "/recommendations", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, headers ...http.Header) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("catalog: encode %s: %w", path, err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("catalog: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, h := range headers {
		for k, v := range h {
			req.Header[http.CanonicalHeaderKey(k)] = v
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("catalog: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("catalog: read %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &FetchError{Method: method, Path: path, Status: resp.StatusCode, Message: serverMessage(data)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("catalog: decode %s: %w", path, err)
	}
	return nil
}

// serverMessage extracts a human readable message from problem details or an
// {"error": ...} body.
func serverMessage(data []byte) string {
	var body struct {
		Detail  string `json:"detail"`
		Title   string `json:"title"`
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return strings.TrimSpace(string(data))
	}
	switch {
	case body.Detail != "":
		return body.Detail
	case body.Error != "" && body.Details != "":
		return body.Error + ": " + body.Details
	case body.Error != "":
		return body.Error
	default:
		return body.Title
	}
}
