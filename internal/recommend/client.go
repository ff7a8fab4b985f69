// Package recommend talks to the market-basket recommendation service and
// turns its answers into catalog products.
package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/market-basket/market-basket/internal/shared"
)

// DefaultTimeout bounds every upstream call.
const DefaultTimeout = 5 * time.Second

// UpstreamError is returned when the recommendation service answers with a
// non-2xx status or an unreadable body.
type UpstreamError struct {
	Operation string
	Status    int
	Body      string
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("recommend: %s: %s", e.Operation, e.Body)
	}
	return fmt.Sprintf("recommend: %s returned %d: %s", e.Operation, e.Status, e.Body)
}

func (e *UpstreamError) Unwrap() error { return shared.ErrUpstream }

// Observer records upstream call outcomes.
type Observer interface {
	ObserveUpstream(operation, outcome string)
}

// Client calls the recommendation service.
type Client struct {
	baseURL  string
	http     *http.Client
	timeout  time.Duration
	observer Observer
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption { return func(c *Client) { c.http = hc } }

// WithObserver records call outcomes on o.
func WithObserver(o Observer) ClientOption { return func(c *Client) { c.observer = o } }

// NewClient builds a client for baseURL. A non-positive timeout falls back to
// DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration, opts ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: timeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type cartPayload struct {
	Cart []string `json:"cart"`
}

// Recommend asks the service which product names go with cart.
func (c *Client) Recommend(ctx context.Context, cart []string) ([]string, error) {
	body, err := c.post(ctx, "recommend", cart)
	if err != nil {
		return nil, err
	}
	names, err := decodeNames(body)
	if err != nil {
		c.observe("recommend", "bad_body")
		return nil, &UpstreamError{Operation: "recommend", Body: err.Error()}
	}
	c.observe("recommend", "ok")
	return names, nil
}

// ConfirmPurchase reports a completed purchase. The response body is ignored.
func (c *Client) ConfirmPurchase(ctx context.Context, cart []string) error {
	if _, err := c.post(ctx, "confirm_purchase", cart); err != nil {
		return err
	}
	c.observe("confirm_purchase", "ok")
	return nil
}

func (c *Client) post(ctx context.Context, operation string, cart []string) ([]byte, error) {
	if cart == nil {
		cart = []string{}
	}
	payload, err := json.Marshal(cartPayload{Cart: cart})
	if err != nil {
		return nil, fmt.Errorf("recommend: encode %s payload: %w", operation, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+operation+"/", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("recommend: build %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			c.observe(operation, "timeout")
			return nil, fmt.Errorf("recommend: %s after %s: %w", operation, c.timeout, shared.ErrUpstreamTimeout)
		}
		c.observe(operation, "error")
		return nil, &UpstreamError{Operation: operation, Body: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		if isTimeout(ctx, err) {
			c.observe(operation, "timeout")
			return nil, fmt.Errorf("recommend: %s after %s: %w", operation, c.timeout, shared.ErrUpstreamTimeout)
		}
		c.observe(operation, "error")
		return nil, &UpstreamError{Operation: operation, Status: resp.StatusCode, Body: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.observe(operation, "status_"+statusClass(resp.StatusCode))
		return nil, &UpstreamError{Operation: operation, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

func (c *Client) observe(operation, outcome string) {
	if c.observer != nil {
		c.observer.ObserveUpstream(operation, outcome)
	}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}

// decodeNames accepts either a bare JSON array of names or an object with a
// "recommendations" array.
func decodeNames(body []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty response body")
	}
	var names []string
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &names); err != nil {
			return nil, err
		}
		return names, nil
	}
	var wrapped struct {
		Recommendations []string `json:"recommendations"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, err
	}
	if wrapped.Recommendations == nil {
		return nil, errors.New("response has no recommendations")
	}
	return wrapped.Recommendations, nil
}
