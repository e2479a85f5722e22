// Package worker polls the orchestrator for ticker batches and runs history
// refresh or gap filling on each symbol.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stock-backfill/internal/api"
	"stock-backfill/internal/queue"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// Client talks to the orchestrator HTTP API.
type Client struct {
	baseURL     string
	workerID    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates an orchestrator client identifying as workerID.
func NewClient(baseURL, workerID string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		workerID:    workerID,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// batchPaths maps categories to orchestrator endpoints.
var batchPaths = map[queue.Category]string{
	queue.History:      "/get-batch",
	queue.GapDetection: "/get-gap-detection-batch",
}

// GetBatch withdraws a batch of the given category. The withdrawal is not
// idempotent, so it is only retried when the request never reached the
// orchestrator (dial failure) or was refused with 429. A batch whose
// response is lost stays dispatched until the next reseed or reset.
func (c *Client) GetBatch(ctx context.Context, category queue.Category) (*api.BatchResponse, error) {
	path, ok := batchPaths[category]
	if !ok {
		return nil, fmt.Errorf("get batch %q: %w", category, queue.ErrUnknownCategory)
	}

	q := url.Values{}
	q.Set("worker_id", c.workerID)

	var resp api.BatchResponse
	if err := c.do(ctx, http.MethodPost, path+"?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("get %s batch: %w", category, err)
	}
	return &resp, nil
}

// Status fetches the orchestrator queue status.
func (c *Client) Status(ctx context.Context) (*queue.Status, error) {
	var st queue.Status
	if err := c.do(ctx, http.MethodGet, "/status", &st); err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}
	return &st, nil
}

// do performs a request with retries and exponential backoff.
// 4xx responses other than 429 are not retried. Non-GET requests are retried
// only when they were not delivered or were refused with 429.
func (c *Client) do(ctx context.Context, method, path string, result interface{}) error {
	idempotent := method == http.MethodGet
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			if !idempotent && !notDelivered(err) {
				return lastErr
			}
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			if !idempotent {
				return lastErr
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			if !idempotent {
				return lastErr
			}
			continue
		}

		if result != nil {
			if err := json.Unmarshal(body, result); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// notDelivered reports whether err happened before the request was written.
func notDelivered(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
