// Package demo controls the external synthetic email generator.
package demo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const httpTimeout = 10 * time.Second

// Emitter starts and stops the demo generator.
type Emitter interface {
	Start(ctx context.Context) (bool, error)
	Stop(ctx context.Context) (bool, error)
	Running(ctx context.Context) (bool, error)
}

// Client drives a generator exposing POST /start, POST /stop and GET /status,
// each answering {"running": bool}.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient returns a Client for the generator at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout:   httpTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Start asks the generator to begin emitting.
func (c *Client) Start(ctx context.Context) (bool, error) {
	return c.call(ctx, http.MethodPost, "/start")
}

// Stop asks the generator to stop emitting.
func (c *Client) Stop(ctx context.Context) (bool, error) {
	return c.call(ctx, http.MethodPost, "/stop")
}

// Running reports whether the generator is emitting.
func (c *Client) Running(ctx context.Context) (bool, error) {
	return c.call(ctx, http.MethodGet, "/status")
}

func (c *Client) call(ctx context.Context, method, path string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, http.NoBody)
	if err != nil {
		return false, fmt.Errorf("demo: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req) //nolint:gosec // G704: baseURL is from trusted config
	if err != nil {
		return false, fmt.Errorf("demo: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("demo: %s %s returned %d: %s", method, path, resp.StatusCode, string(body))
	}

	var status struct {
		Running bool `json:"running"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&status); err != nil {
		return false, fmt.Errorf("demo: decode status: %w", err)
	}
	return status.Running, nil
}
