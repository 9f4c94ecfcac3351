// Package httpjson is the small JSON-over-HTTP client shared by the quote, risk and RPC adapters.
package httpjson

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"solTradeBot/internal/ports"
)

// Client issues rate-limited JSON requests with a per-request timeout.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter // nil disables limiting
}

// New creates a client. rpm <= 0 disables rate limiting.
func New(timeout time.Duration, rpm int) *Client {
	c := &Client{http: &http.Client{Timeout: timeout}}
	if rpm > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
	}
	return c
}

// Get fetches url and decodes the JSON body into out.
func (c *Client) Get(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ports.ErrInvalidRequest, err)
	}
	return c.do(req, out)
}

// Post sends body as JSON and decodes the JSON response into out.
func (c *Client) Post(ctx context.Context, url string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: %w", ports.ErrInvalidRequest, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %w", ports.ErrInvalidRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	ctx := req.Context()
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return classify(err)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("HTTP %d: %w", resp.StatusCode, ports.ErrRateLimited)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("HTTP %d: %w", resp.StatusCode, ports.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("HTTP %d %s: %w", resp.StatusCode, bytes.TrimSpace(snippet), ports.ErrProviderFailed)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w: %w", ports.ErrInvalidResponse, err)
	}
	return nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", ports.ErrContextCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ports.ErrTimeout, err)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ports.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ports.ErrConnectionFailed, err)
}
