package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrFeedUnavailable covers transport failures and non-2xx responses.
// Callers recover from it by serving the local cache.
var ErrFeedUnavailable = errors.New("feed unavailable")

// maxFeedBytes bounds the body read from the published sheet. A larger body
// is rejected rather than truncated, since a partial sheet would drop orders.
const maxFeedBytes = 64 << 20

// Client fetches the published CSV over HTTP.
type Client struct {
	url      string
	http     *http.Client
	logger   *zap.Logger
	maxBytes int64
}

// NewClient creates a feed client. A zero timeout leaves the transport's own
// limits in place.
func NewClient(url string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		url:      url,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
		maxBytes: maxFeedBytes,
	}
}

// URL returns the configured feed address.
func (c *Client) URL() string {
	return c.url
}

// Fetch downloads the CSV text. Any failure wraps ErrFeedUnavailable.
func (c *Client) Fetch(ctx context.Context) (string, error) {
	if c.url == "" {
		return "", fmt.Errorf("%w: no feed URL configured", ErrFeedUnavailable)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrFeedUnavailable, err)
	}
	req.Header.Set("Accept", "text/csv")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: HTTP %d", ErrFeedUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrFeedUnavailable, err)
	}
	if int64(len(body)) > c.maxBytes {
		return "", fmt.Errorf("%w: body exceeds %d bytes", ErrFeedUnavailable, c.maxBytes)
	}

	c.logger.Debug("feed fetched",
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)))
	return string(body), nil
}
