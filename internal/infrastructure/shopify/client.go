package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dropsync/backend/internal/domain/integration"
)

// maxResponseSize limits the response body size to prevent memory exhaustion
const maxResponseSize = 10 * 1024 * 1024 // 10MB max response

// callLimitHeader carries the REST bucket state as "used/total"
const callLimitHeader = "X-Shopify-Shop-Api-Call-Limit"

// Client is a self-throttling Shopify Admin REST client. Every call blocks
// for as long as the throttle requires; a call is never silently dropped.
// Transient failures (429, 5xx, connection errors) are retried with
// exponential backoff and jitter; exhausting the retry budget surfaces the
// error to the caller. The client never dead-letters on its own.
type Client struct {
	config     *Config
	baseURL    string
	httpClient *http.Client
	throttle   *throttle
	logger     *zap.Logger

	sleepFunc func(time.Duration)
	randFunc  func(int64) int64
}

// Response is the outcome of a successful request
type Response struct {
	// StatusCode is the HTTP status code
	StatusCode int
	// Body is the raw response body
	Body []byte
	// NextPageURL is the cursor URL for the next page, if any
	NextPageURL string
	// PreviousPageURL is the cursor URL for the previous page, if any
	PreviousPageURL string
}

// HasNextPage reports whether another page of results exists
func (r *Response) HasNextPage() bool {
	return r.NextPageURL != ""
}

// Decode unmarshals the response body into out
func (r *Response) Decode(out any) error {
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("%w: %v", integration.ErrInvalidResponse, err)
	}
	return nil
}

// NewClient creates a Shopify client with the given configuration
func NewClient(config *Config, logger *zap.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		config:  config,
		baseURL: config.BaseURL(),
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		throttle:  newThrottle(config.MinCallSpacing),
		logger:    logger.Named("shopify"),
		sleepFunc: time.Sleep,
		randFunc:  rand.Int63n,
	}, nil
}

// Request performs an authenticated call against the Admin API. path is
// either a path relative to the API base ("/orders.json?status=open") or an
// absolute URL as returned by a pagination cursor. body, when non-nil, is
// encoded as JSON.
func (c *Client) Request(ctx context.Context, method, path string, body any) (*Response, error) {
	var encoded []byte
	if body != nil {
		var err error
		encoded, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("shopify: encode request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt < c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.retryBackoff(attempt)
			c.logger.Warn("retrying request",
				zap.String("method", method),
				zap.String("path", path),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			c.sleepFunc(backoff)
		}

		resp, retryable, err := c.doRequest(ctx, method, path, encoded)
		if err == nil {
			return resp, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %v",
		integration.ErrRetryExhausted, c.config.MaxRetries, lastErr)
}

// doRequest performs one attempt. The returned bool reports whether the
// failure is transient and worth retrying.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) (*Response, bool, error) {
	url := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		url = c.baseURL + path
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, false, fmt.Errorf("shopify: create request: %w", err)
	}
	req.Header.Set("X-Shopify-Access-Token", c.config.AccessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.throttle.beforeCall()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Connection-level failures are transient by assumption
		return nil, true, fmt.Errorf("%w: %v", integration.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, true, fmt.Errorf("shopify: read response: %w", err)
	}

	c.throttle.afterResponse(resp.Header.Get(callLimitHeader))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, fmt.Errorf("%w: HTTP 429", integration.ErrRateLimited)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("%w: HTTP %d", integration.ErrUpstreamUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		// Client errors are definitive answers, not transient faults
		return nil, false, fmt.Errorf("%w: HTTP %d: %s",
			integration.ErrRequestFailed, resp.StatusCode, truncateBody(respBody))
	}

	next, prev := parseLinkHeader(resp.Header.Get("Link"))
	return &Response{
		StatusCode:      resp.StatusCode,
		Body:            respBody,
		NextPageURL:     next,
		PreviousPageURL: prev,
	}, false, nil
}

// retryBackoff computes 2^attempt seconds plus up to one second of jitter
func (c *Client) retryBackoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	jitter := time.Duration(c.randFunc(int64(time.Second)))
	return base + jitter
}

// parseLinkHeader extracts next/previous cursor URLs from a Link header of
// the form `<url>; rel="next", <url>; rel="previous"`.
func parseLinkHeader(header string) (next, previous string) {
	for _, part := range strings.Split(header, ",") {
		sections := strings.Split(part, ";")
		if len(sections) < 2 {
			continue
		}
		url := strings.Trim(strings.TrimSpace(sections[0]), "<>")
		for _, section := range sections[1:] {
			rel := strings.TrimSpace(section)
			switch rel {
			case `rel="next"`:
				next = url
			case `rel="previous"`:
				previous = url
			}
		}
	}
	return next, previous
}

// truncateBody keeps error messages readable for large responses
func truncateBody(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
