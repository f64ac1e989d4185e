// Package n8n provides the HTTP client for the n8n analysis webhooks that
// answer codebase queries.
package n8n

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/singleflight"

	"github.com/Strob0t/replatform-mcp/internal/port/cache"
	"github.com/Strob0t/replatform-mcp/internal/resilience"
)

// DefaultTimeout bounds a single webhook call.
const DefaultTimeout = 30 * time.Second

const maxResponseBytes = 8 << 20

// NoResponse is returned when the webhook answers without a response field.
const NoResponse = "No response received"

// Client posts queries to n8n webhooks.
type Client struct {
	httpClient *http.Client
	username   string
	password   string
	timeout    time.Duration
	breaker    *resilience.Breaker
	cache      cache.Cache
	cacheTTL   time.Duration
	group      singleflight.Group

	maxQueryLength int
}

// NewClient creates a client authenticating with HTTP basic auth. Empty
// credentials send no Authorization header.
func NewClient(username, password string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{},
		username:   username,
		password:   password,
		timeout:    timeout,
	}
}

// NewBreaker returns a circuit breaker tripped only by failures that say
// the webhook host is unhealthy.
func NewBreaker(maxFailures int, timeout time.Duration) *resilience.Breaker {
	return resilience.NewBreaker(maxFailures, timeout, resilience.WithTripOn(tripsBreaker))
}

// SetBreaker attaches a circuit breaker to all outgoing calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// SetCache caches successful responses for ttl. A zero ttl disables caching.
func (c *Client) SetCache(store cache.Cache, ttl time.Duration) {
	c.cache = store
	c.cacheTTL = ttl
}

// SetMaxQueryLength overrides DefaultMaxQueryLength.
func (c *Client) SetMaxQueryLength(n int) {
	c.maxQueryLength = n
}

// Query posts query to endpoint and returns the response text. Identical
// concurrent queries share one request.
func (c *Client) Query(ctx context.Context, endpoint, query string) (string, error) {
	if err := ValidateQuery(query, c.maxQueryLength); err != nil {
		return "", err
	}
	trimmed := strings.TrimSpace(query)
	key := cache.Key(endpoint, trimmed)

	if c.cacheEnabled() {
		if hit, ok := c.cache.Get(ctx, key); ok {
			slog.Debug("n8n cache hit", "endpoint", endpoint)
			return hit, nil
		}
	}

	// The shared request must outlive any single caller; the client timeout
	// still bounds it.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		var resp string
		call := func() error {
			var err error
			resp, err = c.post(shared, endpoint, trimmed)
			return err
		}
		if c.breaker != nil {
			if err := c.breaker.Execute(call); err != nil {
				return "", err
			}
		} else if err := call(); err != nil {
			return "", err
		}
		if c.cacheEnabled() {
			c.cache.Set(shared, key, resp, c.cacheTTL)
		}
		return resp, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Shared {
			slog.Debug("n8n request shared", "endpoint", endpoint)
		}
		if res.Err != nil {
			return "", fmt.Errorf("query %s: %w", endpoint, res.Err)
		}
		return res.Val.(string), nil
	}
}

func (c *Client) cacheEnabled() bool {
	return c.cache != nil && c.cacheTTL > 0
}

func (c *Client) post(ctx context.Context, endpoint, query string) (string, error) {
	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return "", fmt.Errorf("marshal query: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", c.transportError(ctx, reqCtx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp); err != nil {
		return "", err
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		return "", fmt.Errorf("%w: content type %q", ErrNotJSON, ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", c.transportError(ctx, reqCtx, err)
	}
	return parseResponse(data)
}

func (c *Client) transportError(parent, reqCtx context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{After: c.timeout}
	}
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}

func checkStatus(resp *http.Response) error {
	var kind error
	switch code := resp.StatusCode; {
	case code == http.StatusUnauthorized:
		kind = ErrUnauthorized
	case code == http.StatusTooManyRequests:
		kind = ErrRateLimited
	case code >= 500:
		kind = ErrServer
	case code < 200 || code > 299:
		kind = ErrHTTPStatus
	default:
		return nil
	}
	return &StatusError{Code: resp.StatusCode, Status: statusText(resp), Kind: kind}
}

// statusText returns the reason phrase without the leading code.
func statusText(resp *http.Response) string {
	if _, text, ok := strings.Cut(resp.Status, " "); ok {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

func parseResponse(data []byte) (string, error) {
	var body any
	if err := json.Unmarshal(data, &body); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	obj, ok := body.(map[string]any)
	if !ok {
		return "", fmt.Errorf("%w: expected an object", ErrMalformedResponse)
	}

	switch v := obj["response"].(type) {
	case nil:
		return NoResponse, nil
	case string:
		if v == "" {
			return NoResponse, nil
		}
		return v, nil
	case bool:
		if !v {
			return NoResponse, nil
		}
	case float64:
		if v == 0 {
			return NoResponse, nil
		}
	}
	out, err := json.Marshal(obj["response"])
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return string(out), nil
}

func isBlank(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) }) < 0
}
