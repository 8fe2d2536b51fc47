// Package fetch provides the HTTP client used for registry queries, shared
// catalog downloads and BOM retrieval, with retry, per-host circuit breaking
// and DNS caching. Every request carries a deadline; transport failures and
// timeouts surface as ErrNetwork so callers can degrade a single source
// without aborting a run.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/dnscache"
)

var (
	// ErrNetwork covers timeouts, connection failures and upstream 5xx
	// responses after retries are exhausted.
	ErrNetwork = errors.New("network error")
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("not found")
	// ErrRateLimited is returned when the upstream keeps rate limiting
	// past the retry budget.
	ErrRateLimited = errors.New("rate limited by upstream")
)

// HTTPError carries the status code of a non-success response.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

// Unwrap maps response classes onto the sentinel taxonomy.
func (e *HTTPError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return ErrNetwork
	}
}

// Client is a retrying HTTP client for registry and catalog endpoints.
type Client struct {
	http       *http.Client
	userAgent  string
	maxRetries int
	baseDelay  time.Duration
	breakers   *breakerSet
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithMaxRetries sets the maximum retry attempts.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithBaseDelay sets the base delay for exponential backoff.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithHTTPClient replaces the underlying HTTP client. Intended for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// NewClient creates a Client with DNS-cached dialing, a 30s request timeout,
// 3 retries with exponential backoff and jitter, and per-host circuit
// breakers.
func NewClient(opts ...Option) *Client {
	resolver := &dnscache.Resolver{}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			resolver.Refresh(true)
		}
	}()

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	c := &Client{
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					host, port, err := net.SplitHostPort(addr)
					if err != nil {
						return nil, err
					}
					ips, err := resolver.LookupHost(ctx, host)
					if err != nil {
						return nil, err
					}
					for _, ip := range ips {
						conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
						if err == nil {
							return conn, nil
						}
					}
					return nil, fmt.Errorf("failed to dial any resolved IP for %s", host)
				},
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		userAgent:  "upcat/1.0",
		maxRetries: 3,
		baseDelay:  500 * time.Millisecond,
		breakers:   newBreakerSet(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetBytes fetches url and returns the response body. 404 maps to
// ErrNotFound; rate limits and 5xx responses are retried, then surface as
// ErrRateLimited / ErrNetwork.
func (c *Client) GetBytes(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := c.breakers.call(url, func() error {
		var err error
		body, err = c.getWithRetry(ctx, url)
		return err
	})
	return body, err
}

// GetJSON fetches url and decodes the JSON response into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	body, err := c.GetBytes(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding response from %s: %w", url, err)
	}
	return nil
}

func (c *Client) getWithRetry(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff with 10% jitter.
			delay := c.baseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
			delay += time.Duration(float64(delay) * rand.Float64() * 0.1)

			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrNetwork, ctx.Err())
			case <-time.After(delay):
			}
		}

		body, err := c.doGet(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err

		// Not-found is authoritative; nothing to retry.
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	return nil, lastErr
}

func (c *Client) doGet(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: reading body: %v", ErrNetwork, err)
		}
		return body, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				select {
				case <-ctx.Done():
				case <-time.After(time.Duration(secs) * time.Second):
				}
			}
		}
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: url}

	default:
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}
}
