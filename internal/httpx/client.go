// Package httpx is the pipeline's resilient HTTP transport: bounded
// retries for transport faults, rate-limit-aware backoff for 429/423,
// proactive request throttling, and request memoization through the
// response cache. It performs no ledger or cache mutations of its own
// beyond the memoization path the caller asks for.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/millhouse-foods/erpsync/internal/core/ports/driven"
	"github.com/millhouse-foods/erpsync/internal/logger"
)

const (
	// DefaultTimeout is the default per-request HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries bounds both transport and rate-limit retries.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the fixed delay between transport retries
	// and the fallback rate-limit wait when the server gives no hint.
	DefaultRetryDelay = 10 * time.Second
)

// Backoff controls how long to wait before re-issuing a rate-limited
// request when the response body carries no wait hint.
type Backoff struct {
	// Base is the first wait. Zero means DefaultRetryDelay.
	Base time.Duration

	// Exponential doubles the wait on every attempt (Base·2ⁿ).
	// Long-running batch fetches use this; single posts do not.
	Exponential bool
}

func (b Backoff) delay(attempt int) time.Duration {
	base := b.Base
	if base <= 0 {
		base = DefaultRetryDelay
	}
	if !b.Exponential {
		return base
	}
	return base << attempt
}

// BasicAuth carries credentials for HTTP basic authentication.
type BasicAuth struct {
	Username string
	Password string
}

// Request describes one HTTP call. Body is JSON-encoded when non-nil.
type Request struct {
	Method    string
	URL       string
	Header    http.Header
	Query     map[string]string
	Body      any
	BasicAuth *BasicAuth
}

// Response is the decoded-enough result of a successful call.
type Response struct {
	StatusCode int
	Body       []byte
}

// Options configures a Client.
type Options struct {
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	Backoff    Backoff

	// RatePerSec enables proactive throttling; zero disables it.
	RatePerSec float64
}

// Client performs HTTP calls with bounded, auditable retry loops. The
// retry state is an explicit attempt counter, never recursion, so the
// termination bound is visible in one place.
type Client struct {
	http       *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
	backoff    Backoff
}

// NewClient creates a client with the given options, filling defaults
// for zero values.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}

	var limiter *rate.Limiter
	if opts.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), 1)
	}

	return &Client{
		http:       &http.Client{Timeout: timeout},
		limiter:    limiter,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		backoff:    opts.Backoff,
	}
}

// Do performs the request, transparently absorbing rate limiting and
// transient transport faults up to the retry budget.
//
// 429 and 423 are the only retried status codes: the wait comes from
// the server's body hint when present, the configured backoff
// otherwise. Any other non-2xx status returns an *APIError carrying
// the body verbatim. Transport faults retry on a fixed delay and then
// surface as a *TransportError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	var (
		transportAttempts int
		rateAttempts      int
		lastWait          time.Duration
		lastErr           error
	)

	for {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, err := c.send(ctx, req)
		if err != nil {
			lastErr = err
			transportAttempts++
			if transportAttempts > c.maxRetries {
				return nil, &TransportError{URL: req.URL, Attempts: transportAttempts, Err: lastErr}
			}
			logger.Warn("Transport failure for %s (attempt %d/%d): %v",
				req.URL, transportAttempts, c.maxRetries+1, err)
			if err := sleep(ctx, c.retryDelay); err != nil {
				return nil, err
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
			return resp, nil

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusLocked:
			rateAttempts++
			if rateAttempts > c.maxRetries {
				return nil, &RateLimitError{URL: req.URL, Attempts: rateAttempts, LastWait: lastWait}
			}
			wait := waitHint(resp.Body)
			if wait <= 0 {
				wait = c.backoff.delay(rateAttempts - 1)
			}
			lastWait = wait
			logger.Warn("Rate limited by %s, retrying in %s (attempt %d/%d)",
				req.URL, wait, rateAttempts, c.maxRetries+1)
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}

		default:
			return nil, &APIError{StatusCode: resp.StatusCode, Body: resp.Body, URL: req.URL}
		}
	}
}

// DoCached performs a GET through the response cache: a fresh cached
// body short-circuits the wire call, and a meaningful response is
// stored afterwards. Non-GET requests go straight to Do.
func (c *Client) DoCached(ctx context.Context, cache driven.ResponseCache, req Request) (*Response, error) {
	if req.Method != http.MethodGet || cache == nil {
		return c.Do(ctx, req)
	}

	key := CacheKey(req.URL, req.Query, req.Body)
	if body, err := cache.Get(ctx, key); err == nil {
		logger.Debug("Cache hit for %s", req.URL)
		return &Response{StatusCode: http.StatusOK, Body: body}, nil
	}

	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	// The cache refuses empty/meaningless bodies itself; a Put
	// failure only costs a future lookup.
	if err := cache.Put(ctx, key, resp.Body); err != nil {
		logger.Warn("Failed to cache response for %s: %v", req.URL, err)
	}
	return resp, nil
}

// send performs exactly one HTTP round trip.
func (c *Client) send(ctx context.Context, req Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encoding body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	q := httpReq.URL.Query()
	for k, v := range req.Query {
		q.Set(k, v)
	}
	httpReq.URL.RawQuery = q.Encode()

	httpReq.Header.Set("Content-Type", "application/json")
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if req.BasicAuth != nil {
		httpReq.SetBasicAuth(req.BasicAuth.Username, req.BasicAuth.Password)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	return &Response{StatusCode: httpResp.StatusCode, Body: respBody}, nil
}

// waitHint extracts the server-provided wait from a rate-limit
// response body of the form {"metadata":{"wait":<seconds>}}.
func waitHint(body []byte) time.Duration {
	var parsed struct {
		Metadata struct {
			Wait float64 `json:"wait"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0
	}
	if parsed.Metadata.Wait <= 0 {
		return 0
	}
	return time.Duration(parsed.Metadata.Wait * float64(time.Second))
}

// sleep waits for d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
