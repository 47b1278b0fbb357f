package httpx

import (
	"errors"
	"fmt"
	"time"
)

// RateLimitError indicates the destination kept answering 429/423
// until the local retry budget ran out.
type RateLimitError struct {
	URL      string
	Attempts int
	LastWait time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("httpx: rate limited after %d attempts (last wait %s): %s",
		e.Attempts, e.LastWait, e.URL)
}

// APIError represents a non-retryable application error (4xx other
// than rate limiting, or an unexpected 5xx). The response body is kept
// verbatim so the destination's own validation detail is not lost.
type APIError struct {
	StatusCode int
	Body       []byte
	URL        string
}

func (e *APIError) Error() string {
	body := string(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("httpx: API error %d: %s (URL: %s)", e.StatusCode, body, e.URL)
}

// TransportError indicates the request never produced an HTTP response
// within the bounded retry budget.
type TransportError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("httpx: transport failure after %d attempts: %v (URL: %s)",
		e.Attempts, e.Err, e.URL)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsNotFound checks if the error is a destination 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}

// IsRateLimited checks if the error indicates exhausted rate-limit retries.
func IsRateLimited(err error) bool {
	var rlErr *RateLimitError
	return errors.As(err, &rlErr)
}

// IsTransient checks if the error is worth a later run retrying:
// transport failures and exhausted rate limits, never 4xx rejections.
func IsTransient(err error) bool {
	var trErr *TransportError
	return errors.As(err, &trErr) || IsRateLimited(err)
}
