// Package external holds the clients for the upstream data providers:
// OpenWeather, Google Routes, the OpenAI Responses API and the footfall model
// service. Every client sends through a BaseClient, so all providers share
// one breaker-and-retry discipline and one error vocabulary.
package external

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"crowdrisk/internal/types"
)

// Breaker tuning shared by all providers. A provider that fails more than
// breakerTripAfter times in a row is skipped for breakerCooldown, which lets
// the tiered fetchers fall through to the next tier immediately.
const (
	breakerTripAfter = 5
	breakerCooldown  = 30 * time.Second
	breakerWindow    = 60 * time.Second
)

// RetryPolicy bounds the retries of one call.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy allows one quick retry, which still fits inside the
// per-tier deadline.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 1,
		MinWait:    200 * time.Millisecond,
		MaxWait:    1 * time.Second,
	}
}

// BaseClient sends provider requests through a circuit breaker with bounded
// retries on 429 and 5xx.
type BaseClient struct {
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker[*http.Response]
	retryPolicy RetryPolicy
	userAgent   string
	sleepFn     func(time.Duration)
}

// BaseClientOption configures a BaseClient.
type BaseClientOption func(*BaseClient)

// WithSleepFunc replaces time.Sleep between retries.
func WithSleepFunc(fn func(time.Duration)) BaseClientOption {
	return func(c *BaseClient) {
		c.sleepFn = fn
	}
}

func providerBreaker(provider string) *gobreaker.CircuitBreaker[*http.Response] {
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        provider,
		MaxRequests: 1,
		Interval:    breakerWindow,
		Timeout:     breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > breakerTripAfter
		},
	})
}

// NewBaseClient creates a BaseClient with its own breaker named after the
// provider.
func NewBaseClient(httpClient *http.Client, provider string, retryPolicy RetryPolicy, userAgent string, opts ...BaseClientOption) *BaseClient {
	return NewBaseClientWithBreaker(httpClient, providerBreaker(provider), retryPolicy, userAgent, opts...)
}

// NewBaseClientWithBreaker creates a BaseClient around an existing breaker.
func NewBaseClientWithBreaker(httpClient *http.Client, breaker *gobreaker.CircuitBreaker[*http.Response], retryPolicy RetryPolicy, userAgent string, opts ...BaseClientOption) *BaseClient {
	c := &BaseClient{
		client:      httpClient,
		breaker:     breaker,
		retryPolicy: retryPolicy,
		userAgent:   userAgent,
		sleepFn:     time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// errRetryableStatus marks a 429 or 5xx response as a breaker failure.
var errRetryableStatus = errors.New("retryable upstream status")

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// Do sends req, tagging it with the request ID from its context and the
// client User-Agent. Responses other than 429/5xx are returned unchanged and
// the caller closes the body. When retries run out, or the breaker is open,
// Do returns an upstream *types.AppError.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	if id := types.GetRequestID(req.Context()); id != "" {
		req.Header.Set("X-Request-ID", id)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	rewind, err := bufferBody(req)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "buffering request body", err)
	}

	attempts := 1 + c.retryPolicy.MaxRetries
	var (
		resp    *http.Response
		sendErr error
	)
	for attempt := range attempts {
		rewind()
		resp, sendErr = c.send(req)
		if sendErr == nil {
			return resp, nil
		}

		last := attempt == attempts-1
		if last || breakerRejected(sendErr) || req.Context().Err() != nil {
			break
		}
		wait := c.computeBackoff(attempt, resp)
		if resp != nil {
			resp.Body.Close()
			resp = nil
		}
		c.sleepFn(wait)
	}

	if resp != nil {
		resp.Body.Close()
	}
	return nil, c.mapError(resp, sendErr)
}

// send runs one attempt through the breaker. Retryable statuses come back
// with both the response and errRetryableStatus.
func (c *BaseClient) send(req *http.Request) (*http.Response, error) {
	return c.breaker.Execute(func() (*http.Response, error) {
		r, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		if retryableStatus(r.StatusCode) {
			return r, fmt.Errorf("%w: %d", errRetryableStatus, r.StatusCode)
		}
		return r, nil
	})
}

// bufferBody reads the request body once and returns a func that resets it
// before every attempt.
func bufferBody(req *http.Request) (func(), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return func() {}, nil
	}
	buf, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, err
	}
	return func() {
		req.Body = io.NopCloser(bytes.NewReader(buf))
		req.ContentLength = int64(len(buf))
	}, nil
}

func breakerRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// computeBackoff honours Retry-After (seconds or HTTP date) capped at
// MaxWait, else jittered exponential backoff within [MinWait, MaxWait].
func (c *BaseClient) computeBackoff(attempt int, resp *http.Response) time.Duration {
	p := c.retryPolicy
	if wait, ok := retryAfter(resp); ok {
		return min(max(wait, p.MinWait), p.MaxWait)
	}

	ceiling := min(float64(p.MinWait)*math.Pow(2, float64(attempt)), float64(p.MaxWait))
	floor := float64(p.MinWait)
	if ceiling <= floor {
		return p.MinWait
	}
	return time.Duration(floor + rand.Float64()*(ceiling-floor))
}

func retryAfter(resp *http.Response) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(h); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(h); err == nil {
		return time.Until(at), true
	}
	return 0, false
}

// mapError converts the final failure into an upstream AppError.
func (c *BaseClient) mapError(resp *http.Response, err error) *types.AppError {
	switch {
	case breakerRejected(err):
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, "provider circuit open", err)
	case resp != nil && resp.StatusCode == http.StatusTooManyRequests:
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, "provider rate limit exceeded", err)
	case resp != nil && resp.StatusCode >= 500:
		return types.NewAppError(types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("provider returned %d after retries", resp.StatusCode), err)
	default:
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "provider request failed", err)
	}
}
