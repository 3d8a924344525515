package places

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/dermatlas/backend/pkg/errors"
	"github.com/dermatlas/backend/pkg/retry"
)

const defaultHTTPTimeout = 15 * time.Second

// Gateway serializes every call to the upstream search service behind one
// shared rate limiter, retries throttled and server-side failures with
// exponential backoff, and bills each attempt against a process-wide request
// budget. All upstream traffic in a run must flow through a single Gateway.
type Gateway struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	retryCfg   retry.Config

	mu          sync.Mutex
	requests    int
	maxRequests int
}

// NewGateway creates a gateway targeting the given steady-state request rate.
// maxRequests <= 0 disables the budget cap.
func NewGateway(requestsPerSecond float64, maxRequests int, retryCfg retry.Config, httpClient *http.Client) *Gateway {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Gateway{
		httpClient:  httpClient,
		limiter:     rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		retryCfg:    retryCfg,
		maxRequests: maxRequests,
	}
}

// NewUnthrottledGateway returns a gateway with no delay between calls and no
// budget, for tests.
func NewUnthrottledGateway(httpClient *http.Client) *Gateway {
	return &Gateway{
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Inf, 1),
		retryCfg:   retry.Config{MaxAttempts: 1},
	}
}

// Requests returns the number of upstream attempts billed so far
func (g *Gateway) Requests() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests
}

// Exhausted reports whether the request budget has been spent
func (g *Gateway) Exhausted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.maxRequests > 0 && g.requests >= g.maxRequests
}

// reserve bills one attempt, failing once the budget is spent. Retries are
// billed too: the upstream charges per call, not per logical query.
func (g *Gateway) reserve() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.maxRequests > 0 && g.requests >= g.maxRequests {
		return apperrors.NewBudgetError(fmt.Sprintf("request budget of %d exhausted", g.maxRequests))
	}
	g.requests++
	return nil
}

// Do executes one upstream call built by makeReq. Responses with status 429
// or 5xx are retried with backoff and jitter up to the configured attempt
// count; when attempts run out the last failing response is returned rather
// than an error, so the caller decides whether an empty result is acceptable.
// Other non-2xx responses are returned as-is for the caller to classify.
func (g *Gateway) Do(ctx context.Context, makeReq func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	maxAttempts := g.retryCfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		// The global budget wins over any in-flight retry sequence.
		if err := g.reserve(); err != nil {
			return nil, err
		}

		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := makeReq(ctx)
		if err != nil {
			return nil, err
		}

		resp, err := g.httpClient.Do(req)
		if err == nil && !retryableStatus(resp.StatusCode) {
			return resp, nil
		}

		if attempt == maxAttempts {
			if err != nil {
				// Network-level failure with no response to hand back.
				return nil, apperrors.NewExternalError("upstream request failed", err)
			}
			return resp, nil
		}
		if err == nil {
			drain(resp)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(g.retryCfg.NextDelay(attempt)):
		}
	}

	return nil, apperrors.NewExternalError("upstream request failed", nil)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}

// ReplayableBody builds a request factory for a POST with a fixed JSON body,
// so each retry attempt sends a fresh, readable body.
func ReplayableBody(method, url string, body []byte, header http.Header) func(ctx context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, err
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		return req, nil
	}
}
