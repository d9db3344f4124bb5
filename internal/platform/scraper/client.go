package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/phrazzld/scout-api/internal/config"
	"github.com/phrazzld/scout-api/internal/domain"
	"github.com/phrazzld/scout-api/internal/platform/logger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NotFoundMessage is the message of not-found status check errors.
const NotFoundMessage = "Operation not found"

// maxErrorBody bounds how much of an error response is quoted in messages.
const maxErrorBody = 512

// ErrSubmitFailed wraps every failed submission.
var ErrSubmitFailed = errors.New("scrape submission failed")

// Client talks to the remote scraping worker over HTTP.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	limiter    *RateLimiter
	logger     *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimiter replaces the request rate limiter.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(c *Client) { c.limiter = rl }
}

// NewClient creates a Client from configuration.
func NewClient(cfg config.ScraperConfig, logger *slog.Logger, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid scraper base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid scraper base url %q: scheme and host are required", cfg.BaseURL)
	}

	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}

	hc := &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	c := &Client{
		baseURL:    base,
		httpClient: hc,
		limiter:    NewRateLimiter(cfg.RateLimit, burst),
		logger:     logger.With(slog.String("component", "scraper_client")),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Submit starts a scraping job via POST /remote-scrape.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode request: %v", ErrSubmitFailed, err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/remote-scrape", nil, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrSubmitFailed, resp.StatusCode, readSnippet(resp.Body))
	}

	var out SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrSubmitFailed, err)
	}

	logger.FromContextOrDefault(ctx, c.logger).Info("scrape submitted",
		"target", req.Target,
		"status", out.Status,
		"operation", out.Operation,
		"exec_id", out.ExecID)

	return &out, nil
}

// CheckStatus queries GET /scrape-status for the given operation handle.
// Errors are always *domain.StatusCheckError:
//   - transport failures, timeouts and 502/503/504 are network errors
//   - 404 is a not-found error
//   - any other failure is an other error
func (c *Client) CheckStatus(ctx context.Context, handle string) (domain.StatusReport, error) {
	resp, err := c.do(ctx, http.MethodGet, "/scrape-status", url.Values{"operation": {handle}}, nil)
	if err != nil {
		return domain.StatusReport{}, domain.NewNetworkError("network error", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.StatusReport{}, domain.NewNotFoundError(NotFoundMessage)
	case isGatewayStatus(resp.StatusCode):
		return domain.StatusReport{}, domain.NewNetworkError(
			fmt.Sprintf("network error: HTTP %d", resp.StatusCode), nil)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return domain.StatusReport{}, domain.NewOtherError(
			fmt.Sprintf("HTTP %d: %s", resp.StatusCode, readSnippet(resp.Body)), nil)
	}

	var body statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.StatusReport{}, domain.NewOtherError("invalid status response", err)
	}

	message := body.Message
	if message == "" {
		message = body.ErrorMessage
	}

	return domain.StatusReport{
		Status:  body.Status,
		Results: body.Results,
		Message: message,
	}, nil
}

// DeleteArtifacts removes the worker-side artifacts of a finished execution
// via DELETE /scrape-artifacts.
func (c *Client) DeleteArtifacts(ctx context.Context, target, execID string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/scrape-artifacts",
		url.Values{"target": {target}, "exec_id": {execID}}, nil)
	if err != nil {
		return fmt.Errorf("failed to delete artifacts: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("failed to delete artifacts: HTTP %d: %s", resp.StatusCode, readSnippet(resp.Body))
	}

	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger.FromContextOrDefault(ctx, c.logger).Debug("scraper request",
		"method", method,
		"path", path)

	return c.httpClient.Do(req)
}

func isGatewayStatus(code int) bool {
	return code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable ||
		code == http.StatusGatewayTimeout
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(b))
}
