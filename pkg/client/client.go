// Package client provides the Coda API HTTP client with bearer
// authentication, error classification and retry with backoff.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the Coda API root.
const DefaultBaseURL = "https://coda.io/apis/v1"

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4096

// Client is the Coda API client.
type Client struct {
	httpClient *http.Client
	config     Config
	apiHost    string
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is prepended to relative request paths.
	BaseURL string

	// Token is the bearer token (REQUIRED). It is only sent to the host
	// of BaseURL.
	Token string

	// UserAgent header
	UserAgent string

	// Timeout per HTTP round trip
	Timeout time.Duration

	// Retry policy for 429, 5xx and network errors
	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(token, userAgent string) Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		Token:     token,
		UserAgent: userAgent,
		Timeout:   30 * time.Second,
		Retry:     DefaultRetryConfig(),
	}
}

// New creates a new Coda client.
func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("auth token is required")
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config:  cfg,
		apiHost: strings.ToLower(base.Host),
		logger:  log.With().Str("component", "coda-client").Logger(),
	}, nil
}

// Do performs an HTTP request with authentication, classification and retry.
// The bearer token is attached only when the request targets the API host.
//
// Responses with a 2xx or 3xx status are returned as is. Non-retryable
// error responses are returned as *HTTPError; retryable ones are retried
// and, once attempts run out, returned wrapped in ErrRetryExhausted.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := req.URL.Path

	startTime := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(startTime).Seconds())
	}()

	if strings.EqualFold(req.URL.Host, c.apiHost) {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	} else {
		req.Header.Del("Authorization")
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Str("query", req.URL.RawQuery).
		Msg("Executing Coda request")

	var resp *http.Response
	err := retryWithBackoff(ctx, c.config.Retry, c.logger, func() error {
		r, reqErr := c.httpClient.Do(req.Clone(ctx))
		if reqErr != nil {
			if ctx.Err() != nil {
				// Cancellation is not a network fault; do not retry it.
				return &cancelledError{err: ctx.Err()}
			}
			c.logger.Error().Err(reqErr).Str("endpoint", endpoint).Msg("HTTP request failed")
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues("network_error").Inc()
			return reqErr
		}

		requestsTotal.WithLabelValues(strconv.Itoa(r.StatusCode)).Inc()

		if r.StatusCode < 400 {
			resp = r
			return nil
		}

		httpErr := NewHTTPError(r)
		errorsTotal.WithLabelValues(string(httpErr.ErrorClass)).Inc()

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status_code", r.StatusCode).
			Str("error_class", string(httpErr.ErrorClass)).
			Msg("Coda request error")

		return httpErr
	})
	if err != nil {
		if ce, ok := err.(*cancelledError); ok {
			return nil, ce.err
		}
		return nil, err
	}

	return resp, nil
}

// Get performs a GET request. Relative paths are resolved against BaseURL;
// absolute URLs are used unchanged.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = c.config.BaseURL + path
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	return c.Do(req)
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// NewHTTPError drains and closes an error response.
func NewHTTPError(resp *http.Response) *HTTPError {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	e := &HTTPError{
		StatusCode: resp.StatusCode,
		ErrorClass: ClassifyStatus(resp.StatusCode),
		Body:       strings.TrimSpace(string(body)),
	}
	if resp.Request != nil && resp.Request.URL != nil {
		e.URL = resp.Request.URL.Redacted()
	}
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			e.RetryAfter = time.Duration(secs) * time.Second
		} else if t, err := http.ParseTime(ra); err == nil {
			e.RetryAfter = time.Until(t)
		}
	}
	return e
}

// cancelledError stops the retry loop when the caller's context ends.
type cancelledError struct {
	err error
}

func (e *cancelledError) Error() string { return e.err.Error() }
func (e *cancelledError) Unwrap() error { return e.err }
