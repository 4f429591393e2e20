// Package apiclient is the single-request HTTP transport shared by every
// Gemini REST call:
// - API key query parameter on endpoint-relative requests
// - JSON or raw request bodies
// - Response status, headers and body returned intact
// - Optional circuit breaking
//
// It never retries. Callers own any retry policy.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"geminikit/internal/core"
	"geminikit/internal/httpclient"
)

// Config holds configuration for the API client
type Config struct {
	// BaseURL is the API base URL, e.g. https://generativelanguage.googleapis.com/v1beta
	BaseURL string

	// APIKey is sent as the ?key= query parameter on endpoint-relative requests
	APIKey string

	// CircuitBreaker is nil when circuit breaking is disabled
	CircuitBreaker *CircuitBreakerConfig
}

// DefaultConfig returns a configuration without circuit breaking
func DefaultConfig(baseURL, apiKey string) Config {
	return Config{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
	}
}

// HeaderSetter is a function that sets headers on an HTTP request
type HeaderSetter func(req *http.Request)

// Client issues single HTTP requests against the API
type Client struct {
	httpClient     *http.Client
	config         Config
	headerSetter   HeaderSetter
	breaker        *breaker
}

// New creates a new API client with the default HTTP client
func New(config Config, headerSetter HeaderSetter) *Client {
	return NewWithHTTPClient(httpclient.NewHTTPClient(nil), config, headerSetter)
}

// NewWithHTTPClient creates a new API client with a custom HTTP client
func NewWithHTTPClient(httpClient *http.Client, config Config, headerSetter HeaderSetter) *Client {
	if httpClient == nil {
		httpClient = httpclient.NewHTTPClient(nil)
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	c := &Client{
		httpClient:   httpClient,
		config:       config,
		headerSetter: headerSetter,
	}

	if config.CircuitBreaker != nil {
		c.breaker = newBreaker(*config.CircuitBreaker)
	}

	return c
}

// BaseURL returns the current base URL
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Request represents an HTTP request to be made
type Request struct {
	Method string

	// Endpoint is appended to BaseURL; the API key is added to its query.
	Endpoint string

	// URL, when set, is used verbatim instead of BaseURL+Endpoint and no key is added.
	// Upload session URLs are already authorized by the server.
	URL string

	Query url.Values

	// Body is JSON marshaled if not nil. Ignored when RawBody is set.
	Body interface{}

	// RawBody is sent as-is. A non-nil empty slice sends Content-Length: 0.
	RawBody []byte

	Headers map[string]string
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IsSuccess reports a 2xx status
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Do executes a request, maps non-2xx statuses to an api_error and unmarshals the body into result
func (c *Client) Do(ctx context.Context, req Request, result interface{}) error {
	resp, err := c.DoRaw(ctx, req)
	if err != nil {
		return err
	}

	if !resp.IsSuccess() {
		return core.ParseAPIError(resp.StatusCode, resp.Body)
	}

	if result != nil && len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, result); err != nil {
			apiErr := core.ParseAPIError(resp.StatusCode, resp.Body)
			apiErr.Message = "failed to unmarshal response"
			apiErr.Err = err
			return apiErr
		}
	}

	return nil
}

// DoRaw executes exactly one request and returns the response whatever its status.
// An error is returned only when no response was received.
func (c *Client) DoRaw(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	trial := false
	if c.breaker != nil {
		if trial, err = c.breaker.acquire(); err != nil {
			return nil, err
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.record(trial, false)
		return nil, core.NewTransportError("failed to send request", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.record(trial, false)
		return nil, core.NewTransportError("failed to read response", err)
	}

	c.record(trial, resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// CircuitState reports the circuit breaker position; always closed when disabled.
func (c *Client) CircuitState() CircuitState {
	if c.breaker == nil {
		return CircuitClosed
	}
	return c.breaker.State()
}

func (c *Client) record(trial, ok bool) {
	if c.breaker != nil {
		c.breaker.release(trial, ok)
	}
}

// buildRequest creates an HTTP request from a Request
func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	target, err := c.resolveURL(req)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	isJSON := false
	switch {
	case req.RawBody != nil:
		bodyReader = bytes.NewReader(req.RawBody)
	case req.Body != nil:
		bodyBytes, err := json.Marshal(req.Body)
		if err != nil {
			return nil, core.NewInvalidRequestError("failed to marshal request", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
		isJSON = true
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, bodyReader)
	if err != nil {
		return nil, core.NewInvalidRequestError("failed to create request", err)
	}

	if isJSON {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if c.headerSetter != nil {
		c.headerSetter(httpReq)
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	return httpReq, nil
}

func (c *Client) resolveURL(req Request) (string, error) {
	if req.URL != "" {
		if len(req.Query) == 0 {
			return req.URL, nil
		}
		u, err := url.Parse(req.URL)
		if err != nil {
			return "", core.NewInvalidRequestError("invalid request url", err)
		}
		q := u.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		return u.String(), nil
	}

	u, err := url.Parse(c.config.BaseURL + "/" + strings.TrimLeft(req.Endpoint, "/"))
	if err != nil {
		return "", core.NewInvalidRequestError("invalid endpoint", err)
	}
	q := u.Query()
	for k, vs := range req.Query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	// The native API authenticates with a key query parameter; it ends up in
	// proxy and access logs, so never log full request URLs.
	if c.config.APIKey != "" {
		q.Set("key", c.config.APIKey)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
