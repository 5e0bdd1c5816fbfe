package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	holonlog "github.com/holon-run/ota/pkg/log"
)

const (
	// DefaultBaseURL is the default GraphQL endpoint
	DefaultBaseURL = "https://api.ota.holon.run/graphql"

	// TokenEnv is the environment variable for the access token
	TokenEnv = "OTA_TOKEN"

	// LegacyTokenEnv is the legacy environment variable for the access token
	LegacyTokenEnv = "HOLON_OTA_TOKEN"

	// DefaultTimeout is the default HTTP timeout
	DefaultTimeout = 30 * time.Second

	requestIDHeader = "X-Request-Id"
)

// ClientOption configures a Client
type ClientOption func(*Client)

// WithBaseURL sets a custom GraphQL endpoint
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithTimeout sets a custom HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithHTTPClient sets a custom HTTP client. Its transport is wrapped with
// the bearer token transport.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithRetryConfig configures retry behavior
func WithRetryConfig(config *RetryConfig) ClientOption {
	return func(c *Client) {
		c.retryConfig = config
	}
}

// Client talks to the update service GraphQL API.
//
// Example:
//
//	client := api.NewClient(token,
//	    api.WithRetryConfig(api.DefaultRetryConfig()),
//	)
//	ref, err := client.EnsureBranchExists(ctx, api.EnsureBranchParams{AppID: id, BranchName: "main"})
type Client struct {
	token       string
	baseURL     string
	httpClient  *http.Client
	timeout     time.Duration
	retryConfig *RetryConfig
}

// NewClient creates a new API client authenticated with token
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		token:   token,
		baseURL: DefaultBaseURL,
		timeout: DefaultTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	if token != "" {
		base := c.httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		wrapped := *c.httpClient
		wrapped.Transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
			Base:   base,
		}
		c.httpClient = &wrapped
	}

	return c
}

// NewClientFromEnv creates a new client using the token from environment variables
func NewClientFromEnv(opts ...ClientOption) (*Client, error) {
	token := os.Getenv(TokenEnv)
	if token == "" {
		token = os.Getenv(LegacyTokenEnv)
	}
	if token == "" {
		return nil, fmt.Errorf("%s or %s environment variable is required", TokenEnv, LegacyTokenEnv)
	}

	return NewClient(token, opts...), nil
}

// BaseURL returns the GraphQL endpoint the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage      `json:"data"`
	Errors []GraphQLErrorDetail `json:"errors,omitempty"`
}

// DoOption configures a single Do call
type DoOption func(*doOptions)

type doOptions struct {
	noRetry bool
}

// NoRetry sends the request exactly once, whatever the retry config.
// Mutations that are not idempotent use it so a failure after the server
// committed cannot apply them twice.
func NoRetry() DoOption {
	return func(o *doOptions) {
		o.noRetry = true
	}
}

// Do executes a GraphQL document and decodes the "data" member into result.
// Both queries and mutations go through here.
func (c *Client) Do(ctx context.Context, query string, variables map[string]interface{}, result interface{}, opts ...DoOption) error {
	var o doOptions
	for _, opt := range opts {
		opt(&o)
	}

	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	retry := c.retryConfig
	if o.noRetry {
		retry = nil
	}

	requestID := uuid.NewString()
	body, err := c.send(ctx, payload, requestID, retry)
	if err != nil {
		return err
	}

	var envelope graphQLResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return &GraphQLError{Errors: envelope.Errors, RequestID: requestID}
	}
	if result == nil || len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, result); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

// send posts payload, retrying according to retry, and returns the body of
// the first 2xx response. A nil retry sends once.
func (c *Client) send(ctx context.Context, payload []byte, requestID string, retry *RetryConfig) ([]byte, error) {
	var lastErr error

	maxAttempts := 1
	if retry != nil && retry.MaxAttempts > 0 {
		maxAttempts = retry.MaxAttempts
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := retry.GetDelay(attempt - 1)
			holonlog.Debug("retrying request", "attempt", attempt+1, "delay", delay, "request_id", requestID)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set(requestIDHeader, requestID)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if retry != nil && IsRetryableError(err) && attempt < maxAttempts-1 {
				continue
			}
			return nil, fmt.Errorf("request failed: %w", err)
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := parseErrorResponse(resp.StatusCode, body)
			apiErr.RequestID = requestID
			lastErr = apiErr

			if retry != nil && retry.ShouldRetry(resp.StatusCode) && attempt < maxAttempts-1 {
				continue
			}
			return nil, apiErr
		}
		if readErr != nil {
			return nil, fmt.Errorf("failed to read response: %w", readErr)
		}

		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
