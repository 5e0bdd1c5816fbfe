// Package github reads the CI context ota needs from GitHub: the head
// branch of the pull request being built and the latest ota release.
package github

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"
)

const (
	// TokenEnv is the environment variable for the GitHub token
	TokenEnv = "GITHUB_TOKEN"

	// DefaultTimeout is the default HTTP timeout
	DefaultTimeout = 30 * time.Second
)

// ClientOption configures a Client
type ClientOption func(*Client)

// WithBaseURL points the client at a different API root, for tests and
// GitHub Enterprise.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// Client wraps a go-github client.
type Client struct {
	gh         *github.Client
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client. An empty token makes anonymous requests,
// which is enough for public repositories.
func NewClient(token string, opts ...ClientOption) (*Client, error) {
	c := &Client{}
	for _, opt := range opts {
		opt(c)
	}

	httpClient := c.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if token != "" {
		base := httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		wrapped := *httpClient
		wrapped.Transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
			Base:   base,
		}
		httpClient = &wrapped
	}

	c.gh = github.NewClient(httpClient)
	if c.baseURL != "" {
		baseURL := c.baseURL
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		parsed, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub base URL %q: %w", c.baseURL, err)
		}
		c.gh.BaseURL = parsed
	}
	return c, nil
}

// NewClientFromEnv creates a client using GITHUB_TOKEN when it is set.
func NewClientFromEnv(opts ...ClientOption) (*Client, error) {
	return NewClient(os.Getenv(TokenEnv), opts...)
}
