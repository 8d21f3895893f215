package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client wraps resty.Client with the timeout and retry behaviour subtitle
// fetches need
type Client struct {
	resty   *resty.Client
	timeout time.Duration
	logger  *slog.Logger
}

// ClientConfig holds configuration for the HTTP client
type ClientConfig struct {
	Timeout    time.Duration
	MaxRetries int
	UserAgent  string
	Logger     *slog.Logger
}

// DefaultClientConfig returns sensible defaults
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:    15 * time.Second,
		MaxRetries: 2,
		UserAgent:  "provideo/1.0",
	}
}

// NewClient creates a new HTTP client with the given configuration
func NewClient(config ClientConfig) *Client {
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "provideo/1.0"
	}

	restyClient := resty.New().
		SetTimeout(config.Timeout).
		SetRetryCount(config.MaxRetries).
		SetRetryWaitTime(1*time.Second).
		SetRetryMaxWaitTime(5*time.Second).
		SetHeader("User-Agent", config.UserAgent).
		SetHeader("Accept", "text/plain, text/vtt, application/x-subrip, */*")

	restyClient.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return r.StatusCode() >= 500 || r.StatusCode() == 429
	})

	return &Client{
		resty:   restyClient,
		timeout: config.Timeout,
		logger:  config.Logger,
	}
}

// GetText fetches a URL and returns the response body as a string
func (c *Client) GetText(ctx context.Context, url string, headers map[string]string) (string, error) {
	req := c.resty.R().SetContext(ctx)
	for key, value := range headers {
		req.SetHeader(key, value)
	}

	resp, err := req.Get(url)
	if err != nil {
		return "", fmt.Errorf("GET request failed for %s: %w", url, err)
	}
	if resp.StatusCode() >= 400 {
		return "", fmt.Errorf("HTTP error %d for %s", resp.StatusCode(), url)
	}
	return resp.String(), nil
}

// Timeout returns the configured timeout
func (c *Client) Timeout() time.Duration {
	return c.timeout
}
