package scrappey

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Option is a function that configures a Client.
type Option func(*Client)

// WithBaseURL sets the Scrappey API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTimeout sets the default per-call timeout. Values <= 0 are ignored,
// so every call keeps a deadline (DefaultTimeout unless set).
// A numeric "timeout" option (milliseconds) in a payload overrides it for that call.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithAPIProxy sets the HTTP proxy used to reach the API.
func WithAPIProxy(apiProxy string) Option {
	return func(c *Client) {
		c.apiProxy = apiProxy
	}
}

// WithUserAgent sets the User-Agent sent to the API.
// With WithImpersonate it also selects the TLS fingerprint.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithImpersonate sends API calls over a browser-fingerprinted TLS session
// instead of net/http. Supported values: "chrome", "firefox", "safari",
// "edge", "ios". An empty string disables impersonation (the default).
func WithImpersonate(impersonate string) Option {
	return func(c *Client) {
		c.impersonate = impersonate
	}
}

// WithHTTPClient replaces the net/http client used for API calls.
// It is ignored when WithImpersonate is set.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}
