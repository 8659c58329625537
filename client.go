package scrappey

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout leaves room for slow remote browser rendering.
const DefaultTimeout = 5 * time.Minute

// Client sends commands to the Scrappey API.
// It holds no per-call state and is safe for concurrent use.
type Client struct {
	apiKey      string
	baseURL     string
	timeout     time.Duration
	apiProxy    string
	userAgent   string
	impersonate string
	httpClient  *http.Client
	logger      zerolog.Logger

	endpoint  string
	transport apiTransport
}

// New creates a new Client with the given API key and options.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		timeout: DefaultTimeout,
		logger:  zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Logger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.endpoint = buildEndpoint(c.baseURL, c.apiKey)

	if c.impersonate != "" {
		t, err := newTLSTransport(c.impersonate, c.userAgent, c.apiProxy, c.logger)
		if err == nil {
			c.transport = t
			return c
		}
		c.logger.Warn().Err(err).Msg("fingerprinted transport unavailable, falling back to net/http")
	}
	c.transport = newHTTPTransport(c.httpClient, c.apiProxy, c.userAgent)

	return c
}

// buildEndpoint appends the key query parameter to the base URL.
func buildEndpoint(baseURL, apiKey string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return baseURL + "?key=" + url.QueryEscape(apiKey)
	}
	q := u.Query()
	q.Set("key", apiKey)
	u.RawQuery = q.Encode()
	return u.String()
}

// Request sends a raw payload. The payload must carry "cmd".
func (c *Client) Request(payload Payload) (*Response, error) {
	return c.RequestContext(context.Background(), payload)
}

// RequestContext sends a raw payload with context.
func (c *Client) RequestContext(ctx context.Context, payload Payload) (*Response, error) {
	cmd := payload.Command()
	if cmd == "" {
		return nil, ErrMissingCommand
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	timeout := c.timeout
	if t, ok := payloadTimeout(payload); ok {
		timeout = t
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	log := c.logger.With().Str("cmd", string(cmd)).Logger()
	if target, ok := payload["url"].(string); ok {
		log = log.With().Str("url", target).Logger()
	}
	log.Debug().Msg("sending request")
	start := time.Now()

	status, respBody, err := c.transport.post(ctx, c.endpoint, body)
	if err != nil {
		log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("request failed")
		return nil, err
	}

	if status >= 400 {
		log.Error().Int("status", status).Msg("API returned error status")
		return nil, NewHTTPStatusError(status, respBody)
	}

	resp, err := decodeResponse(respBody)
	if err != nil {
		log.Error().Err(err).Msg("invalid response body")
		return nil, err
	}

	log.Debug().
		Int("status", status).
		Str("data", resp.Data()).
		Dur("elapsed", time.Since(start)).
		Msg("request completed")
	return resp, nil
}

// payloadTimeout reads a per-call "timeout" option given in milliseconds.
func payloadTimeout(payload Payload) (time.Duration, bool) {
	var ms float64
	switch v := payload["timeout"].(type) {
	case int:
		ms = float64(v)
	case int64:
		ms = float64(v)
	case float64:
		ms = v
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		ms = f
	default:
		return 0, false
	}
	if ms <= 0 {
		return 0, false
	}
	return time.Duration(ms * float64(time.Millisecond)), true
}

// Get fetches targetURL through the API.
func (c *Client) Get(targetURL string, options Payload) (*Response, error) {
	return c.GetContext(context.Background(), targetURL, options)
}

// GetContext fetches targetURL through the API with context.
func (c *Client) GetContext(ctx context.Context, targetURL string, options Payload) (*Response, error) {
	return c.RequestContext(ctx, newPayload(CmdGet, Payload{"url": targetURL}, options))
}

// Post sends postData to targetURL through the API.
func (c *Client) Post(targetURL string, postData any, options Payload) (*Response, error) {
	return c.PostContext(context.Background(), targetURL, postData, options)
}

// PostContext sends postData to targetURL through the API with context.
func (c *Client) PostContext(ctx context.Context, targetURL string, postData any, options Payload) (*Response, error) {
	return c.RequestContext(ctx, newPayload(CmdPost, Payload{"url": targetURL, "postData": postData}, options))
}

// Put sends a PUT request through the API.
func (c *Client) Put(targetURL string, postData any, options Payload) (*Response, error) {
	return c.PutContext(context.Background(), targetURL, postData, options)
}

// PutContext sends a PUT request through the API with context.
func (c *Client) PutContext(ctx context.Context, targetURL string, postData any, options Payload) (*Response, error) {
	return c.RequestContext(ctx, newPayload(CmdPut, Payload{"url": targetURL, "postData": postData}, options))
}

// Patch sends a PATCH request through the API.
func (c *Client) Patch(targetURL string, postData any, options Payload) (*Response, error) {
	return c.PatchContext(context.Background(), targetURL, postData, options)
}

// PatchContext sends a PATCH request through the API with context.
func (c *Client) PatchContext(ctx context.Context, targetURL string, postData any, options Payload) (*Response, error) {
	return c.RequestContext(ctx, newPayload(CmdPatch, Payload{"url": targetURL, "postData": postData}, options))
}

// Delete sends a DELETE request through the API.
func (c *Client) Delete(targetURL string, options Payload) (*Response, error) {
	return c.DeleteContext(context.Background(), targetURL, options)
}

// DeleteContext sends a DELETE request through the API with context.
func (c *Client) DeleteContext(ctx context.Context, targetURL string, options Payload) (*Response, error) {
	return c.RequestContext(ctx, newPayload(CmdDelete, Payload{"url": targetURL}, options))
}

// CreateSession creates a remote browser session.
// The token is in the Session field of the result.
func (c *Client) CreateSession(options Payload) (*Response, error) {
	return c.CreateSessionContext(context.Background(), options)
}

// CreateSessionContext creates a remote browser session with context.
func (c *Client) CreateSessionContext(ctx context.Context, options Payload) (*Response, error) {
	return c.RequestContext(ctx, newPayload(CmdSessionsCreate, nil, options))
}

// DestroySession destroys the session identified by token.
func (c *Client) DestroySession(token string) (*Response, error) {
	return c.DestroySessionContext(context.Background(), token)
}

// DestroySessionContext destroys a session with context.
func (c *Client) DestroySessionContext(ctx context.Context, token string) (*Response, error) {
	return c.RequestContext(ctx, newPayload(CmdSessionsDestroy, Payload{"session": token}, nil))
}

// ListSessions lists the active sessions of a user.
func (c *Client) ListSessions(userID int) (*Response, error) {
	return c.ListSessionsContext(context.Background(), userID)
}

// ListSessionsContext lists the active sessions of a user with context.
func (c *Client) ListSessionsContext(ctx context.Context, userID int) (*Response, error) {
	return c.RequestContext(ctx, newPayload(CmdSessionsList, Payload{"userId": userID}, nil))
}

// IsSessionActive reports whether the session is still alive.
// An API-reported failure is returned as *APIError.
func (c *Client) IsSessionActive(token string) (bool, error) {
	return c.IsSessionActiveContext(context.Background(), token)
}

// IsSessionActiveContext reports whether the session is still alive, with context.
func (c *Client) IsSessionActiveContext(ctx context.Context, token string) (bool, error) {
	resp, err := c.RequestContext(ctx, newPayload(CmdSessionsActive, Payload{"session": token}, nil))
	if err != nil {
		return false, err
	}
	if err := resp.Err(); err != nil {
		return false, err
	}
	active, _ := resp.Fields["active"].(bool)
	return active, nil
}

// CreateWebSocket opens a WebSocket-driven browser on the remote side.
func (c *Client) CreateWebSocket(options Payload) (*Response, error) {
	return c.CreateWebSocketContext(context.Background(), options)
}

// CreateWebSocketContext opens a WebSocket-driven browser with context.
func (c *Client) CreateWebSocketContext(ctx context.Context, options Payload) (*Response, error) {
	return c.RequestContext(ctx, newPayload(CmdWebSocketCreate, nil, options))
}

// Close releases idle connections and the fingerprinted session, if any.
func (c *Client) Close() error {
	c.transport.close()
	return nil
}
