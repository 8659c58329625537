package scrappey

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Noooste/azuretls-client"
	"github.com/cloudflyer-project/masktunnel"
	"github.com/rs/zerolog"
)

// apiTransport performs the single POST of an API call.
type apiTransport interface {
	post(ctx context.Context, endpoint string, body []byte) (statusCode int, respBody []byte, err error)
	close()
}

var defaultUserAgents = map[string]string{
	"chrome":  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
	"edge":    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36 Edg/133.0.0.0",
	"firefox": "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:135.0) Gecko/20100101 Firefox/135.0",
	"safari":  "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.3 Safari/605.1.15",
	"ios":     "Mozilla/5.0 (iPhone; CPU iPhone OS 18_3 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.3 Mobile/15E148 Safari/604.1",
}

// httpTransport sends API calls with net/http.
type httpTransport struct {
	client    *http.Client
	userAgent string
}

func newHTTPTransport(client *http.Client, proxyURL, userAgent string) *httpTransport {
	if client == nil {
		transport := &http.Transport{}
		if proxyURL != "" {
			if u, err := url.Parse(proxyURL); err == nil {
				transport.Proxy = http.ProxyURL(u)
			}
		}
		// Deadlines come from the request context.
		client = &http.Client{Transport: transport}
	}
	if userAgent == "" {
		userAgent = "scrappey-go/" + Version
	}
	return &httpTransport{client: client, userAgent: userAgent}
}

func (t *httpTransport) post(ctx context.Context, endpoint string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, NewTransportError("failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, nil, NewTransportError("failed to send request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, NewTransportError("failed to read response", err)
	}
	return resp.StatusCode, respBody, nil
}

func (t *httpTransport) close() {
	t.client.CloseIdleConnections()
}

// tlsTransport sends API calls over an azuretls session whose TLS and HTTP/2
// fingerprint match a real browser.
type tlsTransport struct {
	session *azuretls.Session
}

func newTLSTransport(impersonate, userAgent, proxyURL string, logger zerolog.Logger) (*tlsTransport, error) {
	impersonate = strings.ToLower(impersonate)
	ua := userAgent
	if ua == "" {
		var ok bool
		if ua, ok = defaultUserAgents[impersonate]; !ok {
			logger.Warn().Str("impersonate", impersonate).Msg("unknown browser, impersonating chrome")
			ua = defaultUserAgents["chrome"]
		}
	}

	browserFp, err := masktunnel.GetBrowserFingerprint(ua)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to parse User-Agent, using default Chrome fingerprint")
		browserFp = &masktunnel.BrowserFingerprint{
			Browser:          "Chrome",
			HTTP2Fingerprint: "1:65536,2:0,4:6291456,6:262144|15663105|0|m,a,s,p",
			TLSProfile:       "133",
		}
	}
	logger.Debug().
		Str("browser", browserFp.Browser).
		Str("tls_profile", browserFp.TLSProfile).
		Msg("creating fingerprinted session")

	session := azuretls.NewSession()
	configureTLSFingerprint(session, browserFp.Browser)

	if err := session.ApplyHTTP2(browserFp.HTTP2Fingerprint); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to configure HTTP/2 fingerprint: %w", err)
	}
	session.UserAgent = ua

	if proxyURL != "" {
		if err := session.SetProxy(proxyURL); err != nil {
			session.Close()
			return nil, fmt.Errorf("failed to set proxy: %w", err)
		}
	}

	return &tlsTransport{session: session}, nil
}

func configureTLSFingerprint(session *azuretls.Session, browser string) {
	switch browser {
	case "Firefox":
		session.Browser = azuretls.Firefox
		session.GetClientHelloSpec = azuretls.GetLastFirefoxVersion
	case "Safari":
		session.Browser = azuretls.Safari
		session.GetClientHelloSpec = azuretls.GetLastSafariVersion
	case "Edge":
		session.Browser = azuretls.Edge
		session.GetClientHelloSpec = azuretls.GetLastChromeVersion
	case "iOS":
		session.Browser = azuretls.Ios
		session.GetClientHelloSpec = azuretls.GetLastIosVersion
	default:
		session.Browser = azuretls.Chrome
		session.GetClientHelloSpec = azuretls.GetLastChromeVersion
	}
}

type tlsResult struct {
	resp *azuretls.Response
	err  error
}

func (t *tlsTransport) post(ctx context.Context, endpoint string, body []byte) (int, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, NewTransportError("request not sent", err)
	}

	req := &azuretls.Request{
		Method: http.MethodPost,
		Url:    endpoint,
		Body:   bytes.NewReader(body),
		OrderedHeaders: azuretls.OrderedHeaders{
			{"content-type", "application/json"},
			{"accept", "application/json"},
		},
	}
	if deadline, ok := ctx.Deadline(); ok {
		req.TimeOut = time.Until(deadline)
	}

	// azuretls has no context support; the session timeout bounds the goroutine.
	done := make(chan tlsResult, 1)
	go func() {
		resp, err := t.session.Do(req)
		done <- tlsResult{resp: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		return 0, nil, NewTransportError("failed to send request", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return 0, nil, NewTransportError("failed to send request", r.err)
		}
		return r.resp.StatusCode, r.resp.Body, nil
	}
}

func (t *tlsTransport) close() {
	t.session.Close()
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}
