package scrappey

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// ForwardProxyOption configures a ForwardProxy.
type ForwardProxyOption func(*ForwardProxy)

// WithProxyHost sets the listen host.
func WithProxyHost(host string) ForwardProxyOption {
	return func(p *ForwardProxy) {
		p.host = host
	}
}

// WithProxyPort sets the listen port.
func WithProxyPort(port int) ForwardProxyOption {
	return func(p *ForwardProxy) {
		p.port = port
	}
}

// WithProxyOptions sets options merged into every relayed request,
// e.g. {"cloudflareBypass": true}.
func WithProxyOptions(options Payload) ForwardProxyOption {
	return func(p *ForwardProxy) {
		p.options = options
	}
}

// WithProxyLogger sets the logger.
func WithProxyLogger(logger zerolog.Logger) ForwardProxyOption {
	return func(p *ForwardProxy) {
		p.logger = logger
	}
}

// ForwardProxy is an HTTP proxy that relays requests through the Scrappey API.
//
// Clients must send absolute-form requests (curl -x http://127.0.0.1:8080
// http://example.com). CONNECT is refused: a tunnel would bypass the API.
type ForwardProxy struct {
	host    string
	port    int
	options Payload
	logger  zerolog.Logger

	transport *Transport
	server    *http.Server
}

// NewForwardProxy creates a proxy that sends requests with client.
func NewForwardProxy(client *Client, opts ...ForwardProxyOption) *ForwardProxy {
	p := &ForwardProxy{
		host:   "127.0.0.1",
		port:   8080,
		logger: client.logger,
	}

	for _, opt := range opts {
		opt(p)
	}

	p.transport = &Transport{Client: client, Options: p.options}
	return p
}

var hopByHopHeaders = []string{
	"Proxy-Connection",
	"Proxy-Authorization",
	"Connection",
	"Keep-Alive",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// ServeHTTP implements http.Handler.
func (p *ForwardProxy) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method == http.MethodConnect {
		http.Error(w, "CONNECT is not supported; send absolute http:// URLs", http.StatusMethodNotAllowed)
		return
	}
	if !isAbsoluteHTTP(req.URL.String()) {
		http.Error(w, "proxy requests must use an absolute http(s) URL", http.StatusBadRequest)
		return
	}
	if _, ok := methodCommands[req.Method]; !ok {
		http.Error(w, fmt.Sprintf("method %s is not supported", req.Method), http.StatusMethodNotAllowed)
		return
	}

	targetURL := req.URL.String()
	outReq, err := http.NewRequestWithContext(req.Context(), req.Method, targetURL, req.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	copyHeaders(outReq.Header, req.Header)
	for _, h := range hopByHopHeaders {
		outReq.Header.Del(h)
	}

	p.logger.Debug().Str("method", req.Method).Str("url", targetURL).Msg("relaying request")

	resp, err := p.transport.RoundTrip(outReq)
	if err != nil {
		p.logger.Warn().Err(err).Str("url", targetURL).Msg("relay failed")
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		p.logger.Debug().Err(err).Msg("client went away")
	}
}

// Addr returns the listen address.
func (p *ForwardProxy) Addr() string {
	return fmt.Sprintf("%s:%d", p.host, p.port)
}

// ListenAndServe starts the proxy server.
func (p *ForwardProxy) ListenAndServe() error {
	p.server = &http.Server{
		Addr:    p.Addr(),
		Handler: p,
	}

	p.logger.Info().Str("addr", p.Addr()).Msg("starting forward proxy")
	err := p.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the proxy server.
func (p *ForwardProxy) Shutdown(ctx context.Context) error {
	if p.server != nil {
		return p.server.Shutdown(ctx)
	}
	return nil
}

// Close immediately closes the proxy server.
func (p *ForwardProxy) Close() error {
	if p.server != nil {
		return p.server.Close()
	}
	return nil
}

// copyHeaders copies headers from src to dst.
func copyHeaders(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

func isAbsoluteHTTP(rawURL string) bool {
	return strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://")
}
