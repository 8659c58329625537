package scrappey

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func newProxyServer(t *testing.T, apiURL string, opts ...ForwardProxyOption) *httptest.Server {
	t.Helper()
	proxy := NewForwardProxy(newTestClient(t, apiURL), opts...)
	server := httptest.NewServer(proxy)
	t.Cleanup(server.Close)
	return server
}

func TestForwardProxyRelaysThroughAPI(t *testing.T) {
	api, rec := newAPIServer(t, http.StatusOK, `{"data":"success","solution":{"statusCode":200,"response":"hello","responseHeaders":{"x-origin":"remote"}}}`)
	proxySrv := newProxyServer(t, api.URL, WithProxyOptions(Payload{"premiumProxy": true}))

	proxyURL, _ := url.Parse(proxySrv.URL)
	httpClient := &http.Client{Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)}}

	req, _ := http.NewRequest(http.MethodGet, "http://example.com/page", nil)
	req.Header.Set("X-Test", "1")
	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("Get via proxy failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 || string(body) != "hello" {
		t.Errorf("Unexpected response %d '%s'", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Origin") != "remote" {
		t.Errorf("Expected remote headers, got %v", resp.Header)
	}

	payload := rec.last(t)
	if payload["url"] != "http://example.com/page" {
		t.Errorf("Expected target URL, got '%v'", payload["url"])
	}
	if payload["premiumProxy"] != true {
		t.Error("Expected proxy options to be merged")
	}
	headers, _ := payload["customHeaders"].(map[string]any)
	if headers["X-Test"] != "1" {
		t.Errorf("Expected X-Test header to be forwarded, got %v", headers)
	}
	if _, ok := headers["Proxy-Connection"]; ok {
		t.Error("Hop-by-hop headers should not be forwarded")
	}
}

func TestForwardProxyRejectsConnect(t *testing.T) {
	api, rec := newAPIServer(t, http.StatusOK, okBody)
	proxySrv := newProxyServer(t, api.URL)

	req, _ := http.NewRequest(http.MethodConnect, proxySrv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("CONNECT failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", resp.StatusCode)
	}
	if rec.count() != 0 {
		t.Error("Expected no API call")
	}
}

func TestForwardProxyRejectsRelativeURL(t *testing.T) {
	api, _ := newAPIServer(t, http.StatusOK, okBody)
	proxySrv := newProxyServer(t, api.URL)

	resp, err := http.Get(proxySrv.URL + "/page")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestForwardProxyAPIFailure(t *testing.T) {
	api, _ := newAPIServer(t, http.StatusInternalServerError, `{"error":"boom"}`)
	proxySrv := newProxyServer(t, api.URL)

	proxyURL, _ := url.Parse(proxySrv.URL)
	httpClient := &http.Client{Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)}}

	resp, err := httpClient.Get("http://example.com/")
	if err != nil {
		t.Fatalf("Get via proxy failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("Expected 502, got %d", resp.StatusCode)
	}
}

func TestForwardProxyAddr(t *testing.T) {
	proxy := NewForwardProxy(New("k"), WithProxyHost("0.0.0.0"), WithProxyPort(9090))
	if proxy.Addr() != "0.0.0.0:9090" {
		t.Errorf("Expected '0.0.0.0:9090', got '%s'", proxy.Addr())
	}
}
