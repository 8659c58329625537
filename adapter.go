package scrappey

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var methodCommands = map[string]Command{
	http.MethodGet:    CmdGet,
	http.MethodPost:   CmdPost,
	http.MethodPut:    CmdPut,
	http.MethodDelete: CmdDelete,
	http.MethodPatch:  CmdPatch,
}

// Transport is an http.RoundTripper that sends every request through the
// Scrappey API, so a plain *http.Client gets the remote browser:
//
//	httpClient := &http.Client{Transport: &scrappey.Transport{
//	    Client:  scrappey.New(apiKey),
//	    Options: scrappey.Payload{"cloudflareBypass": true},
//	}}
//	resp, err := httpClient.Get("https://example.com")
//
// Only GET, POST, PUT, DELETE and PATCH are supported.
type Transport struct {
	Client *Client

	// Options are merged into every payload; request-derived fields win.
	Options Payload
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	payload, err := t.payloadFor(req)
	if err != nil {
		return nil, err
	}

	resp, err := t.Client.RequestContext(req.Context(), payload)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return convertResponse(req, resp.Solution()), nil
}

func (t *Transport) payloadFor(req *http.Request) (Payload, error) {
	if req.Body != nil {
		defer req.Body.Close()
	}

	cmd, ok := methodCommands[req.Method]
	if !ok {
		return nil, fmt.Errorf("scrappey: unsupported method %s", req.Method)
	}

	fields := Payload{"url": req.URL.String()}

	headers := make(map[string]string)
	for k, vv := range req.Header {
		if len(vv) == 0 || strings.EqualFold(k, "Cookie") {
			continue
		}
		headers[k] = strings.Join(vv, ", ")
	}
	if len(headers) > 0 {
		fields["customHeaders"] = headers
	}
	if cookie := req.Header.Get("Cookie"); cookie != "" {
		fields["cookies"] = cookie
	}

	if req.Body != nil && req.Body != http.NoBody {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, NewTransportError("failed to read request body", err)
		}
		if len(body) > 0 {
			fields["postData"] = string(body)
		}
	}

	return newPayload(cmd, nil, Merge(t.Options, fields)), nil
}

// hop-by-hop or encoding headers that no longer describe the decoded body
var droppedResponseHeaders = []string{
	"Content-Encoding",
	"Content-Length",
	"Transfer-Encoding",
	"Connection",
	"Keep-Alive",
}

// convertResponse builds an http.Response from a solution. The body is the
// inner text when the API returned one, otherwise the page HTML.
// Without an upstream Content-Type, inner text that is valid JSON is
// labelled application/json.
func convertResponse(req *http.Request, s Solution) *http.Response {
	contentType := "text/html; charset=utf-8"
	body := s.InnerText()
	if body == "" {
		body = s.Body()
	} else if json.Valid([]byte(body)) {
		contentType = "application/json"
	}

	status := s.StatusCode()
	if status == 0 {
		status = http.StatusOK
	}

	httpResp := &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        make(http.Header),
		Body:          io.NopCloser(bytes.NewReader([]byte(body))),
		ContentLength: int64(len(body)),
		Request:       req,
	}

	for k, v := range s.ResponseHeaders() {
		httpResp.Header.Set(k, v)
	}
	for _, h := range droppedResponseHeaders {
		httpResp.Header.Del(h)
	}
	if httpResp.Header.Get("Content-Type") == "" {
		httpResp.Header.Set("Content-Type", contentType)
	}

	return httpResp
}
