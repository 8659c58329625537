package scrappey

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
)

// Response is a decoded API response.
// Fields holds the top-level JSON object; numbers are float64.
type Response struct {
	Fields map[string]any
	raw    []byte
}

func decodeResponse(body []byte) (*Response, error) {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, NewDecodeError("failed to parse response", err, body)
	}
	if fields == nil {
		return nil, NewDecodeError("response is not a JSON object", nil, body)
	}
	return &Response{Fields: fields, raw: body}, nil
}

// Raw returns the undecoded response body.
func (r *Response) Raw() []byte {
	return r.raw
}

// Get queries the raw body with a gjson path, e.g. "solution.cookies.#.name".
func (r *Response) Get(path string) gjson.Result {
	return gjson.GetBytes(r.raw, path)
}

// Data returns the "data" status field ("success" or "error").
func (r *Response) Data() string {
	return asString(r.Fields["data"])
}

// Session returns the session token the request ran in.
func (r *Response) Session() string {
	return asString(r.Fields["session"])
}

// Error returns the "error" message, if any.
func (r *Response) Error() string {
	return asString(r.Fields["error"])
}

// TimeElapsed returns the remote processing time.
func (r *Response) TimeElapsed() time.Duration {
	ms, _ := r.Fields["timeElapsed"].(float64)
	return time.Duration(ms * float64(time.Millisecond))
}

// Solution returns the "solution" object, or an empty Solution when absent.
func (r *Response) Solution() Solution {
	s, _ := r.Fields["solution"].(map[string]any)
	return Solution(s)
}

// Err returns an *APIError when the API reported a failed request.
func (r *Response) Err() error {
	if r.Data() != "error" {
		return nil
	}
	msg := r.Error()
	if msg == "" {
		msg = asString(r.Solution()["error"])
	}
	if msg == "" {
		msg = "unknown error"
	}
	return NewAPIError(msg, r.Session())
}

// Solution is the outcome of a fetch.
type Solution map[string]any

func (s Solution) StatusCode() int {
	code, _ := s["statusCode"].(float64)
	return int(code)
}

func (s Solution) Verified() bool {
	v, _ := s["verified"].(bool)
	return v
}

// Body returns the page HTML ("response").
func (s Solution) Body() string {
	return asString(s["response"])
}

func (s Solution) InnerText() string {
	return asString(s["innerText"])
}

func (s Solution) CurrentURL() string {
	return asString(s["currentUrl"])
}

func (s Solution) UserAgent() string {
	return asString(s["userAgent"])
}

func (s Solution) CookieString() string {
	return asString(s["cookieString"])
}

// Cookies returns the cookie objects (name, value, domain, ...).
func (s Solution) Cookies() []map[string]any {
	list, _ := s["cookies"].([]any)
	cookies := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if c, ok := item.(map[string]any); ok {
			cookies = append(cookies, c)
		}
	}
	return cookies
}

// ResponseHeaders returns the target's response headers.
func (s Solution) ResponseHeaders() map[string]string {
	raw, _ := s["responseHeaders"].(map[string]any)
	headers := make(map[string]string, len(raw))
	for k, v := range raw {
		headers[k] = asString(v)
	}
	return headers
}

// JavascriptReturn returns the values of execute_js actions in execution order.
func (s Solution) JavascriptReturn() []any {
	values, _ := s["javascriptReturn"].([]any)
	return values
}

// Document parses Body as HTML.
func (s Solution) Document() (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(s.Body()))
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
