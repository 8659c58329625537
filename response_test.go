package scrappey

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

const fullBody = `{
	"data": "success",
	"session": "sess-1",
	"timeElapsed": 1532,
	"solution": {
		"verified": true,
		"statusCode": 201,
		"currentUrl": "https://example.com/final",
		"userAgent": "Mozilla/5.0 Test",
		"cookieString": "a=1; b=2",
		"cookies": [{"name": "a", "value": "1"}, {"name": "b", "value": "2"}],
		"responseHeaders": {"content-type": "text/html", "x-count": 3},
		"innerText": "Example Domain",
		"response": "<html><head><title>Example</title></head><body><h1>Example Domain</h1><a href=\"/more\">More</a></body></html>",
		"javascriptReturn": ["Example Domain", 42, {"k": "v"}]
	}
}`

func mustDecode(t *testing.T, body string) *Response {
	t.Helper()
	resp, err := decodeResponse([]byte(body))
	if err != nil {
		t.Fatalf("decodeResponse failed: %v", err)
	}
	return resp
}

func TestResponseAccessors(t *testing.T) {
	resp := mustDecode(t, fullBody)

	if resp.Data() != "success" {
		t.Errorf("Expected data 'success', got '%s'", resp.Data())
	}
	if resp.Session() != "sess-1" {
		t.Errorf("Expected session 'sess-1', got '%s'", resp.Session())
	}
	if resp.TimeElapsed() != 1532*time.Millisecond {
		t.Errorf("Expected 1532ms, got %v", resp.TimeElapsed())
	}
	if resp.Err() != nil {
		t.Errorf("Expected no API error, got %v", resp.Err())
	}

	s := resp.Solution()
	if !s.Verified() {
		t.Error("Expected verified")
	}
	if s.StatusCode() != 201 {
		t.Errorf("Expected statusCode 201, got %d", s.StatusCode())
	}
	if s.CurrentURL() != "https://example.com/final" {
		t.Errorf("Unexpected currentUrl '%s'", s.CurrentURL())
	}
	if s.UserAgent() != "Mozilla/5.0 Test" {
		t.Errorf("Unexpected userAgent '%s'", s.UserAgent())
	}
	if s.CookieString() != "a=1; b=2" {
		t.Errorf("Unexpected cookieString '%s'", s.CookieString())
	}
	if len(s.Cookies()) != 2 || s.Cookies()[1]["name"] != "b" {
		t.Errorf("Unexpected cookies %v", s.Cookies())
	}
	if s.InnerText() != "Example Domain" {
		t.Errorf("Unexpected innerText '%s'", s.InnerText())
	}

	headers := s.ResponseHeaders()
	if headers["content-type"] != "text/html" || headers["x-count"] != "3" {
		t.Errorf("Unexpected headers %v", headers)
	}
}

func TestJavascriptReturnOrder(t *testing.T) {
	resp := mustDecode(t, fullBody)

	expected := []any{"Example Domain", float64(42), map[string]any{"k": "v"}}
	if got := resp.Solution().JavascriptReturn(); !reflect.DeepEqual(got, expected) {
		t.Errorf("JavascriptReturn = %v, want %v", got, expected)
	}
}

func TestResponseGetPath(t *testing.T) {
	resp := mustDecode(t, fullBody)

	if got := resp.Get("solution.statusCode").Int(); got != 201 {
		t.Errorf("Expected 201, got %d", got)
	}
	if got := resp.Get("solution.cookies.#.name").String(); got != `["a","b"]` {
		t.Errorf("Unexpected cookie names %s", got)
	}
	if resp.Get("solution.missing").Exists() {
		t.Error("Expected missing path not to exist")
	}
}

func TestSolutionDocument(t *testing.T) {
	resp := mustDecode(t, fullBody)

	doc, err := resp.Solution().Document()
	if err != nil {
		t.Fatalf("Document failed: %v", err)
	}
	if title := doc.Find("title").Text(); title != "Example" {
		t.Errorf("Expected title 'Example', got '%s'", title)
	}
	if href, _ := doc.Find("a").Attr("href"); href != "/more" {
		t.Errorf("Expected href '/more', got '%s'", href)
	}
}

func TestMissingSolution(t *testing.T) {
	resp := mustDecode(t, `{"data":"success","session":"s"}`)

	s := resp.Solution()
	if s.StatusCode() != 0 || s.Body() != "" || s.JavascriptReturn() != nil {
		t.Errorf("Expected zero values for absent solution, got %v", s)
	}
	if len(s.Cookies()) != 0 || len(s.ResponseHeaders()) != 0 {
		t.Error("Expected empty cookies and headers")
	}
}

func TestResponseErr(t *testing.T) {
	resp := mustDecode(t, `{"data":"error","session":"s9","error":"Proxy connection failed"}`)

	err := resp.Err()
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.Session != "s9" {
		t.Errorf("Expected session 's9', got '%s'", apiErr.Session)
	}
	if !strings.Contains(err.Error(), "Proxy connection failed") {
		t.Errorf("Unexpected message '%s'", err.Error())
	}

	resp = mustDecode(t, `{"data":"error"}`)
	if !strings.Contains(resp.Err().Error(), "unknown error") {
		t.Errorf("Expected fallback message, got '%s'", resp.Err().Error())
	}
}

func TestResponseRaw(t *testing.T) {
	resp := mustDecode(t, okBody)
	if string(resp.Raw()) != okBody {
		t.Errorf("Raw body changed: %s", resp.Raw())
	}
}
