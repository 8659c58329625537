package scrappey

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestMerge(t *testing.T) {
	base := Payload{"cmd": "request.get", "url": "https://a.example.com"}
	options := Payload{"url": "https://b.example.com", "premiumProxy": true}

	merged := Merge(base, options)

	expected := Payload{"cmd": "request.get", "url": "https://b.example.com", "premiumProxy": true}
	if !reflect.DeepEqual(merged, expected) {
		t.Errorf("Merge = %v, want %v", merged, expected)
	}
	if base["url"] != "https://a.example.com" || len(base) != 2 {
		t.Errorf("Merge modified base: %v", base)
	}
	if len(options) != 2 {
		t.Errorf("Merge modified options: %v", options)
	}
}

func TestMergeLaterWins(t *testing.T) {
	merged := Merge(Payload{"a": 1}, Payload{"a": 2, "b": 2}, nil, Payload{"b": 3})
	if merged["a"] != 2 || merged["b"] != 3 {
		t.Errorf("Expected later maps to win, got %v", merged)
	}

	if got := Merge(nil); got == nil || len(got) != 0 {
		t.Errorf("Merge(nil) should return an empty payload, got %v", got)
	}
}

func TestNewPayload(t *testing.T) {
	p := newPayload(CmdPost, Payload{"url": "https://example.com", "postData": "x"}, Payload{"session": "s1"})

	if p.Command() != CmdPost {
		t.Errorf("Expected cmd %s, got %s", CmdPost, p.Command())
	}
	if _, ok := p["cmd"].(string); !ok {
		t.Errorf("Expected cmd stored as string, got %T", p["cmd"])
	}
	if p["session"] != "s1" || p["postData"] != "x" {
		t.Errorf("Unexpected payload %v", p)
	}
}

func TestPayloadCommand(t *testing.T) {
	tests := []struct {
		payload  Payload
		expected Command
	}{
		{Payload{"cmd": "sessions.create"}, CmdSessionsCreate},
		{Payload{"cmd": CmdSessionsDestroy}, CmdSessionsDestroy},
		{Payload{"cmd": 1}, ""},
		{Payload{}, ""},
		{nil, ""},
	}

	for _, tt := range tests {
		if got := tt.payload.Command(); got != tt.expected {
			t.Errorf("Command() of %v = %q, want %q", tt.payload, got, tt.expected)
		}
	}
}

func TestBrowserActionJSON(t *testing.T) {
	actions := []BrowserAction{
		WaitForSelector("h1"),
		ExecuteJS("document.title"),
		{
			Type:      "if",
			Condition: "document.querySelector('#consent')",
			Then:      []BrowserAction{Click("#consent button")},
		},
	}

	data, err := json.Marshal(Payload{"browserActions": actions})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	expected := `{"browserActions":[` +
		`{"type":"wait_for_selector","cssSelector":"h1"},` +
		`{"type":"execute_js","code":"document.title"},` +
		`{"type":"if","condition":"document.querySelector('#consent')","then":[{"type":"click","cssSelector":"#consent button"}]}]}`
	if string(data) != expected {
		t.Errorf("Unexpected JSON:\n got  %s\n want %s", data, expected)
	}
}
