package scrappey

// Command names a remote operation.
type Command string

const (
	CmdGet             Command = "request.get"
	CmdPost            Command = "request.post"
	CmdPut             Command = "request.put"
	CmdDelete          Command = "request.delete"
	CmdPatch           Command = "request.patch"
	CmdSessionsCreate  Command = "sessions.create"
	CmdSessionsDestroy Command = "sessions.destroy"
	CmdSessionsList    Command = "sessions.list"
	CmdSessionsActive  Command = "sessions.active"
	CmdWebSocketCreate Command = "websocket.create"
)

// Payload is a request body: "cmd" plus any option the API understands.
// Values must be JSON-encodable.
type Payload map[string]any

// Command returns the "cmd" field, or "" if it is missing or not a string.
func (p Payload) Command() Command {
	switch v := p["cmd"].(type) {
	case string:
		return Command(v)
	case Command:
		return v
	}
	return ""
}

// Merge returns a new payload holding the union of base and every options
// map. On key collision the later map wins. No input is modified.
func Merge(base Payload, options ...Payload) Payload {
	size := len(base)
	for _, o := range options {
		size += len(o)
	}
	merged := make(Payload, size)
	for k, v := range base {
		merged[k] = v
	}
	for _, o := range options {
		for k, v := range o {
			merged[k] = v
		}
	}
	return merged
}

func newPayload(cmd Command, fields Payload, options Payload) Payload {
	base := Payload{"cmd": string(cmd)}
	for k, v := range fields {
		base[k] = v
	}
	return Merge(base, options)
}

// BrowserAction is one element of the "browserActions" option.
// Actions run in slice order; Solution.JavascriptReturn follows that order.
type BrowserAction struct {
	Type            string          `json:"type"`
	CSSSelector     string          `json:"cssSelector,omitempty"`
	Text            string          `json:"text,omitempty"`
	URL             string          `json:"url,omitempty"`
	Wait            int             `json:"wait,omitempty"`
	WaitForSelector string          `json:"waitForSelector,omitempty"`
	Code            string          `json:"code,omitempty"`
	Value           string          `json:"value,omitempty"`
	Condition       string          `json:"condition,omitempty"`
	Then            []BrowserAction `json:"then,omitempty"`
	Or              []BrowserAction `json:"or,omitempty"`
	MaxAttempts     int             `json:"maxAttempts,omitempty"`
	Captcha         string          `json:"captcha,omitempty"`
	CaptchaData     map[string]any  `json:"captchaData,omitempty"`
	When            string          `json:"when,omitempty"`
	IgnoreErrors    bool            `json:"ignoreErrors,omitempty"`
	Timeout         int             `json:"timeout,omitempty"`
	Direct          bool            `json:"direct,omitempty"`
}

func Click(cssSelector string) BrowserAction {
	return BrowserAction{Type: "click", CSSSelector: cssSelector}
}

func TypeText(cssSelector, text string) BrowserAction {
	return BrowserAction{Type: "type", CSSSelector: cssSelector, Text: text}
}

func Goto(url string) BrowserAction {
	return BrowserAction{Type: "goto", URL: url}
}

// Wait pauses for ms milliseconds.
func Wait(ms int) BrowserAction {
	return BrowserAction{Type: "wait", Wait: ms}
}

func WaitForSelector(cssSelector string) BrowserAction {
	return BrowserAction{Type: "wait_for_selector", CSSSelector: cssSelector}
}

// ExecuteJS runs code in the page; its value is appended to Solution.JavascriptReturn.
func ExecuteJS(code string) BrowserAction {
	return BrowserAction{Type: "execute_js", Code: code}
}

func Scroll(cssSelector string) BrowserAction {
	return BrowserAction{Type: "scroll", CSSSelector: cssSelector}
}

func SolveCaptcha(captcha string) BrowserAction {
	return BrowserAction{Type: "solve_captcha", Captcha: captcha}
}
