package scrappey

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrMissingCommand is returned when a payload has no "cmd" field.
var ErrMissingCommand = errors.New("scrappey: command (cmd) is required")

// TransportError is returned when the API cannot be reached or the call times out.
type TransportError struct {
	Message string
	Cause   error
	timeout bool
}

func NewTransportError(message string, cause error) *TransportError {
	return &TransportError{
		Message: message,
		Cause:   cause,
		timeout: isTimeout(cause),
	}
}

func (e *TransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transport error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("transport error: %s", e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// Timeout reports whether the call failed because its deadline elapsed.
func (e *TransportError) Timeout() bool {
	return e.timeout
}

// HTTPStatusError is returned when the API answers with a status code >= 400.
type HTTPStatusError struct {
	StatusCode int
	Body       []byte
}

func NewHTTPStatusError(statusCode int, body []byte) *HTTPStatusError {
	return &HTTPStatusError{
		StatusCode: statusCode,
		Body:       body,
	}
}

func (e *HTTPStatusError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("HTTP status %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP status %d: %s", e.StatusCode, truncate(string(e.Body), 200))
}

// DecodeError is returned when the API response body is not a JSON object.
type DecodeError struct {
	Message string
	Cause   error
	Body    []byte
}

func NewDecodeError(message string, cause error, body []byte) *DecodeError {
	return &DecodeError{
		Message: message,
		Cause:   cause,
		Body:    body,
	}
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("decode error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("decode error: %s", e.Message)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// APIError describes a response whose "data" field is "error".
// It is only produced by Response.Err; Request returns such responses as-is.
type APIError struct {
	Message string
	Session string
}

func NewAPIError(message, session string) *APIError {
	return &APIError{
		Message: message,
		Session: session,
	}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %s", e.Message)
}

// truncate cuts s to at most maxLen bytes without splitting a rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}
