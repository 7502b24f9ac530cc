package reqqueue

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// HTTPError is a completed exchange with a non-2xx status.
type HTTPError struct {
	StatusCode int
	// Status is the reason phrase, e.g. "Too Many Requests".
	Status string
	// Message is the server's JSON "message" field, when present.
	Message string
	Body    []byte
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Status)
}

func newHTTPError(resp *http.Response, body []byte) *HTTPError {
	e := &HTTPError{
		StatusCode: resp.StatusCode,
		Status:     http.StatusText(resp.StatusCode),
		Body:       body,
	}
	if _, reason, ok := strings.Cut(resp.Status, " "); ok && reason != "" {
		e.Status = reason
	}
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		e.Message = payload.Message
	}
	return e
}

// TransportError means no response was received.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }
