// Package upstream performs the HTTP calls to provider backends and feeds
// streaming responses into the transformation engine.
package upstream

import (
	"fmt"
	"io"
	"net/http"

	"github.com/bridgekit/llm-bridge/internal/logging"
)

// StatusError carries the upstream HTTP status and body so the API layer
// can relay it in the client's dialect.
type StatusError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Message)
}

// NewStatusError builds a StatusError with a short message.
func NewStatusError(status int, message string, body []byte) *StatusError {
	return &StatusError{StatusCode: status, Message: message, Body: body}
}

// Retryable reports whether the status warrants a retry or fallback.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// handleHTTPError drains an error response into a StatusError. The caller
// still owns closing the body.
func handleHTTPError(resp *http.Response, providerName string) *StatusError {
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if readErr != nil {
		return NewStatusError(resp.StatusCode, "failed to read error body: "+readErr.Error(), nil)
	}
	logging.Debugf("%s: error status %d, body: %.512s", providerName, resp.StatusCode, body)
	return NewStatusError(resp.StatusCode, http.StatusText(resp.StatusCode), body)
}
