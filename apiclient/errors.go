package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for API operations.
var (
	ErrCircuitOpen       = errors.New("apiclient: circuit breaker is open")
	ErrRateLimitExceeded = errors.New("apiclient: rate limit exceeded")
	ErrUnknownEndpoint   = errors.New("apiclient: unknown endpoint")
	ErrUnknownTool       = errors.New("apiclient: unknown tool")
	ErrInvalidBaseURL    = errors.New("apiclient: invalid base URL")
)

// maxErrorBody bounds the response body kept in a StatusError.
const maxErrorBody = 512

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("apiclient: unexpected status %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("apiclient: unexpected status %d %s: %s", e.Code, http.StatusText(e.Code), e.Body)
}

// Temporary reports whether the request may succeed if repeated.
func (e *StatusError) Temporary() bool {
	switch e.Code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return e.Code >= 500
}

func newStatusError(code int, body []byte) *StatusError {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &StatusError{Code: code, Body: string(body)}
}
