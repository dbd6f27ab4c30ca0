package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// TransportError represents a completion call that failed outright: network failure,
// a non-2xx status, an unusable envelope, or an expired deadline.
type TransportError struct {
	StatusCode int // HTTP status, 0 when no response was received
	Message    string
	Body       string // truncated response body, if any
	Cause      error
}

func (e *TransportError) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Cause != nil {
		return fmt.Sprintf("completion transport error: %s: %v", msg, e.Cause)
	}
	return fmt.Sprintf("completion transport error: %s", msg)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// Timeout reports whether the call failed because its deadline expired
func (e *TransportError) Timeout() bool {
	return e.StatusCode == http.StatusGatewayTimeout
}

// IsTransportError reports whether err is, or wraps, a TransportError
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// InvalidRequestError indicates a CompletionRequest could not be built
type InvalidRequestError struct {
	Field   string
	Message string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid completion request: %s: %s", e.Field, e.Message)
}
