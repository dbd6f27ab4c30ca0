package enhance

import "fmt"

// ErrorKind classifies an enhancement failure
type ErrorKind string

const (
	// ErrKindTransport means the completion call could not be made or failed outright
	ErrKindTransport ErrorKind = "transport"
	// ErrKindConfiguration means the prompt template for the request kind is missing
	ErrKindConfiguration ErrorKind = "configuration"
	// ErrKindInvalidRequest means the request itself was rejected before any call
	ErrKindInvalidRequest ErrorKind = "invalid_request"
)

// Error is returned by Service.Enhance. Unparseable model output is never an Error.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("enhance %s error: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("enhance %s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// UserMessage is the text shown to the caller in the error envelope
func (e *Error) UserMessage() string {
	switch e.Kind {
	case ErrKindTransport:
		return "Failed to get AI response"
	case ErrKindConfiguration:
		return "AI assistant is not configured correctly"
	default:
		return e.Message
	}
}
