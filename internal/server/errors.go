package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/idea-evaluator/internal/enhance"
	"github.com/jonathan/idea-evaluator/internal/evaluation"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrNotFound indicates a stored resource does not exist
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// errStorageDisabled is returned by the evaluation history routes without a database
var errStorageDisabled = errors.New("evaluation storage is not configured")

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var enhanceErr *enhance.Error
	var configErr *evaluation.ConfigurationError
	var validationErr *ErrValidation
	var notFound *ErrNotFound

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &enhanceErr):
		switch enhanceErr.Kind {
		case enhance.ErrKindInvalidRequest:
			return http.StatusBadRequest
		case enhance.ErrKindTransport:
			return http.StatusBadGateway
		default:
			return http.StatusInternalServerError
		}
	case errors.As(err, &configErr):
		return http.StatusInternalServerError
	case errors.Is(err, errStorageDisabled):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage is the text placed in the error envelope. Internal causes are not exposed.
func UserMessage(err error) string {
	var enhanceErr *enhance.Error
	var configErr *evaluation.ConfigurationError
	var validationErr *ErrValidation
	var notFound *ErrNotFound

	switch {
	case errors.As(err, &validationErr), errors.As(err, &notFound), errors.Is(err, errStorageDisabled):
		return err.Error()
	case errors.As(err, &enhanceErr):
		return enhanceErr.UserMessage()
	case errors.As(err, &configErr):
		return "AI evaluator is not configured correctly"
	default:
		return "internal server error"
	}
}

// validationError converts validator output into an ErrValidation for the first failing field
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ErrValidation{Field: fe.Field(), Message: fe.Tag()}
	}
	return &ErrValidation{Message: err.Error()}
}
