package evaluation

import (
	"fmt"

	"github.com/jonathan/idea-evaluator/internal/types"
)

// ConfigurationError means the evaluation could not be dispatched at all: a criterion
// template is missing or malformed, or its request could not be built. No completion
// call has been made when it is returned.
type ConfigurationError struct {
	Criterion types.Criterion
	Message   string
	Cause     error
}

func (e *ConfigurationError) Error() string {
	target := "evaluation"
	if e.Criterion != "" {
		target = fmt.Sprintf("evaluation criterion %s", e.Criterion)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", target, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", target, e.Message)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}
