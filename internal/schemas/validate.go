// Package schemas checks evaluator documents against the embedded JSON Schemas:
// composite evaluations written by the CLI and prompt override files.
package schemas

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	schemafiles "github.com/jonathan/idea-evaluator/schemas"
)

// Embedded schema names
const (
	CompositeEvaluationSchema = "composite_evaluation.schema.json"
	PromptCatalogSchema       = "prompt_catalog.schema.json"
)

// ValidationError lists every place a document breaks its schema
type ValidationError struct {
	Schema string
	Errors []FieldError
}

// FieldError is one violation at a JSON path
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	parts := make([]string, len(ve.Errors))
	for i, err := range ve.Errors {
		parts[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return fmt.Sprintf("document does not match %s (%d violations): %s",
		ve.Schema, len(ve.Errors), strings.Join(parts, "; "))
}

// SchemaLoadError means the schema or the document could not be loaded at all
type SchemaLoadError struct {
	Schema  string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Schema, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Schema, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

// ValidateEvaluation checks a serialized CompositeEvaluation
func ValidateEvaluation(document []byte) error {
	return ValidateEmbedded(CompositeEvaluationSchema, document)
}

// ValidatePromptOverrides checks a prompt override document, already converted to JSON
func ValidatePromptOverrides(document []byte) error {
	return ValidateEmbedded(PromptCatalogSchema, document)
}

// ValidateEmbedded validates a JSON document against one of the embedded schemas
func ValidateEmbedded(schemaName string, document []byte) error {
	schema, err := schemafiles.Read(schemaName)
	if err != nil {
		return &SchemaLoadError{Schema: schemaName, Message: "embedded schema not found", Cause: err}
	}
	return validate(schemaName, gojsonschema.NewBytesLoader(schema), gojsonschema.NewBytesLoader(document))
}

func validate(schemaName string, schemaLoader, documentLoader gojsonschema.JSONLoader) error {
	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &SchemaLoadError{Schema: schemaName, Message: "schema or document is not valid JSON Schema input", Cause: err}
	}
	if result.Valid() {
		return nil
	}

	violations := make([]FieldError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		violations = append(violations, FieldError{Field: field, Message: desc.Description()})
	}
	return &ValidationError{Schema: schemaName, Errors: violations}
}
