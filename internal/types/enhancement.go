package types

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// RequestKind selects the system prompt used for an enhancement request
type RequestKind string

const (
	// RequestKindGeneral is a free-form request about any text
	RequestKindGeneral RequestKind = "general"
	// RequestKindIdeaEnhancement asks for a rewritten, stronger version of an idea
	RequestKindIdeaEnhancement RequestKind = "idea_enhancement"
)

// OrDefault returns k, or RequestKindGeneral when k is empty
func (k RequestKind) OrDefault() RequestKind {
	if k == "" {
		return RequestKindGeneral
	}
	return k
}

// IdeaMetadata carries optional context about the idea being enhanced
type IdeaMetadata struct {
	Department string `json:"department,omitempty"`
}

// EnhanceContext is the optional context block of an enhancement request
type EnhanceContext struct {
	IdeaMetadata *IdeaMetadata `json:"ideaMetadata,omitempty"`
}

// EnhanceRequest is the inbound enhancement request
type EnhanceRequest struct {
	Message string         `json:"message" validate:"required"`
	Type    RequestKind    `json:"type,omitempty" validate:"omitempty,oneof=general idea_enhancement"`
	Context EnhanceContext `json:"context"`
}

// Validate validates the EnhanceRequest using the validator.
func (r *EnhanceRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Kind returns the request kind, defaulting to general
func (r *EnhanceRequest) Kind() RequestKind {
	return r.Type.OrDefault()
}

// Department returns the department from the request context, or "" when absent
func (r *EnhanceRequest) Department() string {
	if r.Context.IdeaMetadata == nil {
		return ""
	}
	return strings.TrimSpace(r.Context.IdeaMetadata.Department)
}

// EnhancementRecord is the result of an enhancement. Both fields are always non-empty.
type EnhancementRecord struct {
	Rewritten  string `json:"rewritten"`
	Evaluation string `json:"evaluation"`
}
