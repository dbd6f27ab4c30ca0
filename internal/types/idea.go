// Package types defines the data exchanged between the enhancement and evaluation
// services and their callers.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"github.com/go-playground/validator/v10"
)

// Idea is a submitted innovation idea. Only the textual fields used to describe the
// idea to the model are carried here; storage metadata lives with the tracker.
type Idea struct {
	Name              string   `json:"name" validate:"required"`
	Description       string   `json:"description" validate:"required"`
	Author            string   `json:"author,omitempty"`
	Department        string   `json:"department,omitempty"`
	Tags              []string `json:"tags,omitempty"`
	ProblemStatement  string   `json:"problemStatement,omitempty"`
	TargetAudience    string   `json:"targetAudience,omitempty"`
	ExpectedImpact    string   `json:"expectedImpact,omitempty"`
	RequiredResources string   `json:"requiredResources,omitempty"`
}

// Validate validates the Idea using the validator.
func (i *Idea) Validate() error {
	validate := validator.New()
	return validate.Struct(i)
}
