// Package normalize turns free-form model output into structured records.
//
// A Normalizer tries a fixed sequence of recovery tiers, stopping at the first that
// yields a record, and then fills any field still empty with that field's default.
// It never fails: the worst case is a record carrying a "could not parse" message and
// an excerpt of the raw text.
package normalize

import (
	"fmt"
	"strings"
)

// Field describes one required output field
type Field struct {
	Name string
	// Synonyms are alternative keys and section headers accepted for this field
	Synonyms []string
	// Default replaces the value when no tier produced one
	Default string
}

// keywords returns the lowercased name followed by the synonyms
func (f Field) keywords() []string {
	out := make([]string, 0, len(f.Synonyms)+1)
	out = append(out, strings.ToLower(f.Name))
	for _, s := range f.Synonyms {
		out = append(out, strings.ToLower(s))
	}
	return out
}

func (f Field) defaultValue() string {
	if f.Default != "" {
		return f.Default
	}
	return fmt.Sprintf("AI couldn't provide a %s.", f.Name)
}

// EnhancementFields is the shape returned by the enhancement service
var EnhancementFields = []Field{
	{
		Name:     "rewritten",
		Synonyms: []string{"enhanced", "improved", "rewrite"},
		Default:  "AI couldn't provide a rewritten version.",
	},
	{
		Name:     "evaluation",
		Synonyms: []string{"feedback", "assessment", "analysis"},
		Default:  "AI couldn't provide a proper evaluation.",
	},
}

// CriterionFields is the shape returned for one evaluation criterion
var CriterionFields = []Field{
	{
		Name:     "score",
		Synonyms: []string{"rating"},
		Default:  "AI couldn't provide a score.",
	},
	{
		Name:     "explanation",
		Synonyms: []string{"reasoning", "rationale", "justification"},
		Default:  "AI couldn't provide an explanation.",
	},
}
