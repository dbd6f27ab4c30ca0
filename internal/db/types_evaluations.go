package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/idea-evaluator/internal/types"
)

// List limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// EvaluationRecord is one stored evaluation
type EvaluationRecord struct {
	ID         uuid.UUID                  `json:"id"`
	IdeaName   string                     `json:"ideaName"`
	Idea       types.Idea                 `json:"idea"`
	Evaluation *types.CompositeEvaluation `json:"evaluation"`
	Sentineled []string                   `json:"sentineled,omitempty"`
	Model      string                     `json:"model,omitempty"`
	DurationMs int                        `json:"durationMs"`
	CreatedAt  time.Time                  `json:"createdAt"`
}

// EvaluationInput is what SaveEvaluation stores
type EvaluationInput struct {
	Idea       types.Idea
	Evaluation *types.CompositeEvaluation
	Model      string
	Duration   time.Duration
}

// sentinelNames lists the sentineled criteria of an evaluation as strings
func sentinelNames(e *types.CompositeEvaluation) []string {
	names := []string{}
	for _, c := range e.Sentineled() {
		names = append(names, string(c))
	}
	return names
}

// clampLimit bounds a list page size
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
