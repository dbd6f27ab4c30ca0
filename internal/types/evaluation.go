package types

import (
	"encoding/json"
	"fmt"
	"math"
)

// Criterion is one of the four axes an idea is scored on
type Criterion string

const (
	CriterionInnovation  Criterion = "innovation"
	CriterionImpact      Criterion = "impact"
	CriterionAlignment   Criterion = "alignment"
	CriterionFeasibility Criterion = "feasibility"
)

var criteria = []Criterion{CriterionInnovation, CriterionImpact, CriterionAlignment, CriterionFeasibility}

// Criteria returns every criterion in fixed order
func Criteria() []Criterion {
	return append([]Criterion(nil), criteria...)
}

func (c Criterion) index() int {
	for i, known := range criteria {
		if c == known {
			return i
		}
	}
	return -1
}

// Valid reports whether c is a known criterion
func (c Criterion) Valid() bool {
	return c.index() >= 0
}

const (
	// SentinelScore replaces a criterion score that could not be obtained
	SentinelScore = 50
	// SentinelExplanation accompanies SentinelScore
	SentinelExplanation = "Error parsing AI evaluation response."
)

// CriterionResult is the score and explanation for one criterion
type CriterionResult struct {
	Score       int    `json:"score"`
	Explanation string `json:"explanation"`
	// Sentineled marks a substituted result. It is kept for logs and the audit trail
	// and never appears in the public envelope.
	Sentineled bool `json:"sentineled,omitempty"`
}

// SentinelResult returns the fixed result used when a criterion failed
func SentinelResult() CriterionResult {
	return CriterionResult{Score: SentinelScore, Explanation: SentinelExplanation, Sentineled: true}
}

// CompositeEvaluation holds one result per criterion and the derived overall score.
// The overall score is recomputed on every change and cannot be set directly.
type CompositeEvaluation struct {
	results [4]CriterionResult
	overall int
}

// NewCompositeEvaluation builds an evaluation from results. Criteria missing from
// results hold the sentinel.
func NewCompositeEvaluation(results map[Criterion]CriterionResult) (*CompositeEvaluation, error) {
	e := &CompositeEvaluation{}
	for i := range e.results {
		e.results[i] = SentinelResult()
	}
	for c, r := range results {
		i := c.index()
		if i < 0 {
			return nil, fmt.Errorf("unknown criterion %q", c)
		}
		e.results[i] = clampResult(r)
	}
	e.recompute()
	return e, nil
}

// Set replaces the result for one criterion and recomputes the overall score
func (e *CompositeEvaluation) Set(c Criterion, r CriterionResult) error {
	i := c.index()
	if i < 0 {
		return fmt.Errorf("unknown criterion %q", c)
	}
	e.results[i] = clampResult(r)
	e.recompute()
	return nil
}

// Result returns the result for one criterion
func (e *CompositeEvaluation) Result(c Criterion) CriterionResult {
	i := c.index()
	if i < 0 {
		return CriterionResult{}
	}
	return e.results[i]
}

// OverallScore returns round(mean) of the four scores
func (e *CompositeEvaluation) OverallScore() int {
	return e.overall
}

// Sentineled lists the criteria holding a substituted result, in criterion order
func (e *CompositeEvaluation) Sentineled() []Criterion {
	var out []Criterion
	for i, r := range e.results {
		if r.Sentineled {
			out = append(out, criteria[i])
		}
	}
	return out
}

func (e *CompositeEvaluation) recompute() {
	sum := 0
	for _, r := range e.results {
		sum += r.Score
	}
	e.overall = int(math.Round(float64(sum) / float64(len(e.results))))
}

func clampResult(r CriterionResult) CriterionResult {
	if r.Score < 0 {
		r.Score = 0
	}
	if r.Score > 100 {
		r.Score = 100
	}
	return r
}

// evaluationEnvelope is the public wire shape of a CompositeEvaluation
type evaluationEnvelope struct {
	InnovationScore        int    `json:"innovationScore"`
	ImpactScore            int    `json:"impactScore"`
	AlignmentScore         int    `json:"alignmentScore"`
	FeasibilityScore       int    `json:"feasibilityScore"`
	InnovationExplanation  string `json:"innovationExplanation"`
	ImpactExplanation      string `json:"impactExplanation"`
	AlignmentExplanation   string `json:"alignmentExplanation"`
	FeasibilityExplanation string `json:"feasibilityExplanation"`
	OverallScore           int    `json:"overallScore"`
}

// MarshalJSON writes the flat envelope returned to callers
func (e *CompositeEvaluation) MarshalJSON() ([]byte, error) {
	return json.Marshal(evaluationEnvelope{
		InnovationScore:        e.results[0].Score,
		ImpactScore:            e.results[1].Score,
		AlignmentScore:         e.results[2].Score,
		FeasibilityScore:       e.results[3].Score,
		InnovationExplanation:  e.results[0].Explanation,
		ImpactExplanation:      e.results[1].Explanation,
		AlignmentExplanation:   e.results[2].Explanation,
		FeasibilityExplanation: e.results[3].Explanation,
		OverallScore:           e.overall,
	})
}

// UnmarshalJSON reads the flat envelope. The overallScore in the input is ignored and
// recomputed from the four scores.
func (e *CompositeEvaluation) UnmarshalJSON(data []byte) error {
	var env evaluationEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	e.results = [4]CriterionResult{
		clampResult(CriterionResult{Score: env.InnovationScore, Explanation: env.InnovationExplanation}),
		clampResult(CriterionResult{Score: env.ImpactScore, Explanation: env.ImpactExplanation}),
		clampResult(CriterionResult{Score: env.AlignmentScore, Explanation: env.AlignmentExplanation}),
		clampResult(CriterionResult{Score: env.FeasibilityScore, Explanation: env.FeasibilityExplanation}),
	}
	e.recompute()
	return nil
}
