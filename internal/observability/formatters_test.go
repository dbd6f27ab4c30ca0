package observability

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/idea-evaluator/internal/normalize"
	"github.com/jonathan/idea-evaluator/internal/types"
)

func TestPrintIdea(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintIdea(&types.Idea{
		Name:        "Smart Badge",
		Description: "Badges that open doors",
		Department:  "Facilities",
		Tags:        []string{"iot", "security"},
	})
	output := buf.String()

	assert.Contains(t, output, "IDEA")
	assert.Contains(t, output, "Smart Badge")
	assert.Contains(t, output, "Facilities")
	assert.Contains(t, output, "iot, security")
	assert.NotContains(t, output, "Author:")
}

func TestPrintIdea_Nil(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintIdea(nil)
	assert.Empty(t, buf.String())
}

func newEvaluation(t *testing.T, results map[types.Criterion]types.CriterionResult) *types.CompositeEvaluation {
	t.Helper()
	e, err := types.NewCompositeEvaluation(results)
	require.NoError(t, err)
	return e
}

func TestPrintEvaluation(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintEvaluation(newEvaluation(t, map[types.Criterion]types.CriterionResult{
		types.CriterionInnovation:  {Score: 90, Explanation: "Novel approach to access control."},
		types.CriterionImpact:      {Score: 70, Explanation: "Saves time at entrances."},
		types.CriterionAlignment:   {Score: 80, Explanation: "Fits the workplace strategy."},
		types.CriterionFeasibility: {Score: 60, Explanation: strings.Repeat("Hardware rollout is slow. ", 20)},
	}))
	output := buf.String()

	assert.Contains(t, output, "EVALUATION")
	assert.Contains(t, output, "INNOVATION")
	assert.Contains(t, output, "FEASIBILITY")
	assert.Contains(t, output, "OVERALL")
	assert.Contains(t, output, " 75 ")
	assert.NotContains(t, output, "could not be scored")
	assert.Contains(t, output, "...", "long explanations are cut")
}

func TestPrintEvaluation_Sentineled(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintEvaluation(newEvaluation(t, map[types.Criterion]types.CriterionResult{
		types.CriterionInnovation: {Score: 90, Explanation: "Novel."},
	}))
	output := buf.String()

	assert.Contains(t, output, "(fallback)")
	assert.Contains(t, output, "3 of 4 criteria could not be scored")
	assert.Contains(t, output, types.SentinelExplanation)
}

func TestPrintEvaluation_BoxLinesHaveEqualWidth(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintEvaluation(newEvaluation(t, map[types.Criterion]types.CriterionResult{
		types.CriterionImpact: {Score: 42, Explanation: "Ünïcödé explanation with wide → arrows"},
	}))

	for _, line := range strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n") {
		assert.Equal(t, boxWidth, utf8.RuneCountInString(line), line)
	}
}

func TestPrintEnhancement(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintEnhancement(&types.EnhancementRecord{Rewritten: "A clearer idea", Evaluation: "Specific and measurable"})
	output := buf.String()

	assert.Contains(t, output, "ENHANCEMENT")
	assert.Contains(t, output, "A clearer idea")
	assert.Contains(t, output, "Specific and measurable")
}

func TestPrintCriterion(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintCriterion(types.CriterionImpact, types.CriterionResult{Score: 77})
	p.PrintCriterion(types.CriterionAlignment, types.SentinelResult())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "✓ impact")
	assert.Contains(t, lines[0], "77")
	assert.Contains(t, lines[1], "⚠ alignment")
	assert.Contains(t, lines[1], "50")
}

func TestPrintNormalization(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintNormalization("innovation", normalize.Result{Tier: normalize.TierDirect})
	p.PrintNormalization("impact", normalize.Result{Tier: normalize.TierRepair})

	assert.Contains(t, buf.String(), "innovation: parsed as JSON")
	assert.Contains(t, buf.String(), "impact: recovered via repair tier")
}

func TestWrap(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  []string
	}{
		{name: "empty", text: "   ", width: 10, want: nil},
		{name: "fits", text: "one two", width: 10, want: []string{"one two"}},
		{name: "breaks on words", text: "one two three four", width: 9, want: []string{"one two", "three", "four"}},
		{name: "long word kept whole", text: "extraordinarily long", width: 5, want: []string{"extraordinarily", "long"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, wrap(tt.text, tt.width))
		})
	}
}

func TestScoreBar(t *testing.T) {
	assert.Equal(t, strings.Repeat("░", barWidth), scoreBar(0))
	assert.Equal(t, strings.Repeat("█", barWidth), scoreBar(100))
	assert.Equal(t, strings.Repeat("█", 10)+strings.Repeat("░", 10), scoreBar(50))
}
