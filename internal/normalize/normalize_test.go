package normalize

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_DirectJSON(t *testing.T) {
	result := Normalize(`{"rewritten":"A","evaluation":"B"}`, EnhancementFields)

	assert.Equal(t, TierDirect, result.Tier)
	assert.Equal(t, Record{"rewritten": "A", "evaluation": "B"}, result.Record)
}

func TestNormalize_DirectTier(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		fields []Field
		want   Record
	}{
		{
			name:   "preamble and code fence",
			raw:    "Here is my evaluation:\n```json\n{\"score\": 85, \"explanation\": \"Strong fit\"}\n```",
			fields: CriterionFields,
			want:   Record{"score": "85", "explanation": "Strong fit"},
		},
		{
			name:   "fenced only",
			raw:    "```json\n{\"score\": 40, \"explanation\": \"Weak\"}\n```",
			fields: CriterionFields,
			want:   Record{"score": "40", "explanation": "Weak"},
		},
		{
			name:   "synonym keys",
			raw:    `{"Enhanced_Version": "A", "Feedback": "B"}`,
			fields: EnhancementFields,
			want:   Record{"rewritten": "A", "evaluation": "B"},
		},
		{
			name:   "exact name wins over synonym",
			raw:    `{"feedback": "loose", "evaluation": "exact", "rewritten": "R"}`,
			fields: EnhancementFields,
			want:   Record{"rewritten": "R", "evaluation": "exact"},
		},
		{
			name:   "nested one level",
			raw:    `{"result": {"score": 70, "explanation": "ok"}}`,
			fields: CriterionFields,
			want:   Record{"score": "70", "explanation": "ok"},
		},
		{
			name:   "first balanced object when greedy span is invalid",
			raw:    `{"score": 10, "explanation": "a"} and later {"other": 1}`,
			fields: CriterionFields,
			want:   Record{"score": "10", "explanation": "a"},
		},
		{
			name:   "non-string values are stringified",
			raw:    `{"score": 7.5, "explanation": ["a", "b"]}`,
			fields: CriterionFields,
			want:   Record{"score": "7.5", "explanation": `["a","b"]`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Normalize(tt.raw, tt.fields)
			assert.Equal(t, TierDirect, result.Tier)
			assert.Equal(t, tt.want, result.Record)
		})
	}
}

func TestNormalize_HeuristicSplit(t *testing.T) {
	result := Normalize("Rewritten: Better idea text\n\nEvaluation: Looks solid", EnhancementFields)

	assert.Equal(t, TierSections, result.Tier)
	assert.Equal(t, Record{"rewritten": "Better idea text", "evaluation": "Looks solid"}, result.Record)
}

func TestNormalize_SectionsTier(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		fields []Field
		want   Record
	}{
		{
			name:   "markdown headers on their own line",
			raw:    "## Enhanced Idea\nA better onboarding flow.\n\n## Assessment\nStrong but costly.",
			fields: EnhancementFields,
			want:   Record{"rewritten": "A better onboarding flow.", "evaluation": "Strong but costly."},
		},
		{
			name:   "bold headers",
			raw:    "**Improved version:** Ship weekly.\n\n**Feedback:** Realistic.",
			fields: EnhancementFields,
			want:   Record{"rewritten": "Ship weekly.", "evaluation": "Realistic."},
		},
		{
			name:   "continuation paragraphs",
			raw:    "Rewritten: First paragraph.\n\nSecond paragraph.\n\nEvaluation: Good.",
			fields: EnhancementFields,
			want:   Record{"rewritten": "First paragraph.\n\nSecond paragraph.", "evaluation": "Good."},
		},
		{
			name:   "header lines without blank lines",
			raw:    "Score: 85\nExplanation: Clear value.",
			fields: CriterionFields,
			want:   Record{"score": "85", "explanation": "Clear value."},
		},
		{
			name:   "case insensitive",
			raw:    "RATING: 60/100\n\nREASONING: Needs a pilot.",
			fields: CriterionFields,
			want:   Record{"score": "60/100", "explanation": "Needs a pilot."},
		},
		{
			name:   "braces in prose do not block sections",
			raw:    "Rewritten: Use {placeholders} in templates\n\nEvaluation: fine",
			fields: EnhancementFields,
			want:   Record{"rewritten": "Use {placeholders} in templates", "evaluation": "fine"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Normalize(tt.raw, tt.fields)
			assert.Equal(t, TierSections, result.Tier)
			assert.Equal(t, tt.want, result.Record)
		})
	}
}

func TestNormalize_PositionalTier(t *testing.T) {
	result := Normalize("First thought.\n\nSecond thought.\n\nThird thought.", EnhancementFields)

	assert.Equal(t, TierPositional, result.Tier)
	assert.Equal(t, "First thought.", result.Record["rewritten"])
	assert.Equal(t, "Second thought.\n\nThird thought.", result.Record["evaluation"])
}

func TestNormalize_PositionalEvenSplit(t *testing.T) {
	result := Normalize("one\n\ntwo\n\nthree\n\nfour", EnhancementFields)

	assert.Equal(t, TierPositional, result.Tier)
	assert.Equal(t, "one\n\ntwo", result.Record["rewritten"])
	assert.Equal(t, "three\n\nfour", result.Record["evaluation"])
}

func TestNormalize_SingleSection(t *testing.T) {
	raw := "random unstructured prose with no headers"
	result := Normalize(raw, EnhancementFields)

	assert.Equal(t, TierPositional, result.Tier)
	assert.Equal(t, raw, result.Record["rewritten"])
	assert.Equal(t, EnhancementFields[1].Default, result.Record["evaluation"])
}

func TestNormalize_SingleShortLineIsContent(t *testing.T) {
	raw := "Improved onboarding flow for interns"
	result := Normalize(raw, EnhancementFields)

	assert.Equal(t, TierPositional, result.Tier)
	assert.Equal(t, raw, result.Record["rewritten"])
}

func TestNormalize_RepairTier(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Record
	}{
		{
			name: "bare keys, single quotes, trailing comma",
			raw:  `{score: 85, explanation: 'Solid idea',}`,
			want: Record{"score": "85", "explanation": "Solid idea"},
		},
		{
			name: "missing comma between members",
			raw:  "{\n  \"score\": 72\n  \"explanation\": \"Feasible with current staff\"\n}",
			want: Record{"score": "72", "explanation": "Feasible with current staff"},
		},
		{
			name: "truncated output",
			raw:  `{"score": 64, "explanation": "Promising but the budget`,
			want: Record{"score": "64", "explanation": "Promising but the budget"},
		},
		{
			name: "prose around a broken object",
			raw:  "Sure! {'score': 90, 'explanation': 'Bold'} Hope this helps.",
			want: Record{"score": "90", "explanation": "Bold"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Normalize(tt.raw, CriterionFields)
			assert.Equal(t, TierRepair, result.Tier)
			assert.Equal(t, tt.want, result.Record)
		})
	}
}

func TestNormalize_FallbackTier(t *testing.T) {
	raw := `{"score": , "explanation": }`
	result := Normalize(raw, CriterionFields)

	assert.Equal(t, TierFallback, result.Tier)
	assert.Equal(t, FallbackMessage, result.Record["score"])
	assert.Equal(t, raw, result.Record["explanation"])

	_, ok := result.Record.Int("score")
	assert.False(t, ok, "fallback must not produce a usable score")
}

func TestNormalize_FallbackExcerptIsTruncated(t *testing.T) {
	raw := `{"rewritten": ???, "evaluation": ???}` + strings.Repeat("z", 600)
	result := Normalize(raw, EnhancementFields)

	require.Equal(t, TierFallback, result.Tier)
	excerpt := result.Record["evaluation"]
	assert.Equal(t, DefaultExcerptLimit, utf8.RuneCountInString(excerpt))
	assert.True(t, strings.HasPrefix(raw, excerpt))
}

func TestNormalize_FallbackExcerptCountsRunes(t *testing.T) {
	n := New(WithExcerptLimit(5))
	raw := `{"rewritten": ?, "evaluation": ?}` + strings.Repeat("é", 10)
	result := n.Normalize(raw, EnhancementFields)

	require.Equal(t, TierFallback, result.Tier)
	assert.Equal(t, `{"rew`, result.Record["evaluation"])
	assert.True(t, utf8.ValidString(result.Record["evaluation"]))
}

func TestNormalize_EmptyInputUsesFallback(t *testing.T) {
	result := Normalize("", EnhancementFields)

	assert.Equal(t, TierFallback, result.Tier)
	assert.Equal(t, FallbackMessage, result.Record["rewritten"])
	assert.Equal(t, EnhancementFields[1].Default, result.Record["evaluation"])
}

func TestNormalize_WithoutRepairRules(t *testing.T) {
	n := New(WithRepairRules())
	result := n.Normalize(`{score: 85, explanation: 'Solid idea',}`, CriterionFields)

	assert.Equal(t, TierFallback, result.Tier)
}

func TestNormalize_CompletenessInvariant(t *testing.T) {
	inputs := []string{
		"",
		"   \n\t  ",
		"{{{{",
		"}}}{",
		`{"rewritten": ""`,
		`{"rewritten": "", "evaluation": ""}`,
		"null",
		"[1, 2, 3]",
		"```\n```",
		"Evaluation:",
		"\n\n\n",
		`{"score": "", "explanation": null}`,
		strings.Repeat("{", 1000),
	}

	for _, fields := range [][]Field{EnhancementFields, CriterionFields} {
		for _, raw := range inputs {
			result := Normalize(raw, fields)
			require.Len(t, result.Record, len(fields), "input %q", raw)
			for _, f := range fields {
				assert.NotEmpty(t, strings.TrimSpace(result.Record[f.Name]), "field %s for input %q", f.Name, raw)
			}
		}
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	inputs := []string{
		`{"rewritten":"A","evaluation":"B"}`,
		`{"feedback": "f", "assessment": "a", "enhanced": "e", "improved": "i"}`,
		"Rewritten: x\n\nEvaluation: y",
		"a\n\nb\n\nc",
		`{score: 1, explanation: 'x'`,
		"",
	}

	for _, raw := range inputs {
		first := Normalize(raw, EnhancementFields)
		for i := 0; i < 20; i++ {
			assert.Equal(t, first, Normalize(raw, EnhancementFields), "input %q", raw)
		}
	}
}

func TestRecordInt(t *testing.T) {
	tests := []struct {
		value string
		want  int
		ok    bool
	}{
		{"85", 85, true},
		{" 72 ", 72, true},
		{"1e2", 100, true},
		{"0", 0, true},
		{"85/100", 85, true},
		{"8/10", 80, true},
		{"7.5 out of 10", 75, true},
		{"Score is 7.6", 8, true},
		{"I would rate it 72.", 72, true},
		{"Launched in 2024, I would rate it 72.", 0, false},
		{"Between 60 and 70", 0, false},
		{"12/10", 0, false},
		{"150", 0, false},
		{"-3", 0, false},
		{"NaN", 0, false},
		{"none", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, ok := Record{"score": tt.value}.Int("score")
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_ScoreFromResponse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
		ok   bool
	}{
		{name: "exponent number", raw: `{"score": 1e2, "explanation": "x"}`, want: 100, ok: true},
		{name: "fraction of ten", raw: `{"score": "8/10", "explanation": "x"}`, want: 80, ok: true},
		{name: "out of range", raw: `{"score": 140, "explanation": "x"}`, ok: false},
		{name: "prose with a year", raw: "Launched in 2024, the idea is solid. I would rate it 72.", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.raw, CriterionFields).Record.Int("score")
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTierString(t *testing.T) {
	assert.Equal(t, "direct", TierDirect.String())
	assert.Equal(t, "sections", TierSections.String())
	assert.Equal(t, "positional", TierPositional.String())
	assert.Equal(t, "repair", TierRepair.String())
	assert.Equal(t, "fallback", TierFallback.String())
	assert.Equal(t, "unknown", Tier(0).String())
}
