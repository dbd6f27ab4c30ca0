package normalize

import (
	"strings"
	"unicode/utf8"

	"github.com/jonathan/idea-evaluator/internal/llm"
)

// FallbackMessage is placed in the first field when no tier could read the response
const FallbackMessage = "Could not parse the AI response."

// DefaultExcerptLimit bounds the raw-text excerpt kept by the fallback tier, in runes
const DefaultExcerptLimit = 500

// Result is a normalized record and the tier that produced it
type Result struct {
	Record Record
	Tier   Tier
}

// Normalizer converts raw model output into a Record. It holds no mutable state and
// is safe for concurrent use.
type Normalizer struct {
	rules        []RepairRule
	excerptLimit int
}

// Option configures a Normalizer
type Option func(*Normalizer)

// WithRepairRules replaces the repair tier's rule sequence
func WithRepairRules(rules ...RepairRule) Option {
	return func(n *Normalizer) {
		n.rules = append([]RepairRule(nil), rules...)
	}
}

// WithExcerptLimit sets how many runes of raw text the fallback tier keeps
func WithExcerptLimit(limit int) Option {
	return func(n *Normalizer) {
		if limit > 0 {
			n.excerptLimit = limit
		}
	}
}

// New creates a Normalizer
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		rules:        DefaultRepairRules(),
		excerptLimit: DefaultExcerptLimit,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

var defaultNormalizer = New()

// Default returns the shared Normalizer with the default rule set
func Default() *Normalizer {
	return defaultNormalizer
}

// Normalize runs the default Normalizer
func Normalize(raw string, fields []Field) Result {
	return defaultNormalizer.Normalize(raw, fields)
}

// Normalize never fails. Tiers run in order, each only when the previous one did not
// produce a record:
//
//  1. direct: the first {...} span parses as JSON and names every field
//  2. sections: blank-line sections with recognised headers
//  3. positional: sections assigned to fields in order
//  4. repair: an object-like span is patched by the repair rules and re-parsed
//  5. fallback: a fixed message plus an excerpt of the raw text
//
// Tiers 2 and 3 are skipped when the text holds an object-like span naming every
// field; splitting broken JSON on blank lines would only scatter it.
// Every field in the result is non-empty.
func (n *Normalizer) Normalize(raw string, fields []Field) Result {
	text := llm.CleanJSONBlock(raw)

	rec, tier := n.runTiers(text, raw, fields)
	fillDefaults(rec, fields)
	return Result{Record: rec, Tier: tier}
}

func (n *Normalizer) runTiers(text, raw string, fields []Field) (Record, Tier) {
	if rec, ok := extractDirect(text, fields); ok {
		return rec, TierDirect
	}

	if !looksStructured(text, fields) {
		sections := splitSections(text)
		if rec, ok := matchSections(sections, fields); ok {
			return rec, TierSections
		}
		if rec, ok := assignPositional(text, sections, fields); ok {
			return rec, TierPositional
		}
	}

	if rec, ok := n.repair(text, fields); ok {
		return rec, TierRepair
	}

	return n.fallback(raw, fields), TierFallback
}

// extractDirect tries the greedy outer span first, then the first balanced span
func extractDirect(text string, fields []Field) (Record, bool) {
	if span, ok := greedyObject(text); ok {
		if rec, ok := parseRecord(span, fields); ok {
			return rec, true
		}
	}
	if span, ok := balancedObject(text); ok {
		if rec, ok := parseRecord(span, fields); ok {
			return rec, true
		}
	}
	return nil, false
}

func (n *Normalizer) repair(text string, fields []Field) (Record, bool) {
	candidate, ok := looseObject(text)
	if !ok || !hasKeyTokens(candidate, fields) {
		return nil, false
	}
	return parseRecord(applyRules(candidate, n.rules), fields)
}

func (n *Normalizer) fallback(raw string, fields []Field) Record {
	rec := make(Record, len(fields))
	if len(fields) == 0 {
		return rec
	}
	rec[fields[0].Name] = FallbackMessage
	if len(fields) > 1 {
		rec[fields[1].Name] = truncateRunes(strings.TrimSpace(raw), n.excerptLimit)
	}
	return rec
}

// fillDefaults is the completeness pass: no field may be left empty
func fillDefaults(rec Record, fields []Field) {
	for _, f := range fields {
		value := strings.TrimSpace(rec[f.Name])
		if value == "" {
			value = f.defaultValue()
		}
		rec[f.Name] = value
	}
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
