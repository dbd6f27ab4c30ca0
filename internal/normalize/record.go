package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Record is a normalized model response keyed by field name
type Record map[string]string

// Get returns the value of a field, or "" when absent
func (r Record) Get(name string) string {
	return r[name]
}

var (
	numberPattern   = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	fractionPattern = regexp.MustCompile(`(?i)(-?\d+(?:\.\d+)?)\s*(?:/|out\s+of)\s*(10|100)\b`)
)

// Int reads a 0-100 score from a field, rounded to the nearest integer.
// The value may be a bare number ("72", "1e2"), an explicit fraction of 10 or 100
// ("8/10", "85 out of 100"), or prose containing exactly one number. Anything else,
// including a number outside 0-100, is reported as unusable.
func (r Record) Int(name string) (int, bool) {
	value := strings.TrimSpace(r[name])
	if value == "" {
		return 0, false
	}

	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return score(f)
	}

	if m := fractionPattern.FindAllStringSubmatch(value, -1); len(m) == 1 {
		f, err := strconv.ParseFloat(m[0][1], 64)
		if err != nil {
			return 0, false
		}
		if m[0][2] == "10" {
			if f < 0 || f > 10 {
				return 0, false
			}
			f *= 10
		}
		return score(f)
	}

	matches := numberPattern.FindAllString(value, -1)
	if len(matches) != 1 {
		return 0, false
	}
	f, err := strconv.ParseFloat(matches[0], 64)
	if err != nil {
		return 0, false
	}
	return score(f)
}

func score(f float64) (int, bool) {
	if math.IsNaN(f) || f < 0 || f > 100 {
		return 0, false
	}
	return int(math.Round(f)), true
}

// Tier identifies the recovery strategy that produced a record
type Tier int

// Recovery tiers, tried in this order
const (
	TierDirect Tier = iota + 1
	TierSections
	TierPositional
	TierRepair
	TierFallback
)

func (t Tier) String() string {
	switch t {
	case TierDirect:
		return "direct"
	case TierSections:
		return "sections"
	case TierPositional:
		return "positional"
	case TierRepair:
		return "repair"
	case TierFallback:
		return "fallback"
	default:
		return "unknown"
	}
}
