package normalize

import (
	"regexp"
	"strings"
)

// RepairRule is one textual fix applied to a malformed JSON object.
// Apply must be a pure function of its input.
type RepairRule struct {
	Name  string
	Apply func(string) string
}

// DefaultRepairRules returns the repair sequence used by the repair tier, in order.
func DefaultRepairRules() []RepairRule {
	return []RepairRule{
		{Name: "quote-bare-keys", Apply: QuoteBareKeys},
		{Name: "normalize-quotes", Apply: NormalizeQuotes},
		{Name: "balance-braces", Apply: BalanceBraces},
		{Name: "strip-trailing-commas", Apply: StripTrailingCommas},
		{Name: "insert-missing-separators", Apply: InsertMissingSeparators},
	}
}

// applyRules runs rules in order
func applyRules(s string, rules []RepairRule) string {
	for _, rule := range rules {
		s = rule.Apply(s)
	}
	return s
}

// segment is a run of text that is either entirely inside a string literal or
// entirely outside one.
type segment struct {
	text         string
	quoted       bool
	quote        byte
	unterminated bool
}

// splitSegments tokenizes s into string literals and the structure between them.
// Double quotes always open a string; a single quote opens one only in a value or
// key position (after '{', '[', ':' or ','), so apostrophes in prose are left alone.
func splitSegments(s string) []segment {
	var segs []segment
	var buf strings.Builder
	inString := false
	var quote byte
	var last byte // last non-space byte outside strings

	flush := func(quoted bool, unterminated bool) {
		if buf.Len() == 0 {
			return
		}
		segs = append(segs, segment{text: buf.String(), quoted: quoted, quote: quote, unterminated: unterminated})
		buf.Reset()
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			buf.WriteByte(c)
			if c == '\\' && i+1 < len(s) {
				i++
				buf.WriteByte(s[i])
				continue
			}
			if c == quote {
				flush(true, false)
				inString = false
				last = c
			}
			continue
		}

		if c == '"' || (c == '\'' && opensString(last)) {
			flush(false, false)
			inString = true
			quote = c
			buf.WriteByte(c)
			continue
		}

		buf.WriteByte(c)
		if !isSpace(c) {
			last = c
		}
	}
	flush(inString, inString)
	return segs
}

func opensString(prev byte) bool {
	switch prev {
	case 0, '{', '[', ':', ',':
		return true
	}
	return false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func joinSegments(segs []segment) string {
	var sb strings.Builder
	for _, seg := range segs {
		sb.WriteString(seg.text)
	}
	return sb.String()
}

// mapStructure rewrites only the text outside string literals
func mapStructure(s string, fn func(string) string) string {
	segs := splitSegments(s)
	for i := range segs {
		if !segs[i].quoted {
			segs[i].text = fn(segs[i].text)
		}
	}
	return joinSegments(segs)
}

var bareKeyPattern = regexp.MustCompile(`(?m)((?:^|[{,])[ \t]*)([A-Za-z_][A-Za-z0-9_-]*)([ \t]*):`)

// QuoteBareKeys wraps unquoted object keys in double quotes: {score: 1} -> {"score": 1}
func QuoteBareKeys(s string) string {
	return mapStructure(s, func(t string) string {
		return bareKeyPattern.ReplaceAllString(t, `$1"$2"$3:`)
	})
}

// NormalizeQuotes rewrites single-quoted keys and values as double-quoted strings
func NormalizeQuotes(s string) string {
	segs := splitSegments(s)
	for i, seg := range segs {
		if !seg.quoted || seg.quote != '\'' {
			continue
		}
		inner := seg.text[1:]
		if !seg.unterminated {
			inner = inner[:len(inner)-1]
		}
		inner = strings.ReplaceAll(inner, `\'`, `'`)
		inner = escapeBareDoubleQuotes(inner)
		segs[i].text = `"` + inner + `"`
		segs[i].quote = '"'
		segs[i].unterminated = false
	}
	return joinSegments(segs)
}

func escapeBareDoubleQuotes(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			sb.WriteByte(c)
			i++
			sb.WriteByte(s[i])
			continue
		}
		if c == '"' {
			sb.WriteString(`\"`)
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

var trailingCommaPattern = regexp.MustCompile(`,(\s*[}\]])`)

// StripTrailingCommas removes commas directly before a closing brace or bracket
func StripTrailingCommas(s string) string {
	return mapStructure(s, func(t string) string {
		return trailingCommaPattern.ReplaceAllString(t, "$1")
	})
}

var valueEndPattern = regexp.MustCompile(`([0-9}\]]|true|false|null)(\s+)$`)

// InsertMissingSeparators adds the comma models drop between adjacent members,
// e.g. `"a": "x" "b": 2` or a number followed by a newline and the next key.
func InsertMissingSeparators(s string) string {
	segs := splitSegments(s)
	for i := range segs {
		if segs[i].quoted || i+1 >= len(segs) || !segs[i+1].quoted {
			continue
		}
		text := segs[i].text
		switch {
		case i > 0 && segs[i-1].quoted && strings.TrimSpace(text) == "":
			segs[i].text = "," + text
		case valueEndPattern.MatchString(text):
			segs[i].text = valueEndPattern.ReplaceAllString(text, "$1,$2")
		}
	}
	return joinSegments(segs)
}

// BalanceBraces closes an unterminated string and any braces or brackets left open
// by output that was cut off, and drops anything after the outermost object closes.
func BalanceBraces(s string) string {
	segs := splitSegments(s)
	var stack []byte
	var sb strings.Builder

	for _, seg := range segs {
		if seg.quoted {
			sb.WriteString(seg.text)
			if seg.unterminated {
				sb.WriteByte(seg.quote)
			}
			continue
		}
		for i := 0; i < len(seg.text); i++ {
			c := seg.text[i]
			sb.WriteByte(c)
			switch c {
			case '{':
				stack = append(stack, '}')
			case '[':
				stack = append(stack, ']')
			case '}', ']':
				if len(stack) > 0 && stack[len(stack)-1] == c {
					stack = stack[:len(stack)-1]
					if len(stack) == 0 {
						return sb.String()
					}
				}
			}
		}
	}

	out := strings.TrimRight(sb.String(), " \t\r\n")
	for i := len(stack) - 1; i >= 0; i-- {
		out += string(stack[i])
	}
	return out
}
