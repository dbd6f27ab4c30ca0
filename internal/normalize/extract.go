package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// greedyObject returns the span from the first '{' to the last '}'
func greedyObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// balancedObject returns the first '{' and its matching '}', skipping string contents
func balancedObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// looseObject is the repair tier's candidate: first '{' through the last '}', or
// through the end of the text when the object was cut off.
func looseObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	if start < 0 {
		return "", false
	}
	if end := strings.LastIndex(text, "}"); end > start {
		return text[start : end+1], true
	}
	return text[start:], true
}

// decodeObject strictly parses a single JSON object with nothing after it
func decodeObject(s string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after object")
	}
	if obj == nil {
		return nil, errors.New("not an object")
	}
	return obj, nil
}

// parseRecord decodes s and maps its keys onto fields. Objects nested one level deep
// are searched when the top level does not carry every field.
func parseRecord(s string, fields []Field) (Record, bool) {
	obj, err := decodeObject(s)
	if err != nil {
		return nil, false
	}
	if rec, ok := mapFields(obj, fields); ok {
		return rec, true
	}

	for _, key := range sortedKeys(obj) {
		if nested, ok := obj[key].(map[string]any); ok {
			if rec, ok := mapFields(nested, fields); ok {
				return rec, true
			}
		}
	}
	return nil, false
}

// mapFields assigns object keys to fields. Exact name matches win over synonyms and
// keys are visited in sorted order so ties resolve the same way every time.
func mapFields(obj map[string]any, fields []Field) (Record, bool) {
	keys := sortedKeys(obj)
	rec := make(Record, len(fields))

	for _, f := range fields {
		key, ok := findKey(keys, f)
		if !ok {
			return nil, false
		}
		rec[f.Name] = stringify(obj[key])
	}
	return rec, true
}

func findKey(keys []string, f Field) (string, bool) {
	name := canonicalKey(f.Name)
	for _, k := range keys {
		if canonicalKey(k) == name {
			return k, true
		}
	}
	for _, kw := range f.keywords() {
		kw = canonicalKey(kw)
		for _, k := range keys {
			if strings.HasPrefix(canonicalKey(k), kw) {
				return k, true
			}
		}
	}
	return "", false
}

// canonicalKey lowercases and drops separators so "Overall_Score" ~ "overallscore"
func canonicalKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(k)
}

func sortedKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(val); err != nil {
			return ""
		}
		return strings.TrimSpace(buf.String())
	}
}

// hasKeyTokens reports whether text mentions a key for every field, in the
// `"key":` / `'key':` / `key:` forms models produce.
func hasKeyTokens(text string, fields []Field) bool {
	for _, f := range fields {
		found := false
		for _, kw := range f.keywords() {
			if keyTokenPattern(kw).MatchString(text) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func keyTokenPattern(keyword string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[^a-z0-9_])` + regexp.QuoteMeta(keyword) + `[a-z0-9_]*["']?\s*:`)
}

// looksStructured reports whether text holds an object-like span naming every field.
// Such text is routed to the repair tier rather than the section heuristics.
func looksStructured(text string, fields []Field) bool {
	candidate, ok := looseObject(text)
	return ok && hasKeyTokens(candidate, fields)
}
