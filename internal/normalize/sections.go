package normalize

import (
	"regexp"
	"strings"
)

var blankLinePattern = regexp.MustCompile(`\n[ \t\r]*\n`)

// maxHeaderWords bounds how much of a line may precede ':' and still count as a header
const maxHeaderWords = 6

// splitSections splits text on blank lines, dropping empty sections
func splitSections(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var sections []string
	for _, part := range blankLinePattern.Split(text, -1) {
		if part = strings.TrimSpace(part); part != "" {
			sections = append(sections, part)
		}
	}
	return sections
}

// matchHeader checks the first line of a section for a field keyword. On a match it
// returns the field index and the section text with the header token removed.
func matchHeader(section string, fields []Field) (int, string, bool) {
	firstLine, rest, _ := strings.Cut(section, "\n")
	header, inline, hasColon := splitHeaderLine(firstLine)
	rest = strings.TrimSpace(rest)
	if !hasColon && rest == "" {
		// a lone short line is content, not a header
		return -1, "", false
	}

	idx := headerField(header, fields)
	if idx < 0 {
		return -1, "", false
	}
	body := strings.Join(nonEmpty(inline, rest), "\n")
	return idx, strings.TrimSpace(body), true
}

// splitHeaderLine strips markdown decoration and splits "Header: value"
func splitHeaderLine(line string) (header, inline string, hasColon bool) {
	line = strings.TrimLeft(strings.TrimSpace(line), "#*_>-• \t")
	colon := strings.Index(line, ":")
	if colon < 0 {
		return line, "", false
	}
	return line[:colon], strings.TrimSpace(strings.TrimLeft(line[colon+1:], "*_ \t")), true
}

// headerField returns the first field whose keyword appears in header, or -1
func headerField(header string, fields []Field) int {
	if len(strings.Fields(header)) > maxHeaderWords {
		return -1
	}
	lower := strings.ToLower(header)
	for i, f := range fields {
		for _, kw := range f.keywords() {
			if strings.Contains(lower, kw) {
				return i
			}
		}
	}
	return -1
}

func nonEmpty(parts ...string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// matchSections assigns sections to fields by header keyword. Sections without a
// header continue the most recently matched field; text before the first header is
// dropped. It fails when no section carries a recognised header.
func matchSections(sections []string, fields []Field) (Record, bool) {
	parts := make([][]string, len(fields))
	current := -1
	matched := false

	for _, section := range splitAtHeaders(sections, fields) {
		if idx, body, ok := matchHeader(section, fields); ok {
			current = idx
			matched = true
			if body != "" {
				parts[idx] = append(parts[idx], body)
			}
			continue
		}
		if current >= 0 {
			parts[current] = append(parts[current], section)
		}
	}
	if !matched {
		return nil, false
	}

	rec := make(Record, len(fields))
	for i, f := range fields {
		rec[f.Name] = strings.Join(parts[i], "\n\n")
	}
	return rec, true
}

// splitAtHeaders further breaks sections at "Header: value" lines, so a reply that
// puts every field on its own line without blank lines in between still separates.
func splitAtHeaders(sections []string, fields []Field) []string {
	var out []string
	for _, section := range sections {
		lines := strings.Split(section, "\n")
		start := 0
		for i := 1; i < len(lines); i++ {
			if isInlineHeader(lines[i], fields) {
				out = append(out, strings.TrimSpace(strings.Join(lines[start:i], "\n")))
				start = i
			}
		}
		out = append(out, strings.TrimSpace(strings.Join(lines[start:], "\n")))
	}
	return out
}

func isInlineHeader(line string, fields []Field) bool {
	header, _, hasColon := splitHeaderLine(line)
	return hasColon && headerField(header, fields) >= 0
}

// assignPositional splits sections into contiguous runs, one per field, with floor
// division picking the boundaries. A single section is not split: the whole text goes
// to the first field and the rest are left for their defaults.
func assignPositional(text string, sections []string, fields []Field) (Record, bool) {
	n := len(sections)
	if n == 0 || len(fields) == 0 {
		return nil, false
	}

	rec := make(Record, len(fields))
	if n == 1 {
		rec[fields[0].Name] = strings.TrimSpace(text)
		for _, f := range fields[1:] {
			rec[f.Name] = ""
		}
		return rec, true
	}

	k := len(fields)
	for i, f := range fields {
		lo, hi := i*n/k, (i+1)*n/k
		rec[f.Name] = strings.Join(sections[lo:hi], "\n\n")
	}
	return rec, true
}
