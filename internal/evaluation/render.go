package evaluation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/idea-evaluator/internal/types"
)

// NotSpecified stands in for any idea field left empty
const NotSpecified = "Not specified"

var markupPattern = regexp.MustCompile(`<[a-zA-Z/!][^>]*>`)

// RenderIdea formats an idea as the description block interpolated into every
// criterion prompt. Rich-text fields are flattened to plain text.
func RenderIdea(idea types.Idea) string {
	tags := make([]string, 0, len(idea.Tags))
	for _, tag := range idea.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}

	lines := []struct {
		label string
		value string
	}{
		{"Title", idea.Name},
		{"Author", idea.Author},
		{"Department", idea.Department},
		{"Tags", strings.Join(tags, ", ")},
		{"Description", idea.Description},
		{"Problem Statement", idea.ProblemStatement},
		{"Target Audience", idea.TargetAudience},
		{"Expected Impact", idea.ExpectedImpact},
		{"Required Resources", idea.RequiredResources},
	}

	var sb strings.Builder
	for i, line := range lines {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%s: %s", line.label, orNotSpecified(plainText(line.value)))
	}
	return sb.String()
}

func orNotSpecified(s string) string {
	if s == "" {
		return NotSpecified
	}
	return s
}

// plainText flattens HTML from rich-text editors to plain text. Block elements become
// line breaks and list items are prefixed with "- ". Text without markup is only trimmed.
func plainText(s string) string {
	if !markupPattern.MatchString(s) {
		return strings.TrimSpace(s)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}

	doc.Find("script, style").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("li").PrependHtml("- ")
	doc.Find("p, div, li, h1, h2, h3, h4, h5, h6, blockquote, tr").AppendHtml("\n")

	return cleanWhitespace(doc.Find("body").Text())
}

// cleanWhitespace trims every line, collapses runs of spaces and drops empty lines
func cleanWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
