// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/idea-evaluator/internal/normalize"
	"github.com/jonathan/idea-evaluator/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 64
	// barWidth is the width of a score bar
	barWidth = 20
	// maxExplanationLines bounds each wrapped explanation
	maxExplanationLines = 4
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s │\n", pad(title, boxWidth-4))
	fmt.Fprintf(p.out, "├%s┤\n", border)
	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %s │\n", pad(truncate(line, boxWidth-4), boxWidth-4))
	}
	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// pad right-pads s with spaces to width runes
func pad(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

// truncate shortens s to width runes, ending in "..." when cut
func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	return string(runes[:width-3]) + "..."
}

// wrap breaks text into lines of at most width runes on word boundaries
func wrap(text string, width int) []string {
	var lines []string
	var line strings.Builder
	for _, word := range strings.Fields(text) {
		if line.Len() > 0 && utf8.RuneCountInString(line.String())+1+utf8.RuneCountInString(word) > width {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(word)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return lines
}

// scoreBar renders score (0-100) as a fixed-width bar
func scoreBar(score int) string {
	filled := (score*barWidth + 50) / 100
	filled = max(0, min(barWidth, filled))
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}

// PrintIdea outputs the idea being evaluated
func (p *Printer) PrintIdea(idea *types.Idea) {
	if idea == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Title:      %s\n", idea.Name))
	if idea.Author != "" {
		sb.WriteString(fmt.Sprintf("Author:     %s\n", idea.Author))
	}
	if idea.Department != "" {
		sb.WriteString(fmt.Sprintf("Department: %s\n", idea.Department))
	}
	if len(idea.Tags) > 0 {
		sb.WriteString(fmt.Sprintf("Tags:       %s\n", strings.Join(idea.Tags, ", ")))
	}
	sb.WriteString("\n")
	for _, line := range wrap(idea.Description, boxWidth-4) {
		sb.WriteString(line + "\n")
	}

	p.printBox("IDEA", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintCriterion outputs a single progress line as a criterion resolves
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintCriterion(criterion types.Criterion, result types.CriterionResult) {
	marker := "✓"
	if result.Sentineled {
		marker = "⚠"
	}
	fmt.Fprintf(p.out, "  %s %-12s %3d\n", marker, criterion, result.Score)
}

// PrintEvaluation outputs every criterion with a score bar and the overall score
func (p *Printer) PrintEvaluation(evaluation *types.CompositeEvaluation) {
	if evaluation == nil {
		return
	}

	var sb strings.Builder
	for i, c := range types.Criteria() {
		r := evaluation.Result(c)
		sb.WriteString(fmt.Sprintf("%-12s %s %3d", strings.ToUpper(string(c)), scoreBar(r.Score), r.Score))
		if r.Sentineled {
			sb.WriteString("  (fallback)")
		}
		sb.WriteString("\n")

		lines := wrap(r.Explanation, boxWidth-6)
		if len(lines) > maxExplanationLines {
			lines = append(lines[:maxExplanationLines-1], "...")
		}
		for _, line := range lines {
			sb.WriteString("  " + line + "\n")
		}
		if i < len(types.Criteria())-1 {
			sb.WriteString("\n")
		}
	}

	sb.WriteString(strings.Repeat("─", boxWidth-4) + "\n")
	sb.WriteString(fmt.Sprintf("%-12s %s %3d", "OVERALL", scoreBar(evaluation.OverallScore()), evaluation.OverallScore()))
	if n := len(evaluation.Sentineled()); n > 0 {
		sb.WriteString(fmt.Sprintf("\n\n⚠ %d of %d criteria could not be scored", n, len(types.Criteria())))
	}

	p.printBox("EVALUATION", sb.String())
}

// PrintEnhancement outputs a rewritten message and its critique
func (p *Printer) PrintEnhancement(record *types.EnhancementRecord) {
	if record == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString("Rewritten:\n")
	for _, line := range wrap(record.Rewritten, boxWidth-6) {
		sb.WriteString("  " + line + "\n")
	}
	sb.WriteString("\nEvaluation:\n")
	for _, line := range wrap(record.Evaluation, boxWidth-6) {
		sb.WriteString("  " + line + "\n")
	}

	p.printBox("ENHANCEMENT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintNormalization outputs which recovery tier read a model response
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintNormalization(label string, result normalize.Result) {
	if result.Tier == normalize.TierDirect {
		fmt.Fprintf(p.out, "  %s: parsed as JSON\n", label)
		return
	}
	fmt.Fprintf(p.out, "  %s: recovered via %s tier\n", label, result.Tier)
}
