package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/idea-evaluator/internal/normalize"
	"github.com/jonathan/idea-evaluator/internal/observability"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Run saved model output through the response normalizer",
	Long: `Read a raw model response and print the record the normalizer recovers from it.
Useful for reproducing how a logged response was interpreted.

Field sets: criterion (score, explanation), enhancement (rewritten, evaluation),
or a comma-separated list of field names.`,
	Args: cobra.NoArgs,
	RunE: runNormalize,
}

var (
	normalizeInputFile string
	normalizeFields    string
)

func init() {
	normalizeCmd.Flags().StringVarP(&normalizeInputFile, "in", "i", "-", "Path to raw response (- for stdin)")
	normalizeCmd.Flags().StringVarP(&normalizeFields, "fields", "f", "criterion", "Field set or comma-separated field names")
	rootCmd.AddCommand(normalizeCmd)
}

func runNormalize(cmd *cobra.Command, _ []string) error {
	fields, err := parseFields(normalizeFields)
	if err != nil {
		return err
	}

	var raw []byte
	if normalizeInputFile == "-" {
		raw, err = readAll(cmd)
	} else {
		raw, err = os.ReadFile(normalizeInputFile)
	}
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	result := normalize.Normalize(string(raw), fields)

	out := cmd.OutOrStdout()
	if verbose {
		observability.NewPrinter(out).PrintNormalization("response", result)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(result.Record)
}

// parseFields resolves a named field set or a list of field names
func parseFields(list string) ([]normalize.Field, error) {
	switch strings.TrimSpace(list) {
	case "criterion":
		return normalize.CriterionFields, nil
	case "enhancement":
		return normalize.EnhancementFields, nil
	}

	var fields []normalize.Field
	seen := make(map[string]bool)
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		fields = append(fields, normalize.Field{Name: name})
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("no fields given")
	}
	return fields, nil
}
