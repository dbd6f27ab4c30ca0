package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jonathan/idea-evaluator/internal/db"
	"github.com/jonathan/idea-evaluator/internal/evaluation"
	"github.com/jonathan/idea-evaluator/internal/observability"
	"github.com/jonathan/idea-evaluator/internal/schemas"
	"github.com/jonathan/idea-evaluator/internal/types"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score an idea on innovation, impact, alignment and feasibility",
	Long: "Evaluate an idea read from a JSON or YAML file (--in) or given with --name and " +
		"--description. The four criteria are scored in parallel; a criterion that cannot be " +
		"scored falls back to a neutral 50.",
	RunE: runEvaluate,
}

var (
	evalInputFile   string
	evalOutputFile  string
	evalName        string
	evalDescription string
	evalDepartment  string
	evalJSON        bool
	evalSave        bool
	evalDatabaseURL string
)

func init() {
	evaluateCmd.Flags().StringVarP(&evalInputFile, "in", "i", "", "Path to idea JSON or YAML file (- for stdin)")
	evaluateCmd.Flags().StringVarP(&evalOutputFile, "out", "o", "", "Write the evaluation JSON to this file")
	evaluateCmd.Flags().StringVar(&evalName, "name", "", "Idea title")
	evaluateCmd.Flags().StringVar(&evalDescription, "description", "", "Idea description")
	evaluateCmd.Flags().StringVar(&evalDepartment, "department", "", "Idea department")
	evaluateCmd.Flags().BoolVar(&evalJSON, "json", false, "Print the evaluation as JSON")
	evaluateCmd.Flags().BoolVar(&evalSave, "save", false, "Record the evaluation in the database audit log")
	evaluateCmd.Flags().StringVar(&evalDatabaseURL, "db-url", "", "Database URL (overrides DATABASE_URL)")
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	idea, err := loadIdea(cmd)
	if err != nil {
		return err
	}
	if err := idea.Validate(); err != nil {
		return fmt.Errorf("invalid idea: %w", err)
	}

	cfg, catalog, client, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	out := cmd.OutOrStdout()
	printer := observability.NewPrinter(out)
	var observer evaluation.Observer
	if cfg.Verbose {
		printer.PrintIdea(&idea)
		_, _ = fmt.Fprintln(out, "Scoring criteria...")
		var mu sync.Mutex
		observer = func(c types.Criterion, r types.CriterionResult) {
			mu.Lock()
			defer mu.Unlock()
			printer.PrintCriterion(c, r)
		}
	}

	orchestrator := evaluation.NewOrchestrator(client, catalog, evaluation.WithCallTimeout(cfg.CallTimeout()))
	start := time.Now()
	result, err := orchestrator.EvaluateObserved(cmd.Context(), idea, observer)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	if evalSave {
		if err := saveEvaluation(cmd, cfg.DatabaseURL, cfg.Model, idea, result, elapsed); err != nil {
			return err
		}
	}

	if evalOutputFile != "" {
		if err := writeEvaluation(evalOutputFile, result); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "Output: %s\n", evalOutputFile)
	}

	switch {
	case evalJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case evalOutputFile == "" || cfg.Verbose:
		printer.PrintEvaluation(result)
	}
	return nil
}

// loadIdea reads --in, or builds the idea from flags
func loadIdea(cmd *cobra.Command) (types.Idea, error) {
	if evalInputFile == "" {
		if evalName == "" && evalDescription == "" {
			return types.Idea{}, fmt.Errorf("must provide either --in or --name and --description")
		}
		return types.Idea{Name: evalName, Description: evalDescription, Department: evalDepartment}, nil
	}

	var data []byte
	var err error
	if evalInputFile == "-" {
		data, err = readAll(cmd)
	} else {
		data, err = os.ReadFile(evalInputFile)
	}
	if err != nil {
		return types.Idea{}, fmt.Errorf("failed to read idea: %w", err)
	}

	idea, err := parseIdea(evalInputFile, data)
	if err != nil {
		return types.Idea{}, err
	}
	if evalDepartment != "" {
		idea.Department = evalDepartment
	}
	return idea, nil
}

// parseIdea decodes JSON, or YAML for .yaml/.yml files and input that is not JSON.
// YAML is converted through JSON so both formats share the same field names.
func parseIdea(name string, data []byte) (types.Idea, error) {
	var idea types.Idea
	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".yaml" && ext != ".yml" {
		err := json.Unmarshal(data, &idea)
		if err == nil {
			return idea, nil
		}
		if ext == ".json" {
			return idea, fmt.Errorf("failed to parse idea JSON: %w", err)
		}
		idea = types.Idea{}
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return idea, fmt.Errorf("failed to parse idea YAML: %w", err)
	}
	if doc == nil {
		return idea, fmt.Errorf("idea file is empty")
	}
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return idea, fmt.Errorf("failed to convert idea YAML: %w", err)
	}
	if err := json.Unmarshal(asJSON, &idea); err != nil {
		return idea, fmt.Errorf("failed to parse idea YAML: %w", err)
	}
	return idea, nil
}

// writeEvaluation checks the evaluation against its schema, then writes it
func writeEvaluation(path string, result *types.CompositeEvaluation) error {
	jsonBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := schemas.ValidateEvaluation(jsonBytes); err != nil {
		var validationErr *schemas.ValidationError
		if errors.As(err, &validationErr) {
			return fmt.Errorf("generated JSON does not validate against schema: %w", err)
		}
		_, _ = fmt.Fprintf(os.Stderr, "Warning: Could not validate output against schema: %v\n", err)
	}

	if err := os.WriteFile(path, jsonBytes, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// saveEvaluation records the result in the audit log
func saveEvaluation(cmd *cobra.Command, databaseURL, model string, idea types.Idea, result *types.CompositeEvaluation, elapsed time.Duration) error {
	if evalDatabaseURL != "" {
		databaseURL = evalDatabaseURL
	}
	if databaseURL == "" {
		return fmt.Errorf("--save requires DATABASE_URL or --db-url")
	}

	ctx := cmd.Context()
	database, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	if err := database.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to prepare database schema: %w", err)
	}
	rec, err := database.SaveEvaluation(ctx, &db.EvaluationInput{
		Idea:       idea,
		Evaluation: result,
		Model:      model,
		Duration:   elapsed,
	})
	if err != nil {
		return fmt.Errorf("failed to save evaluation: %w", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved evaluation %s\n", rec.ID)
	return nil
}
