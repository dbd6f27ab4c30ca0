package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jonathan/idea-evaluator/internal/config"
	"github.com/jonathan/idea-evaluator/internal/llm"
	"github.com/jonathan/idea-evaluator/internal/prompts"
)

// Flags shared by every subcommand
var (
	configFile   string
	flagProvider string
	flagModel    string
	flagBaseURL  string
	flagAPIKey   string
	flagPrompts  string
	flagTimeout  int
	verbose      bool
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "Path to JSON config file")
	pf.StringVar(&flagProvider, "provider", "", "Completion provider: openai or gemini (overrides LLM_PROVIDER)")
	pf.StringVar(&flagModel, "model", "", "Model identifier (overrides LLM_MODEL)")
	pf.StringVar(&flagBaseURL, "base-url", "", "OpenAI-compatible endpoint root (overrides LLM_BASE_URL)")
	pf.StringVar(&flagAPIKey, "api-key", "", "API key (overrides LLM_API_KEY)")
	pf.StringVar(&flagPrompts, "prompts", "", "JSON or YAML prompt template overrides (overrides PROMPTS_FILE)")
	pf.IntVar(&flagTimeout, "timeout", 0, "Per-call timeout in seconds (overrides LLM_TIMEOUT_SECONDS)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Print detailed progress")
}

// loadSettings layers flags over the config file over the environment
func loadSettings() (config.Config, error) {
	flags := config.Config{
		Provider:       flagProvider,
		Model:          flagModel,
		BaseURL:        flagBaseURL,
		APIKey:         flagAPIKey,
		PromptsFile:    flagPrompts,
		TimeoutSeconds: flagTimeout,
		Verbose:        verbose,
	}

	defaults := config.FromEnv()
	if configFile != "" {
		fileCfg, err := config.LoadConfig(configFile)
		if err != nil {
			return config.Config{}, err
		}
		defaults = fileCfg.MergeWithDefaults(defaults)
	}

	cfg := flags.MergeWithDefaults(defaults)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// newCompleter builds the completion client. Tests replace it.
var newCompleter = func(ctx context.Context, cfg config.Config) (llm.Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required (set LLM_API_KEY, OPENAI_API_KEY or GEMINI_API_KEY, or use --api-key)")
	}
	return llm.NewClient(ctx, cfg.LLMConfig(), cfg.APIKey)
}

// loadCatalog loads the built-in templates merged with any override file
func loadCatalog(cfg config.Config) (*prompts.Catalog, error) {
	if cfg.PromptsFile != "" {
		return prompts.LoadWithOverrides(cfg.PromptsFile)
	}
	return prompts.Load()
}

// setup resolves settings, the catalog and a completer for a command
func setup(cmd *cobra.Command) (config.Config, *prompts.Catalog, llm.Client, error) {
	cfg, err := loadSettings()
	if err != nil {
		return cfg, nil, nil, err
	}
	catalog, err := loadCatalog(cfg)
	if err != nil {
		return cfg, nil, nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}
	client, err := newCompleter(cmd.Context(), cfg)
	if err != nil {
		return cfg, nil, nil, fmt.Errorf("failed to create completion client: %w", err)
	}
	return cfg, catalog, client, nil
}

func readAll(cmd *cobra.Command) ([]byte, error) {
	return io.ReadAll(cmd.InOrStdin())
}
