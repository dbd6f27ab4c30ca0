// Package config provides configuration loading and validation for the CLI and server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jonathan/idea-evaluator/internal/llm"
)

// Config represents the configuration that can be loaded from a JSON file or the
// environment. All fields are optional; missing values use defaults or CLI flags.
type Config struct {
	// Completion service
	Provider       string  `json:"provider,omitempty"`        // openai or gemini
	Model          string  `json:"model,omitempty"`           // Model identifier
	BaseURL        string  `json:"base_url,omitempty"`        // OpenAI-compatible endpoint root
	APIKey         string  `json:"api_key,omitempty"`         // Bearer token or Gemini API key
	Temperature    float64 `json:"temperature,omitempty"`     // Default sampling temperature (0-2)
	MaxTokens      int     `json:"max_tokens,omitempty"`      // Default max_tokens
	TimeoutSeconds int     `json:"timeout_seconds,omitempty"` // Per-call timeout

	// Prompts
	PromptsFile string `json:"prompts_file,omitempty"` // JSON or YAML template overrides

	// Server
	Port int `json:"port,omitempty"`

	// Storage
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL for the audit log

	Verbose bool `json:"verbose,omitempty"` // Print detailed debug information
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// FromEnv reads configuration from environment variables. The API key is taken from
// LLM_API_KEY, then the provider-specific OPENAI_API_KEY or GEMINI_API_KEY.
func FromEnv() Config {
	cfg := Config{
		Provider:    os.Getenv("LLM_PROVIDER"),
		Model:       os.Getenv("LLM_MODEL"),
		BaseURL:     os.Getenv("LLM_BASE_URL"),
		APIKey:      os.Getenv("LLM_API_KEY"),
		PromptsFile: os.Getenv("PROMPTS_FILE"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
	}

	if cfg.APIKey == "" {
		if cfg.Provider == string(llm.ProviderGemini) {
			cfg.APIKey = os.Getenv("GEMINI_API_KEY")
		} else {
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if v, err := strconv.Atoi(os.Getenv("LLM_TIMEOUT_SECONDS")); err == nil {
		cfg.TimeoutSeconds = v
	}
	if v, err := strconv.Atoi(os.Getenv("PORT")); err == nil {
		cfg.Port = v
	}
	return cfg
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by CLI flag validation after merging.
func (c *Config) Validate() error {
	switch llm.Provider(c.Provider) {
	case "", llm.ProviderOpenAI, llm.ProviderGemini:
	default:
		return fmt.Errorf("config error: unsupported provider %q", c.Provider)
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("config error: 'temperature' must be between 0 and 2")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("config error: 'max_tokens' must be non-negative")
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("config error: 'timeout_seconds' must be non-negative")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}

	if c.PromptsFile != "" {
		if _, err := os.Stat(c.PromptsFile); os.IsNotExist(err) {
			return fmt.Errorf("config error: prompts file not found: %s", c.PromptsFile)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to layer flags over the config file over the environment.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.Provider == "" {
		result.Provider = defaults.Provider
	}
	if result.Model == "" {
		result.Model = defaults.Model
	}
	if result.BaseURL == "" {
		result.BaseURL = defaults.BaseURL
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.PromptsFile == "" {
		result.PromptsFile = defaults.PromptsFile
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}

	// Numeric fields: use default if zero
	if result.Temperature == 0 {
		result.Temperature = defaults.Temperature
	}
	if result.MaxTokens == 0 {
		result.MaxTokens = defaults.MaxTokens
	}
	if result.TimeoutSeconds == 0 {
		result.TimeoutSeconds = defaults.TimeoutSeconds
	}
	if result.Port == 0 {
		result.Port = defaults.Port
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// LLMConfig builds the completion client configuration, starting from the
// provider's defaults and applying every field that is set.
func (c *Config) LLMConfig() *llm.Config {
	cfg := llm.ConfigFor(llm.Provider(c.Provider))
	if c.Model != "" {
		cfg.Model = c.Model
	}
	if c.BaseURL != "" {
		cfg.BaseURL = c.BaseURL
	}
	if c.Temperature != 0 {
		cfg.Temperature = c.Temperature
	}
	if c.MaxTokens != 0 {
		cfg.MaxTokens = c.MaxTokens
	}
	if c.TimeoutSeconds != 0 {
		cfg.Timeout = time.Duration(c.TimeoutSeconds) * time.Second
	}
	return cfg
}

// CallTimeout is the per-call timeout, defaulting to llm.DefaultTimeout
func (c *Config) CallTimeout() time.Duration {
	if c.TimeoutSeconds > 0 {
		return time.Duration(c.TimeoutSeconds) * time.Second
	}
	return llm.DefaultTimeout
}
