// Package llm provides the completion client used to talk to external chat-completion
// services, plus the request types and errors shared by its callers.
package llm

import (
	"fmt"
	"time"
)

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderOpenAI is any OpenAI-compatible chat-completions endpoint
	ProviderOpenAI Provider = "openai"
	// ProviderGemini is the Google Gemini provider
	ProviderGemini Provider = "gemini"
)

// System-wide generation defaults applied when a request leaves them unset.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000
	DefaultTimeout     = 60 * time.Second
)

// Config holds the completion client configuration
type Config struct {
	Provider    Provider
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	// Timeout bounds a single outbound call. Zero disables the per-call deadline.
	Timeout time.Duration
}

// DefaultConfig returns the default configuration (OpenAI-compatible endpoint)
func DefaultConfig() *Config {
	return &Config{
		Provider:    ProviderOpenAI,
		Model:       "gpt-4o-mini",
		BaseURL:     "https://api.openai.com",
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		Timeout:     DefaultTimeout,
	}
}

// DefaultGeminiConfig returns the default Gemini configuration
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider:    ProviderGemini,
		Model:       "gemini-2.5-flash",
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		Timeout:     DefaultTimeout,
	}
}

// ConfigFor returns the default configuration for a provider.
// Unknown providers fall back to the OpenAI-compatible defaults.
func ConfigFor(provider Provider) *Config {
	if provider == ProviderGemini {
		return DefaultGeminiConfig()
	}
	return DefaultConfig()
}

// WithModel returns a new Config with a different model
func (c *Config) WithModel(model string) *Config {
	newConfig := *c
	newConfig.Model = model
	return &newConfig
}

// WithTimeout returns a new Config with a different per-call timeout
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	newConfig := *c
	newConfig.Timeout = timeout
	return &newConfig
}

// Validate checks that the configuration can be used to issue requests.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("unsupported provider %q", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.Provider == ProviderOpenAI && c.BaseURL == "" {
		return fmt.Errorf("base URL is required for provider %s", c.Provider)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %v", c.Temperature)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", c.MaxTokens)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}
