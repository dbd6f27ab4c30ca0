package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -destination=mocks/mock_completer.go -package=mocks . Completer

// Completer issues a single completion call and returns the raw response text.
// Implementations perform exactly one attempt; retry policy belongs to the caller.
type Completer interface {
	Complete(ctx context.Context, req *CompletionRequest) (string, error)
}

// Client is a Completer that holds provider resources
type Client interface {
	Completer
	// Close releases any resources held by the client
	Close() error
}

// NewClient creates a new completion client based on configuration
func NewClient(ctx context.Context, config *Config, apiKey string) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid LLM config: %w", err)
	}

	switch config.Provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, config, apiKey)
	default:
		return NewChatClient(config, apiKey)
	}
}

// withCallTimeout derives the per-call context
func withCallTimeout(ctx context.Context, config *Config) (context.Context, context.CancelFunc) {
	if config.Timeout > 0 {
		return context.WithTimeout(ctx, config.Timeout)
	}
	return context.WithCancel(ctx)
}

// GeminiClient implements Client for Google Gemini
type GeminiClient struct {
	client *genai.Client
	config *Config
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		config: config,
	}, nil
}

// Complete sends the conversation to Gemini. System messages become the system
// instruction; earlier turns become chat history and the last turn is sent.
func (c *GeminiClient) Complete(ctx context.Context, req *CompletionRequest) (string, error) {
	ctx, cancel := withCallTimeout(ctx, c.config)
	defer cancel()

	model := c.client.GenerativeModel(req.Model(c.config.Model))
	model.SetTemperature(float32(req.Temperature(c.config.Temperature)))
	model.SetMaxOutputTokens(int32(req.MaxTokens(c.config.MaxTokens)))

	system, history, last, err := geminiContents(req.Messages())
	if err != nil {
		return "", err
	}
	model.SystemInstruction = system

	session := model.StartChat()
	session.History = history

	resp, err := session.SendMessage(ctx, last.Parts...)
	if err != nil {
		return "", geminiTransportError(ctx, err)
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return "", &TransportError{Message: "unusable response envelope", Cause: err}
	}
	return text, nil
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// geminiContents maps messages onto Gemini's shape. System messages are joined into
// one system instruction; the last remaining turn is the one sent, earlier turns are
// history.
func geminiContents(messages []Message) (system *genai.Content, history []*genai.Content, last *genai.Content, err error) {
	var instructions []string
	var turns []*genai.Content
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			instructions = append(instructions, msg.Content)
		case RoleAssistant:
			turns = append(turns, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(msg.Content)}})
		default:
			turns = append(turns, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(msg.Content)}})
		}
	}
	if len(instructions) > 0 {
		system = &genai.Content{Parts: []genai.Part{genai.Text(strings.Join(instructions, "\n\n"))}}
	}
	if len(turns) == 0 {
		return nil, nil, nil, &TransportError{Message: "request has no user turn to send"}
	}
	return system, turns[:len(turns)-1], turns[len(turns)-1], nil
}

func geminiTransportError(ctx context.Context, err error) *TransportError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TransportError{StatusCode: http.StatusGatewayTimeout, Message: "request timed out", Cause: err}
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return &TransportError{StatusCode: apiErr.Code, Message: "failed to generate content", Body: apiErr.Message, Cause: err}
	}
	return &TransportError{Message: "failed to generate content", Cause: err}
}

// extractTextFromResponse extracts text from Gemini API response
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}

	return strings.Join(parts, ""), nil
}
