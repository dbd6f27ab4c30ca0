package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody caps how much of a failed response body is kept on a TransportError
const maxErrorBody = 8 * 1024

// ChatClient implements Client for OpenAI-compatible chat-completions endpoints
type ChatClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	config     *Config
}

// ChatClientOption configures a ChatClient
type ChatClientOption func(*ChatClient)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) ChatClientOption {
	return func(c *ChatClient) {
		c.httpClient = hc
	}
}

// NewChatClient creates a new chat-completions client
func NewChatClient(config *Config, apiKey string, opts ...ChatClientOption) (*ChatClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config == nil {
		config = DefaultConfig()
	}

	c := &ChatClient{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
		config:     config,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *ChatClient) chatCompletionsURL() string {
	if strings.HasSuffix(c.baseURL, "/v1") {
		return c.baseURL + "/chat/completions"
	}
	return c.baseURL + "/v1/chat/completions"
}

// Complete issues one POST to the chat-completions endpoint and returns the content
// of the first choice.
func (c *ChatClient) Complete(ctx context.Context, req *CompletionRequest) (string, error) {
	ctx, cancel := withCallTimeout(ctx, c.config)
	defer cancel()

	body := chatRequest{
		Model:       req.Model(c.config.Model),
		Temperature: req.Temperature(c.config.Temperature),
		MaxTokens:   req.MaxTokens(c.config.MaxTokens),
	}
	for _, msg := range req.Messages() {
		body.Messages = append(body.Messages, chatMessage{Role: string(msg.Role), Content: msg.Content})
	}

	buf, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chatCompletionsURL(), bytes.NewReader(buf))
	if err != nil {
		return "", fmt.Errorf("failed to build chat request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &TransportError{StatusCode: http.StatusGatewayTimeout, Message: "request timed out", Cause: err}
		}
		return "", &TransportError{Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &TransportError{
			StatusCode: resp.StatusCode,
			Message:    "completion service returned an error",
			Body:       strings.TrimSpace(string(b)),
		}
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &TransportError{StatusCode: http.StatusGatewayTimeout, Message: "request timed out", Cause: err}
		}
		return "", &TransportError{StatusCode: resp.StatusCode, Message: "failed to decode response envelope", Cause: err}
	}
	if len(out.Choices) == 0 {
		return "", &TransportError{StatusCode: resp.StatusCode, Message: "no choices in response"}
	}

	return out.Choices[0].Message.Content, nil
}

// Close is a no-op; the HTTP client is shared
func (c *ChatClient) Close() error {
	return nil
}
