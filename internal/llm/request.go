package llm

import "fmt"

// Role tags a message in a completion request
type Role string

// Message roles understood by chat-completion services
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single role-tagged message
type Message struct {
	Role    Role
	Content string
}

// SystemMessage returns a system-role message
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage returns a user-role message
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// CompletionRequest is an ordered list of messages plus generation parameters.
// It cannot be modified after NewCompletionRequest returns; accessors hand out copies.
type CompletionRequest struct {
	messages    []Message
	model       string
	temperature *float64
	maxTokens   int
}

// RequestOption configures a CompletionRequest during construction
type RequestOption func(*CompletionRequest)

// WithModel overrides the client's configured model for this request
func WithModel(model string) RequestOption {
	return func(r *CompletionRequest) {
		r.model = model
	}
}

// WithTemperature sets the sampling temperature (0-2)
func WithTemperature(temperature float64) RequestOption {
	return func(r *CompletionRequest) {
		r.temperature = &temperature
	}
}

// WithMaxTokens sets the maximum number of generated tokens
func WithMaxTokens(maxTokens int) RequestOption {
	return func(r *CompletionRequest) {
		r.maxTokens = maxTokens
	}
}

// NewCompletionRequest validates and builds a request.
func NewCompletionRequest(messages []Message, opts ...RequestOption) (*CompletionRequest, error) {
	if len(messages) == 0 {
		return nil, &InvalidRequestError{Field: "messages", Message: "at least one message is required"}
	}

	req := &CompletionRequest{
		messages: append([]Message(nil), messages...),
	}
	for _, opt := range opts {
		opt(req)
	}

	for i, msg := range req.messages {
		switch msg.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return nil, &InvalidRequestError{Field: "messages", Message: fmt.Sprintf("unknown role %q at index %d", msg.Role, i)}
		}
	}
	if req.temperature != nil && (*req.temperature < 0 || *req.temperature > 2) {
		return nil, &InvalidRequestError{Field: "temperature", Message: "must be between 0 and 2"}
	}
	if req.maxTokens < 0 {
		return nil, &InvalidRequestError{Field: "max_tokens", Message: "must be positive"}
	}

	return req, nil
}

// Messages returns a copy of the request messages
func (r *CompletionRequest) Messages() []Message {
	return append([]Message(nil), r.messages...)
}

// Model returns the request model, or fallback when none was set
func (r *CompletionRequest) Model(fallback string) string {
	if r.model == "" {
		return fallback
	}
	return r.model
}

// Temperature returns the request temperature, or fallback when none was set
func (r *CompletionRequest) Temperature(fallback float64) float64 {
	if r.temperature == nil {
		return fallback
	}
	return *r.temperature
}

// MaxTokens returns the request token limit, or fallback when none was set
func (r *CompletionRequest) MaxTokens(fallback int) int {
	if r.maxTokens == 0 {
		return fallback
	}
	return r.maxTokens
}
