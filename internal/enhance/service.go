// Package enhance provides the single-shot enhancement service: one completion call
// whose reply is normalized into a rewritten text and an evaluation of it.
package enhance

import (
	"context"
	"log"

	"github.com/jonathan/idea-evaluator/internal/llm"
	"github.com/jonathan/idea-evaluator/internal/normalize"
	"github.com/jonathan/idea-evaluator/internal/prompts"
	"github.com/jonathan/idea-evaluator/internal/types"
)

// DefaultDepartment is interpolated when the request names no department
const DefaultDepartment = "General"

// Service enhances user text with one completion call
type Service struct {
	completer  llm.Completer
	catalog    *prompts.Catalog
	normalizer *normalize.Normalizer
}

// Option configures a Service
type Option func(*Service)

// WithNormalizer replaces the default normalizer
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(s *Service) {
		s.normalizer = n
	}
}

// NewService creates a Service. The catalog must hold the enhancement templates.
func NewService(completer llm.Completer, catalog *prompts.Catalog, opts ...Option) *Service {
	s := &Service{
		completer:  completer,
		catalog:    catalog,
		normalizer: normalize.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enhance rewrites and evaluates req.Message. It fails only when the request is
// invalid, the template for its kind is missing, or the completion call fails;
// whatever the model replies is normalized into a complete record.
func (s *Service) Enhance(ctx context.Context, req types.EnhanceRequest) (*types.EnhancementRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, &Error{Kind: ErrKindInvalidRequest, Message: "message is required and type must be general or idea_enhancement", Cause: err}
	}

	kind := req.Kind()
	tmpl, err := s.catalog.Get(prompts.SetEnhancement, string(kind))
	if err != nil {
		return nil, &Error{Kind: ErrKindConfiguration, Message: "no prompt template for request kind " + string(kind), Cause: err}
	}

	department := req.Department()
	if department == "" {
		department = DefaultDepartment
	}
	systemPrompt := tmpl.Render(map[string]string{"Department": department})

	request, err := llm.NewCompletionRequest([]llm.Message{
		llm.SystemMessage(systemPrompt),
		llm.UserMessage(req.Message),
	})
	if err != nil {
		return nil, &Error{Kind: ErrKindInvalidRequest, Message: "failed to build completion request", Cause: err}
	}

	raw, err := s.completer.Complete(ctx, request)
	if err != nil {
		log.Printf("[enhance] completion failed for kind=%s: %v", kind, err)
		return nil, &Error{Kind: ErrKindTransport, Message: "completion call failed", Cause: err}
	}

	result := s.normalizer.Normalize(raw, normalize.EnhancementFields)
	if result.Tier != normalize.TierDirect {
		log.Printf("[enhance] kind=%s normalized via %s tier", kind, result.Tier)
	}

	return &types.EnhancementRecord{
		Rewritten:  result.Record.Get("rewritten"),
		Evaluation: result.Record.Get("evaluation"),
	}, nil
}
