// Package evaluation scores an idea on four criteria with concurrent completion calls
// and combines the results into a composite evaluation.
package evaluation

import (
	"context"
	"log"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/idea-evaluator/internal/llm"
	"github.com/jonathan/idea-evaluator/internal/normalize"
	"github.com/jonathan/idea-evaluator/internal/prompts"
	"github.com/jonathan/idea-evaluator/internal/types"
)

// DefaultCallTimeout bounds each criterion call
const DefaultCallTimeout = 60 * time.Second

// Observer is told about each criterion as soon as its result is known. It is called
// from the criterion goroutines and must be safe for concurrent use.
type Observer func(criterion types.Criterion, result types.CriterionResult)

// Orchestrator runs the four criterion evaluations for an idea
type Orchestrator struct {
	completer   llm.Completer
	catalog     *prompts.Catalog
	normalizer  *normalize.Normalizer
	callTimeout time.Duration
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithCallTimeout sets the per-criterion timeout. Zero or negative disables it.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.callTimeout = d
	}
}

// WithNormalizer replaces the default normalizer
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(o *Orchestrator) {
		o.normalizer = n
	}
}

// NewOrchestrator creates an Orchestrator
func NewOrchestrator(completer llm.Completer, catalog *prompts.Catalog, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		completer:   completer,
		catalog:     catalog,
		normalizer:  normalize.Default(),
		callTimeout: DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Evaluate scores idea on every criterion. See EvaluateObserved.
func (o *Orchestrator) Evaluate(ctx context.Context, idea types.Idea) (*types.CompositeEvaluation, error) {
	return o.EvaluateObserved(ctx, idea, nil)
}

// EvaluateObserved scores idea on every criterion, calling observer (if non-nil) as
// each criterion resolves. It returns an error only when the calls cannot be
// dispatched; a criterion whose call fails, times out or yields no usable score holds
// the sentinel result instead.
func (o *Orchestrator) EvaluateObserved(ctx context.Context, idea types.Idea, observer Observer) (*types.CompositeEvaluation, error) {
	criteria := types.Criteria()
	requests, err := o.buildRequests(RenderIdea(idea), criteria)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	results := make([]types.CriterionResult, len(criteria))

	// Branches never return an error, so one failure cannot cancel the others.
	var g errgroup.Group
	for i, criterion := range criteria {
		g.Go(func() error {
			results[i] = o.evaluateCriterion(ctx, criterion, requests[i])
			if observer != nil {
				observer(criterion, results[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	byCriterion := make(map[types.Criterion]types.CriterionResult, len(criteria))
	for i, criterion := range criteria {
		byCriterion[criterion] = results[i]
	}
	evaluation, err := types.NewCompositeEvaluation(byCriterion)
	if err != nil {
		return nil, err
	}

	if sentineled := evaluation.Sentineled(); len(sentineled) > 0 {
		log.Printf("[evaluate] %q finished in %s with sentinel results for %v", idea.Name, time.Since(start).Round(time.Millisecond), sentineled)
	} else {
		log.Printf("[evaluate] %q finished in %s, overall score %d", idea.Name, time.Since(start).Round(time.Millisecond), evaluation.OverallScore())
	}
	return evaluation, nil
}

// buildRequests resolves every template and builds every request up front, so a
// configuration problem is reported before any call is made.
func (o *Orchestrator) buildRequests(description string, criteria []types.Criterion) ([]*llm.CompletionRequest, error) {
	system, err := o.catalog.Get(prompts.SetEvaluation, prompts.KeySystem)
	if err != nil {
		return nil, &ConfigurationError{Message: "system prompt template missing", Cause: err}
	}

	requests := make([]*llm.CompletionRequest, len(criteria))
	for i, criterion := range criteria {
		tmpl, err := o.catalog.Get(prompts.SetEvaluation, string(criterion))
		if err != nil {
			return nil, &ConfigurationError{Criterion: criterion, Message: "prompt template missing", Cause: err}
		}

		req, err := llm.NewCompletionRequest([]llm.Message{
			llm.SystemMessage(system.Text),
			llm.UserMessage(tmpl.Render(map[string]string{"Idea": description})),
		})
		if err != nil {
			return nil, &ConfigurationError{Criterion: criterion, Message: "failed to build completion request", Cause: err}
		}
		requests[i] = req
	}
	return requests, nil
}

// evaluateCriterion makes one call and always returns a result
func (o *Orchestrator) evaluateCriterion(ctx context.Context, criterion types.Criterion, req *llm.CompletionRequest) types.CriterionResult {
	raw, err := o.complete(ctx, req)
	if err != nil {
		log.Printf("[evaluate] %s: completion failed, using sentinel: %v", criterion, err)
		return types.SentinelResult()
	}

	result := o.normalizer.Normalize(raw, normalize.CriterionFields)
	score, ok := result.Record.Int("score")
	if !ok {
		log.Printf("[evaluate] %s: no usable score (%s tier), using sentinel", criterion, result.Tier)
		return types.SentinelResult()
	}

	return types.CriterionResult{
		Score:       score,
		Explanation: result.Record.Get("explanation"),
	}
}

type completion struct {
	text string
	err  error
}

// complete calls the completer under the per-call timeout. The deadline is enforced
// here as well as through ctx, so a completer that ignores cancellation still cannot
// hold up the join.
func (o *Orchestrator) complete(ctx context.Context, req *llm.CompletionRequest) (string, error) {
	if o.callTimeout <= 0 {
		return o.completer.Complete(ctx, req)
	}

	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	done := make(chan completion, 1)
	go func() {
		text, err := o.completer.Complete(callCtx, req)
		done <- completion{text: text, err: err}
	}()

	select {
	case c := <-done:
		return c.text, c.err
	case <-callCtx.Done():
		return "", &llm.TransportError{StatusCode: http.StatusGatewayTimeout, Message: "completion timed out", Cause: callCtx.Err()}
	}
}
