package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/jonathan/idea-evaluator/internal/types"
)

// SSEWriter helps write Server-Sent Events. It is safe for concurrent use, since
// criterion results arrive from parallel calls.
type SSEWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter creates a new SSE writer
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent sends an SSE event
func (s *SSEWriter) WriteEvent(event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// CriterionEvent is the payload of a "criterion" event
type CriterionEvent struct {
	Criterion   types.Criterion `json:"criterion"`
	Score       int             `json:"score"`
	Explanation string          `json:"explanation"`
	Sentineled  bool            `json:"sentineled"`
}

// CompleteEvent is the payload of the final "complete" event
type CompleteEvent struct {
	ID         string                     `json:"id,omitempty"`
	Evaluation *types.CompositeEvaluation `json:"evaluation"`
}

// WriteCriterion sends one resolved criterion
func (s *SSEWriter) WriteCriterion(criterion types.Criterion, result types.CriterionResult) error {
	return s.WriteEvent("criterion", CriterionEvent{
		Criterion:   criterion,
		Score:       result.Score,
		Explanation: result.Explanation,
		Sentineled:  result.Sentineled,
	})
}

// WriteError sends an error event
func (s *SSEWriter) WriteError(message string) {
	s.WriteEvent("error", map[string]string{"error": message}) //nolint:errcheck
}

// WriteComplete sends the composite evaluation. id is empty when it was not stored.
func (s *SSEWriter) WriteComplete(id string, evaluation *types.CompositeEvaluation) {
	s.WriteEvent("complete", CompleteEvent{ID: id, Evaluation: evaluation}) //nolint:errcheck
}
