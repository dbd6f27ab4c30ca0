package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/idea-evaluator/internal/db"
	"github.com/jonathan/idea-evaluator/internal/types"
)

// PromptResponse is one prompt template as served by /api/prompts/{set}/{key}
type PromptResponse struct {
	Set     string `json:"set"`
	Key     string `json:"key"`
	Text    string `json:"text"`
	Default bool   `json:"default"`
}

// EvaluationListResponse is the response for GET /api/evaluations
type EvaluationListResponse struct {
	Evaluations []db.EvaluationRecord `json:"evaluations"`
	Limit       int                   `json:"limit"`
	Offset      int                   `json:"offset"`
}

// parseQueryInt parses an integer query parameter with default and max values
func parseQueryInt(r *http.Request, key string, defaultValue, maxValue int) int {
	valStr := r.URL.Query().Get(key)
	if valStr == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val < 0 {
		return defaultValue
	}
	if maxValue > 0 && val > maxValue {
		return maxValue
	}
	return val
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"storage": s.store != nil,
	})
}

// handleEnhance rewrites and critiques a message
func (s *Server) handleEnhance(w http.ResponseWriter, r *http.Request) {
	var req types.EnhanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	record, err := s.enhancer.Enhance(r.Context(), req)
	if err != nil {
		s.failResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, record)
}

// decodeIdea reads and validates an idea from the request body
func (s *Server) decodeIdea(w http.ResponseWriter, r *http.Request) (types.Idea, bool) {
	var idea types.Idea
	if err := json.NewDecoder(r.Body).Decode(&idea); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return idea, false
	}
	if err := idea.Validate(); err != nil {
		s.failResponse(w, validationError(err))
		return idea, false
	}
	return idea, true
}

// handleEvaluate scores an idea on every criterion. A criterion that could not be
// scored carries the sentinel result; the response is still 200.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	idea, ok := s.decodeIdea(w, r)
	if !ok {
		return
	}

	start := time.Now()
	result, err := s.evaluator.EvaluateObserved(r.Context(), idea, nil)
	if err != nil {
		s.failResponse(w, err)
		return
	}

	if id := s.recordEvaluation(r.Context(), idea, result, time.Since(start)); id != "" {
		w.Header().Set("Location", "/api/evaluations/"+id)
		w.Header().Set("X-Evaluation-ID", id)
	}
	s.jsonResponse(w, http.StatusOK, result)
}

// handleEvaluateStream scores an idea and streams each criterion as it resolves
func (s *Server) handleEvaluateStream(w http.ResponseWriter, r *http.Request) {
	idea, ok := s.decodeIdea(w, r)
	if !ok {
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	start := time.Now()
	result, err := s.evaluator.EvaluateObserved(r.Context(), idea, func(c types.Criterion, res types.CriterionResult) {
		if err := sse.WriteCriterion(c, res); err != nil {
			log.Printf("Error writing SSE event: %v", err)
		}
	})
	if err != nil {
		log.Printf("[evaluate] streaming evaluation failed: %v", err)
		sse.WriteError(UserMessage(err))
		return
	}

	id := s.recordEvaluation(r.Context(), idea, result, time.Since(start))
	sse.WriteComplete(id, result)
}

// recordEvaluation appends to the audit log when storage is enabled. A storage failure
// is logged and does not fail the request.
func (s *Server) recordEvaluation(ctx context.Context, idea types.Idea, result *types.CompositeEvaluation, elapsed time.Duration) string {
	if s.store == nil {
		return ""
	}
	rec, err := s.store.SaveEvaluation(ctx, &db.EvaluationInput{
		Idea:       idea,
		Evaluation: result,
		Model:      s.model,
		Duration:   elapsed,
	})
	if err != nil {
		log.Printf("[server] failed to store evaluation for %q: %v", idea.Name, err)
		return ""
	}
	return rec.ID.String()
}

// handleGetEvaluation returns one stored evaluation
func (s *Server) handleGetEvaluation(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.failResponse(w, errStorageDisabled)
		return
	}

	idStr := r.PathValue("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		s.failResponse(w, &ErrValidation{Field: "id", Message: "must be a UUID"})
		return
	}

	rec, err := s.store.GetEvaluation(r.Context(), id)
	if err != nil {
		s.failResponse(w, err)
		return
	}
	if rec == nil {
		s.failResponse(w, &ErrNotFound{Resource: "evaluation", ID: idStr})
		return
	}
	s.jsonResponse(w, http.StatusOK, rec)
}

// handleListEvaluations lists stored evaluations, newest first
func (s *Server) handleListEvaluations(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.failResponse(w, errStorageDisabled)
		return
	}

	limit := parseQueryInt(r, "limit", db.DefaultListLimit, db.MaxListLimit)
	offset := parseQueryInt(r, "offset", 0, 0)

	records, err := s.store.ListEvaluations(r.Context(), limit, offset)
	if err != nil {
		s.failResponse(w, err)
		return
	}
	if records == nil {
		records = []db.EvaluationRecord{}
	}
	s.jsonResponse(w, http.StatusOK, EvaluationListResponse{Evaluations: records, Limit: limit, Offset: offset})
}

// handleListPrompts lists template keys by set
func (s *Server) handleListPrompts(w http.ResponseWriter, _ *http.Request) {
	sets := make(map[string][]string)
	for _, set := range s.catalog.Sets() {
		sets[set] = s.catalog.List(set)
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"sets": sets})
}

// handleGetPrompt returns one template's text
func (s *Server) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	tmpl, err := s.catalog.Get(r.PathValue("set"), r.PathValue("key"))
	if err != nil {
		s.failResponse(w, &ErrNotFound{Resource: "prompt", ID: r.PathValue("set") + "/" + r.PathValue("key")})
		return
	}
	s.jsonResponse(w, http.StatusOK, PromptResponse{
		Set:     tmpl.Set,
		Key:     tmpl.Key,
		Text:    tmpl.Text,
		Default: tmpl.Default,
	})
}
