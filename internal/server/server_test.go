package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/idea-evaluator/internal/db"
	"github.com/jonathan/idea-evaluator/internal/enhance"
	"github.com/jonathan/idea-evaluator/internal/evaluation"
	"github.com/jonathan/idea-evaluator/internal/llm"
	"github.com/jonathan/idea-evaluator/internal/prompts"
	"github.com/jonathan/idea-evaluator/internal/server/ratelimit"
	"github.com/jonathan/idea-evaluator/internal/types"
)

type completerFunc func(ctx context.Context, req *llm.CompletionRequest) (string, error)

func (f completerFunc) Complete(ctx context.Context, req *llm.CompletionRequest) (string, error) {
	return f(ctx, req)
}

func reply(text string) llm.Completer {
	return completerFunc(func(context.Context, *llm.CompletionRequest) (string, error) {
		return text, nil
	})
}

func failing() llm.Completer {
	return completerFunc(func(context.Context, *llm.CompletionRequest) (string, error) {
		return "", &llm.TransportError{StatusCode: http.StatusServiceUnavailable, Message: "upstream unavailable"}
	})
}

// memoryStore is an in-memory EvaluationStore
type memoryStore struct {
	mu      sync.Mutex
	records []db.EvaluationRecord
	saveErr error
}

func (m *memoryStore) SaveEvaluation(_ context.Context, input *db.EvaluationInput) (*db.EvaluationRecord, error) {
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	sentineled := []string{}
	for _, c := range input.Evaluation.Sentineled() {
		sentineled = append(sentineled, string(c))
	}
	rec := db.EvaluationRecord{
		ID:         uuid.New(),
		IdeaName:   input.Idea.Name,
		Idea:       input.Idea,
		Evaluation: input.Evaluation,
		Sentineled: sentineled,
		Model:      input.Model,
		DurationMs: int(input.Duration.Milliseconds()),
		CreatedAt:  time.Now(),
	}
	m.records = append(m.records, rec)
	return &rec, nil
}

func (m *memoryStore) GetEvaluation(_ context.Context, id uuid.UUID) (*db.EvaluationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID == id {
			rec := m.records[i]
			return &rec, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) ListEvaluations(_ context.Context, limit, offset int) ([]db.EvaluationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.EvaluationRecord
	for i := len(m.records) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

type testServerOptions struct {
	store     EvaluationStore
	catalog   *prompts.Catalog
	rateLimit *ratelimit.Config
}

func newTestServer(t *testing.T, completer llm.Completer, opts testServerOptions) *Server {
	t.Helper()
	catalog := opts.catalog
	if catalog == nil {
		var err error
		catalog, err = prompts.Load()
		require.NoError(t, err)
	}
	rateLimit := opts.rateLimit
	if rateLimit == nil {
		rateLimit = &ratelimit.Config{Enabled: false}
	}

	s := NewWithDependencies(Config{Model: "test-model", RateLimit: rateLimit}, Dependencies{
		Enhancer:  enhance.NewService(completer, catalog),
		Evaluator: evaluation.NewOrchestrator(completer, catalog, evaluation.WithCallTimeout(time.Second)),
		Store:     opts.store,
		Catalog:   catalog,
	})
	t.Cleanup(s.Close)
	return s
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

const ideaJSON = `{"name": "Smart Badge", "description": "Badges that open doors", "department": "Facilities"}`

func TestNew_RequiresCompleterAndCatalog(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{Completer: reply("")})
	assert.Error(t, err)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, reply(""), testServerOptions{})

	rec := doRequest(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["storage"])
}

func TestHandleEnhance(t *testing.T) {
	tests := []struct {
		name       string
		completer  llm.Completer
		body       string
		wantStatus int
		want       map[string]any
	}{
		{
			name:       "structured reply",
			completer:  reply(`{"rewritten": "Better text", "evaluation": "Clear and specific"}`),
			body:       `{"message": "make this better", "type": "idea_enhancement", "context": {"ideaMetadata": {"department": "HR"}}}`,
			wantStatus: http.StatusOK,
			want:       map[string]any{"rewritten": "Better text", "evaluation": "Clear and specific"},
		},
		{
			name:       "unparseable reply is still a complete record",
			completer:  reply("just some prose"),
			body:       `{"message": "make this better"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "malformed body",
			completer:  reply(""),
			body:       `{"message":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing message",
			completer:  reply(""),
			body:       `{"type": "general"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown type",
			completer:  reply(""),
			body:       `{"message": "x", "type": "poem"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "transport failure",
			completer:  failing(),
			body:       `{"message": "x"}`,
			wantStatus: http.StatusBadGateway,
			want:       map[string]any{"error": "Failed to get AI response"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.completer, testServerOptions{})
			rec := doRequest(t, s, http.MethodPost, "/api/enhance", tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			body := decodeBody(t, rec)
			if tt.want != nil {
				assert.Equal(t, tt.want, body)
			}
			if tt.wantStatus == http.StatusOK {
				assert.NotEmpty(t, body["rewritten"])
				assert.NotEmpty(t, body["evaluation"])
			} else {
				assert.NotEmpty(t, body["error"])
			}
		})
	}
}

func TestHandleEvaluate(t *testing.T) {
	s := newTestServer(t, reply(`{"score": 80, "explanation": "solid"}`), testServerOptions{})

	rec := doRequest(t, s, http.MethodPost, "/api/evaluate", ideaJSON)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, rec.Header().Get("Location"), "nothing stored without a database")

	body := decodeBody(t, rec)
	assert.Equal(t, float64(80), body["overallScore"])
	for _, c := range types.Criteria() {
		assert.Equal(t, float64(80), body[string(c)+"Score"])
		assert.Equal(t, "solid", body[string(c)+"Explanation"])
	}
}

func TestHandleEvaluate_TransportFailureStillAnswers(t *testing.T) {
	s := newTestServer(t, failing(), testServerOptions{})

	rec := doRequest(t, s, http.MethodPost, "/api/evaluate", ideaJSON)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(types.SentinelScore), body["overallScore"])
	assert.Equal(t, types.SentinelExplanation, body["innovationExplanation"])
}

func TestHandleEvaluate_Validation(t *testing.T) {
	s := newTestServer(t, reply(""), testServerOptions{})

	rec := doRequest(t, s, http.MethodPost, "/api/evaluate", `{"description": "no name"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "Name")

	rec = doRequest(t, s, http.MethodPost, "/api/evaluate", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleEvaluate_MissingTemplate(t *testing.T) {
	catalog := prompts.NewCatalog(map[string]map[string]string{
		prompts.SetEvaluation: {prompts.KeySystem: "You are an evaluator."},
	})
	s := newTestServer(t, reply(`{"score": 80, "explanation": "solid"}`), testServerOptions{catalog: catalog})

	rec := doRequest(t, s, http.MethodPost, "/api/evaluate", ideaJSON)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "AI evaluator is not configured correctly", decodeBody(t, rec)["error"])
}

func TestHandleEvaluate_StoresAndRetrieves(t *testing.T) {
	store := &memoryStore{}
	s := newTestServer(t, reply(`{"score": 70, "explanation": "fine"}`), testServerOptions{store: store})

	rec := doRequest(t, s, http.MethodPost, "/api/evaluate", ideaJSON)
	require.Equal(t, http.StatusOK, rec.Code)
	location := rec.Header().Get("Location")
	require.NotEmpty(t, location)
	require.Len(t, store.records, 1)
	assert.Equal(t, "test-model", store.records[0].Model)

	rec = doRequest(t, s, http.MethodGet, location, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got db.EvaluationRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Smart Badge", got.IdeaName)
	assert.Equal(t, 70, got.Evaluation.OverallScore())

	rec = doRequest(t, s, http.MethodGet, "/api/evaluations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list EvaluationListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Evaluations, 1)
	assert.Equal(t, db.DefaultListLimit, list.Limit)
}

func TestHandleEvaluate_StoreFailureDoesNotFailRequest(t *testing.T) {
	store := &memoryStore{saveErr: errors.New("connection refused")}
	s := newTestServer(t, reply(`{"score": 70, "explanation": "fine"}`), testServerOptions{store: store})

	rec := doRequest(t, s, http.MethodPost, "/api/evaluate", ideaJSON)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"))
}

func TestHandleEvaluations_Errors(t *testing.T) {
	withStore := newTestServer(t, reply(""), testServerOptions{store: &memoryStore{}})
	withoutStore := newTestServer(t, reply(""), testServerOptions{})

	tests := []struct {
		name       string
		server     *Server
		path       string
		wantStatus int
	}{
		{name: "get without storage", server: withoutStore, path: "/api/evaluations/" + uuid.NewString(), wantStatus: http.StatusNotImplemented},
		{name: "list without storage", server: withoutStore, path: "/api/evaluations", wantStatus: http.StatusNotImplemented},
		{name: "invalid id", server: withStore, path: "/api/evaluations/not-a-uuid", wantStatus: http.StatusBadRequest},
		{name: "unknown id", server: withStore, path: "/api/evaluations/" + uuid.NewString(), wantStatus: http.StatusNotFound},
		{name: "empty list", server: withStore, path: "/api/evaluations?limit=500", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, tt.server, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}

	rec := doRequest(t, withStore, http.MethodGet, "/api/evaluations?limit=500", "")
	body := decodeBody(t, rec)
	assert.Equal(t, float64(db.MaxListLimit), body["limit"])
	assert.Equal(t, []any{}, body["evaluations"])
}

func TestHandleEvaluateStream(t *testing.T) {
	store := &memoryStore{}
	s := newTestServer(t, reply(`{"score": 90, "explanation": "great"}`), testServerOptions{store: store})

	rec := doRequest(t, s, http.MethodPost, "/api/evaluate/stream", ideaJSON)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := parseSSE(t, rec.Body.String())
	require.Len(t, events, len(types.Criteria())+1)

	seen := make(map[string]bool)
	for _, ev := range events[:len(events)-1] {
		assert.Equal(t, "criterion", ev.name)
		var payload CriterionEvent
		require.NoError(t, json.Unmarshal([]byte(ev.data), &payload))
		assert.Equal(t, 90, payload.Score)
		seen[string(payload.Criterion)] = true
	}
	assert.Len(t, seen, len(types.Criteria()), "each criterion is streamed once")

	last := events[len(events)-1]
	assert.Equal(t, "complete", last.name)
	var complete struct {
		ID         string         `json:"id"`
		Evaluation map[string]any `json:"evaluation"`
	}
	require.NoError(t, json.Unmarshal([]byte(last.data), &complete))
	assert.Equal(t, store.records[0].ID.String(), complete.ID)
	assert.Equal(t, float64(90), complete.Evaluation["overallScore"])
}

func TestHandleEvaluateStream_ConfigurationError(t *testing.T) {
	catalog := prompts.NewCatalog(map[string]map[string]string{})
	s := newTestServer(t, reply(""), testServerOptions{catalog: catalog})

	rec := doRequest(t, s, http.MethodPost, "/api/evaluate/stream", ideaJSON)
	events := parseSSE(t, rec.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0].name)
	assert.Contains(t, events[0].data, "not configured correctly")
}

func TestHandleEvaluateStream_InvalidIdeaIsPlainJSON(t *testing.T) {
	s := newTestServer(t, reply(""), testServerOptions{})

	rec := doRequest(t, s, http.MethodPost, "/api/evaluate/stream", `{"name": "no description"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

type sseEvent struct {
	name string
	data string
}

func parseSSE(t *testing.T, stream string) []sseEvent {
	t.Helper()
	var events []sseEvent
	for _, block := range strings.Split(strings.TrimSpace(stream), "\n\n") {
		var ev sseEvent
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.data = strings.TrimPrefix(line, "data: ")
			}
		}
		require.NotEmpty(t, ev.name, "malformed event block %q", block)
		events = append(events, ev)
	}
	return events
}

func TestHandlePrompts(t *testing.T) {
	s := newTestServer(t, reply(""), testServerOptions{})

	rec := doRequest(t, s, http.MethodGet, "/api/prompts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Sets map[string][]string `json:"sets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, []string{"general", "idea_enhancement"}, list.Sets[prompts.SetEnhancement])
	assert.Contains(t, list.Sets[prompts.SetEvaluation], "feasibility")

	rec = doRequest(t, s, http.MethodGet, "/api/prompts/evaluation/innovation", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var prompt PromptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prompt))
	assert.True(t, prompt.Default)
	assert.Contains(t, prompt.Text, prompts.PlaceholderIdea)

	rec = doRequest(t, s, http.MethodGet, "/api/prompts/evaluation/charisma", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, reply(""), testServerOptions{})

	rec := doRequest(t, s, http.MethodOptions, "/api/evaluate", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit_EvaluationBudget(t *testing.T) {
	s := newTestServer(t, reply(`{"score": 60, "explanation": "ok"}`), testServerOptions{
		rateLimit: &ratelimit.Config{
			Enabled:       true,
			DefaultLimit:  1000,
			DefaultWindow: time.Minute,
			EndpointConfigs: []ratelimit.EndpointConfig{
				{Group: "evaluate", Path: "/api/evaluate", Method: "POST", Limit: 4, Window: time.Hour, Cost: 4},
			},
		},
	})

	rec := doRequest(t, s, http.MethodPost, "/api/evaluate", ideaJSON)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "4", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = doRequest(t, s, http.MethodPost, "/api/evaluate", ideaJSON)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	body := decodeBody(t, rec)
	assert.Equal(t, float64(4), body["cost"])

	rec = doRequest(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
