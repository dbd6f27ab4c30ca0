// Package server provides the HTTP REST API for the idea evaluator.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/idea-evaluator/internal/db"
	"github.com/jonathan/idea-evaluator/internal/enhance"
	"github.com/jonathan/idea-evaluator/internal/evaluation"
	"github.com/jonathan/idea-evaluator/internal/llm"
	"github.com/jonathan/idea-evaluator/internal/prompts"
	"github.com/jonathan/idea-evaluator/internal/server/ratelimit"
	"github.com/jonathan/idea-evaluator/internal/types"
)

// Enhancer rewrites and critiques free-form text
type Enhancer interface {
	Enhance(ctx context.Context, req types.EnhanceRequest) (*types.EnhancementRecord, error)
}

// Evaluator scores an idea on every criterion
type Evaluator interface {
	EvaluateObserved(ctx context.Context, idea types.Idea, observer evaluation.Observer) (*types.CompositeEvaluation, error)
}

// EvaluationStore is the audit log of finished evaluations
type EvaluationStore interface {
	SaveEvaluation(ctx context.Context, input *db.EvaluationInput) (*db.EvaluationRecord, error)
	GetEvaluation(ctx context.Context, id uuid.UUID) (*db.EvaluationRecord, error)
	ListEvaluations(ctx context.Context, limit, offset int) ([]db.EvaluationRecord, error)
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	handler     http.Handler
	db          *db.DB
	enhancer    Enhancer
	evaluator   Evaluator
	store       EvaluationStore
	catalog     *prompts.Catalog
	model       string
	rateLimiter *ratelimit.Limiter
}

// Config holds server configuration
type Config struct {
	Port        int
	DatabaseURL string
	// Model is recorded with stored evaluations
	Model       string
	CallTimeout time.Duration
	Completer   llm.Completer
	Catalog     *prompts.Catalog
	// RateLimit defaults to ratelimit.LoadConfig()
	RateLimit *ratelimit.Config
}

// Dependencies are the services a Server routes to. Store may be nil.
type Dependencies struct {
	Enhancer  Enhancer
	Evaluator Evaluator
	Store     EvaluationStore
	Catalog   *prompts.Catalog
}

// New creates a server from a completer and prompt catalog. The evaluation audit log
// is enabled when DatabaseURL is set.
func New(cfg Config) (*Server, error) {
	if cfg.Completer == nil {
		return nil, errors.New("server requires a completer")
	}
	if cfg.Catalog == nil {
		return nil, errors.New("server requires a prompt catalog")
	}

	var opts []evaluation.Option
	if cfg.CallTimeout > 0 {
		opts = append(opts, evaluation.WithCallTimeout(cfg.CallTimeout))
	}
	deps := Dependencies{
		Enhancer:  enhance.NewService(cfg.Completer, cfg.Catalog),
		Evaluator: evaluation.NewOrchestrator(cfg.Completer, cfg.Catalog, opts...),
		Catalog:   cfg.Catalog,
	}

	var database *db.DB
	if cfg.DatabaseURL != "" {
		ctx := context.Background()
		var err error
		database, err = db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := database.EnsureSchema(ctx); err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to prepare database schema: %w", err)
		}
		deps.Store = database
	} else {
		log.Printf("[server] DATABASE_URL not set, evaluations will not be stored")
	}

	s := NewWithDependencies(cfg, deps)
	s.db = database
	return s, nil
}

// NewWithDependencies creates a server around already-built services
func NewWithDependencies(cfg Config, deps Dependencies) *Server {
	rateConfig := cfg.RateLimit
	if rateConfig == nil {
		rateConfig = ratelimit.LoadConfig()
	}

	s := &Server{
		enhancer:    deps.Enhancer,
		evaluator:   deps.Evaluator,
		store:       deps.Store,
		catalog:     deps.Catalog,
		model:       cfg.Model,
		rateLimiter: ratelimit.NewLimiter(rateConfig),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/enhance", s.handleEnhance)
	mux.HandleFunc("POST /api/evaluate", s.handleEvaluate)
	mux.HandleFunc("POST /api/evaluate/stream", s.handleEvaluateStream)
	mux.HandleFunc("GET /api/evaluations", s.handleListEvaluations)
	mux.HandleFunc("GET /api/evaluations/{id}", s.handleGetEvaluation)
	mux.HandleFunc("GET /api/prompts", s.handleListPrompts)
	mux.HandleFunc("GET /api/prompts/{set}/{key}", s.handleGetPrompt)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.handler = s.withRateLimit(s.withLogging(s.withCORS(mux)))
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the server with graceful shutdown
func (s *Server) Start() error {
	errChan := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		s.Close()
		return err
	case sig := <-quit:
		log.Printf("Received signal %v, shutting down...", sig)
	}

	// in-flight evaluations can take one full call timeout to finish
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	s.Close()
	if err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Println("Server stopped gracefully")
	return nil
}

// Close releases the rate limiter and database
func (s *Server) Close() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	if s.db != nil {
		s.db.Close()
	}
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit charges each request against the client's completion budget
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		allowed, info := s.rateLimiter.Allow(s.extractClientID(r), r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// failResponse maps a service error onto its status and user-facing message
func (s *Server) failResponse(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[server] request failed: %v", err)
	}
	s.errorResponse(w, status, UserMessage(err))
}

// extractClientID uses the remote IP. Forwarded headers are ignored.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 with the client's budget
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"error":     "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"cost":      info.Cost,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Seconds()) + 1
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
	}

	log.Printf("[rate-limit] Rate limit exceeded: Limit=%d Remaining=%d Cost=%d Reset=%s",
		info.Limit, info.Remaining, info.Cost, info.ResetTime.Format(time.RFC3339))

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
