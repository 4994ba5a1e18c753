package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jonathan/job-extractor/internal/db"
	"github.com/jonathan/job-extractor/internal/export"
	"github.com/jonathan/job-extractor/internal/extractor"
	"github.com/jonathan/job-extractor/internal/scoring"
	"github.com/jonathan/job-extractor/internal/server/middleware"
	"github.com/jonathan/job-extractor/internal/server/ratelimit"
	"github.com/jonathan/job-extractor/internal/types"
)

//go:embed templates/*.html
var templateFS embed.FS

// BatchRunner extracts a batch of URLs.
type BatchRunner interface {
	RunBatch(ctx context.Context, b *extractor.BatchContext) []types.JobPostingRecord
}

// Store persists batches and the exclusion list. *db.DB implements it.
type Store interface {
	IgnoredURLStrings(ctx context.Context) ([]string, error)
	CreateBatch(ctx context.Context, id uuid.UUID, urlCount int) error
	CompleteBatch(ctx context.Context, id uuid.UUID, status string, records []types.JobPostingRecord) error
	SaveBatchScores(ctx context.Context, id uuid.UUID, scores any) error
	GetBatch(ctx context.Context, id uuid.UUID) (*db.ProcessedBatch, error)
	ListBatches(ctx context.Context, limit int) ([]db.BatchSummary, error)
}

// Config holds server configuration
type Config struct {
	Addr string
	// DescriptionMaxChars truncates descriptions in the table and CSV.
	DescriptionMaxChars int
	// RateLimitPerMinute limits batch and scoring submissions per client.
	RateLimitPerMinute int
	// ScoreOptions tunes fit scoring runs.
	ScoreOptions scoring.BatchOptions
}

// Deps are the server's collaborators. Store and Scorer are optional.
type Deps struct {
	Runner BatchRunner
	Store  Store
	Scorer scoring.Scorer
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	cfg         Config
	runner      BatchRunner
	store       Store
	scorer      scoring.Scorer
	rateLimiter *ratelimit.Limiter
	templates   *template.Template
	validate    *validator.Validate
	runs        *registry

	// baseCtx parents every background batch; stop cancels it on shutdown.
	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new server instance
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Runner == nil {
		return nil, errors.New("server requires a batch runner")
	}

	tmpl, err := template.New("").Funcs(template.FuncMap{
		"breaks": export.BreaksToHTML,
		"percent": func(cur, total int) int {
			if total <= 0 {
				return 0
			}
			return cur * 100 / total
		},
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	baseCtx, stop := context.WithCancel(context.Background())
	s := &Server{
		cfg:         cfg,
		runner:      deps.Runner,
		store:       deps.Store,
		scorer:      deps.Scorer,
		rateLimiter: ratelimit.NewLimiter(ratelimit.NewConfig(cfg.RateLimitPerMinute)),
		templates:   tmpl,
		validate:    validator.New(),
		runs:        newRegistry(),
		baseCtx:     baseCtx,
		stop:        stop,
	}

	s.httpServer = &http.Server{
		Addr:        cfg.Addr,
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// no WriteTimeout: event streams stay open for the whole batch
		IdleTimeout: 60 * time.Second,
	}
	return s, nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /batches", s.handleCreateBatch)
	mux.HandleFunc("GET /batches/{id}", s.handleGetBatch)
	mux.HandleFunc("GET /batches/{id}/events", s.handleBatchEvents)
	mux.HandleFunc("GET /batches/{id}/export.csv", s.handleExportCSV)
	mux.HandleFunc("POST /batches/{id}/score", s.handleScoreBatch)
	mux.HandleFunc("POST /batches/{id}/cancel", s.handleCancelBatch)
	mux.HandleFunc("GET /health", s.handleHealth)

	return middleware.RequestID(middleware.Recover(middleware.Logging(s.withRateLimit(mux))))
}

// Start listens until ctx is cancelled, then shuts down gracefully: in-flight
// requests drain, running batches stop at their next record boundary.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.httpServer.Addr).Msg("server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.Close()
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.stop()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.Close()
	log.Info().Msg("server stopped")
	return nil
}

// Close cancels background batches, waits for them to record their state,
// and stops the rate limiter.
func (s *Server) Close() {
	s.stop()
	s.wg.Wait()
	s.rateLimiter.Stop()
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(s.extractClientID(r), r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractClientID extracts the client identifier from the request.
// It uses the IP address from RemoteAddr; forwarded headers are not trusted.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		secs := int(info.RetryAfter.Seconds()) + 1
		response["retry_after"] = secs
		w.Header().Set("Retry-After", fmt.Sprintf("%d", secs))
	}

	log.Warn().Int("limit", info.Limit).Time("reset_at", info.ResetTime).Msg("rate limit exceeded")
	s.jsonResponse(w, http.StatusTooManyRequests, response)
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// render executes a template into a buffer so a failure still yields a clean 500.
func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("template render failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes()) //nolint:errcheck
}
