// Package server exposes lead extraction and batch records over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/leads-cli/internal/config"
	"github.com/sells-group/leads-cli/internal/extract"
	"github.com/sells-group/leads-cli/internal/monitoring"
	"github.com/sells-group/leads-cli/internal/pipeline"
	"github.com/sells-group/leads-cli/internal/queue"
	"github.com/sells-group/leads-cli/internal/store"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 8 << 20

// ExtractorFactory builds the chunk extractor for one request. It fails when
// the provider is not configured.
type ExtractorFactory func(ctx context.Context) (pipeline.ChunkExtractor, error)

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	cfg          *config.Config
	store        store.BatchStore
	queue        *queue.Queue
	newExtractor ExtractorFactory
	dedupe       pipeline.DedupeKey
	collector    *monitoring.Collector
}

// Option configures a Server.
type Option func(*Server)

// WithExtractorFactory replaces the config-driven extractor factory.
func WithExtractorFactory(f ExtractorFactory) Option {
	return func(s *Server) {
		if f != nil {
			s.newExtractor = f
		}
	}
}

// WithSharedProvider draws every request's extractor from sp, so all runs
// share one provider and its rate limit and circuit breaker.
func WithSharedProvider(sp *extract.SharedProvider) Option {
	return func(s *Server) {
		if sp != nil {
			s.newExtractor = extractorsFrom(sp)
		}
	}
}

func extractorsFrom(sp *extract.SharedProvider) ExtractorFactory {
	return func(ctx context.Context) (pipeline.ChunkExtractor, error) {
		ex, err := sp.Extractor(ctx)
		if err != nil {
			return nil, err
		}
		return ex, nil
	}
}

// WithQueue enables the queued extraction endpoint.
func WithQueue(q *queue.Queue) Option {
	return func(s *Server) { s.queue = q }
}

// New creates a Server.
func New(cfg *config.Config, st store.BatchStore, opts ...Option) (*Server, error) {
	key, err := pipeline.ParseDedupeKey(cfg.Extract.Dedupe)
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:          cfg,
		store:        st,
		dedupe:       key,
		collector:    monitoring.NewCollector(st, cfg.Monitoring.StaleAfter),
		newExtractor: extractorsFrom(extract.NewSharedProvider(cfg)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(answerOptions)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
	})

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/extract-leads", s.handleExtractLeads)
		r.Post("/extract-leads-background", s.handleExtractLeadsBackground)
		r.Post("/extract-leads-queued", s.handleExtractLeadsQueued)
		r.Post("/batches", s.handleCreateBatch)
		r.Get("/batches", s.handleListBatches)
		r.Get("/batches/{id}", s.handleGetBatch)
		r.Delete("/batches/{id}", s.handleDeleteBatch)
		r.Get("/stats", s.handleStats)
	})

	return r
}

func (s *Server) orchestrator(ex pipeline.ChunkExtractor, waveSize int) *pipeline.Orchestrator {
	return pipeline.NewOrchestrator(ex,
		pipeline.WithWaveSize(waveSize),
		pipeline.WithMaxChunkTokens(s.cfg.Extract.MaxChunkTokens),
		pipeline.WithDedupeKey(s.dedupe),
	)
}

func (s *Server) requestTimeout() time.Duration {
	if s.cfg.Server.RequestTimeout > 0 {
		return s.cfg.Server.RequestTimeout
	}
	return 10 * time.Minute
}
