// Package api exposes the sync and enrichment operations over HTTP.
package api

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/jobsync/internal/enrich"
	"github.com/sells-group/jobsync/internal/model"
	"github.com/sells-group/jobsync/internal/progress"
	"github.com/sells-group/jobsync/internal/ratelimit"
	"github.com/sells-group/jobsync/pkg/apollo"
)

// Enricher is the orchestrator surface the API serves.
type Enricher interface {
	ProcessChunk(ctx context.Context, req model.ChunkRequest) (*model.ChunkStats, *model.ChunkInfo, error)
	MiniBatch(ctx context.Context, batchSize, startOffset int) (*model.MiniBatchStats, *model.MiniBatchInfo, error)
	Analyze(ctx context.Context, limit int) (*model.BookAnalysis, error)
	EnrichCompany(ctx context.Context, p enrich.EnrichParams) (*model.EnrichResult, error)
}

// Ingestor is the scrape-and-create surface.
type Ingestor interface {
	Run(ctx context.Context, query model.ScrapeQuery) (*model.IngestSummary, error)
	RunAsync(jobID string, query model.ScrapeQuery)
}

// Server holds the handler dependencies and process counters.
type Server struct {
	apiKey   string
	enricher Enricher
	ingestor Ingestor
	people   apollo.Client
	admit    enrich.Admitter
	tracker  *progress.Tracker
	usage    func() ratelimit.Usage

	totalRequests     atomic.Int64
	successfulScrapes atomic.Int64
	failedScrapes     atomic.Int64
}

// NewServer wires the HTTP surface.
func NewServer(apiKey string, enricher Enricher, ingestor Ingestor, people apollo.Client, admit enrich.Admitter, tracker *progress.Tracker, usage func() ratelimit.Usage) *Server {
	return &Server{
		apiKey:   apiKey,
		enricher: enricher,
		ingestor: ingestor,
		people:   people,
		admit:    admit,
		tracker:  tracker,
		usage:    usage,
	}
}

// Router builds the route tree. The index and liveness probes are open;
// everything else sits behind the API key.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-API-Key"},
	}))

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Use(s.countRequests)

		r.Post("/scrape", s.handleScrape)
		r.Post("/scrape_async", s.handleScrapeAsync)
		r.Get("/scrape_status/{job_id}", s.handleScrapeStatus)

		r.Post("/search_contacts", s.handleSearchContacts)
		r.Post("/enrich_contacts", s.handleEnrichContacts)

		r.Post("/enrich_companies_chunked", s.handleEnrichChunked)
		r.Post("/enrich_mini_batch", s.handleMiniBatch)
		r.Get("/analyze_companies", s.handleAnalyze)

		r.Get("/stats", s.handleStats)
	})

	return r
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.totalRequests.Add(1)
		next.ServeHTTP(w, r)
	})
}
