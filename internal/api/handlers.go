package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/jobsync/internal/enrich"
	"github.com/sells-group/jobsync/internal/model"
	"github.com/sells-group/jobsync/internal/progress"
	"github.com/sells-group/jobsync/internal/ratelimit"
	"github.com/sells-group/jobsync/pkg/apollo"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]any{
		"service": "jobsync",
		"endpoints": map[string]string{
			"/health":                   "GET - Liveness probe",
			"/scrape":                   "POST - Scrape job postings into the CRM",
			"/scrape_async":             "POST - Scrape in the background",
			"/scrape_status/{job_id}":   "GET - Poll a background scrape",
			"/search_contacts":          "POST - Search contacts for a domain",
			"/enrich_contacts":          "POST - Enrich one company with contacts",
			"/enrich_companies_chunked": "POST - Bulk enrich companies, one chunk at a time",
			"/enrich_mini_batch":        "POST - Bulk enrich a small batch",
			"/analyze_companies":        "GET - Analyze the company book",
			"/stats":                    "GET - API usage statistics",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]any{"status": "healthy"})
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var query model.ScrapeQuery
	if err := decodeJSON(r, &query); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	summary, err := s.ingestor.Run(r.Context(), query)
	if err != nil {
		s.failedScrapes.Add(1)
		zap.L().Error("scrape failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "scrape failed")
		return
	}

	s.successfulScrapes.Add(1)
	respond(w, http.StatusOK, map[string]any{
		"success": true,
		"summary": summary,
	})
}

func (s *Server) handleScrapeAsync(w http.ResponseWriter, r *http.Request) {
	var query model.ScrapeQuery
	if err := decodeJSON(r, &query); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	jobID := uuid.NewString()
	s.ingestor.RunAsync(jobID, query)

	respond(w, http.StatusAccepted, map[string]any{
		"success": true,
		"job_id":  jobID,
		"status":  string(progress.StateProcessing),
	})
}

func (s *Server) handleScrapeStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")

	job, err := s.tracker.Get(jobID)
	if err != nil {
		respondError(w, http.StatusNotFound, "unknown job id")
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"success": true,
		"job":     job,
	})
}

func (s *Server) handleSearchContacts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Domain      string `json:"domain"`
		MaxContacts int    `json:"max_contacts"`
		FilterType  string `json:"filter_type"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Domain == "" {
		respondError(w, http.StatusBadRequest, "domain is required")
		return
	}
	if req.MaxContacts <= 0 {
		req.MaxContacts = 10
	}
	if req.FilterType == "" {
		req.FilterType = string(model.FilterAll)
	}
	if err := model.FilterType(req.FilterType).Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.admit.Admit(r.Context()); err != nil {
		s.respondLimited(w, err)
		return
	}

	people, err := s.people.SearchPeople(r.Context(), req.Domain, req.MaxContacts, apollo.Filter(req.FilterType))
	if err != nil {
		zap.L().Error("contact search failed", zap.String("domain", req.Domain), zap.Error(err))
		respondError(w, http.StatusBadGateway, "contact search failed")
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"success":        true,
		"domain":         req.Domain,
		"filter_type":    req.FilterType,
		"contacts_found": len(people),
		"contacts":       people,
	})
}

func (s *Server) handleEnrichContacts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CompanyID      string `json:"company_id"`
		CompanyName    string `json:"company_name"`
		CompanyWebsite string `json:"company_website"`
		MaxContacts    int    `json:"max_contacts"`
		FilterType     string `json:"filter_type"`
		SkipDuplicates *bool  `json:"skip_duplicates"`
		Force          bool   `json:"force_apollo"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CompanyID == "" {
		respondError(w, http.StatusBadRequest, "company_id is required")
		return
	}
	if req.CompanyWebsite == "" {
		respondError(w, http.StatusBadRequest, "company_website is required")
		return
	}
	if req.FilterType != "" {
		if err := model.FilterType(req.FilterType).Validate(); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	skipDuplicates := true
	if req.SkipDuplicates != nil {
		skipDuplicates = *req.SkipDuplicates
	}

	result, err := s.enricher.EnrichCompany(r.Context(), enrich.EnrichParams{
		CompanyID:      req.CompanyID,
		CompanyName:    req.CompanyName,
		Website:        req.CompanyWebsite,
		MaxContacts:    req.MaxContacts,
		FilterType:     model.FilterType(req.FilterType),
		SkipDuplicates: skipDuplicates,
		Force:          req.Force,
	})
	switch {
	case eris.Is(err, enrich.ErrNoDomain):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case eris.Is(err, ratelimit.ErrDailyLimit):
		s.respondLimited(w, err)
		return
	case err != nil:
		zap.L().Error("single-company enrichment failed",
			zap.String("company_id", req.CompanyID),
			zap.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "enrichment failed")
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"success": true,
		"result":  result,
	})
}

func (s *Server) handleEnrichChunked(w http.ResponseWriter, r *http.Request) {
	var req model.ChunkRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// Generated here so the response can echo it even on failure.
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	stats, info, err := s.enricher.ProcessChunk(r.Context(), req)
	switch {
	case eris.Is(err, enrich.ErrSessionBusy):
		respondError(w, http.StatusConflict, err.Error())
		return
	case eris.Is(err, ratelimit.ErrDailyLimit):
		s.respondLimited(w, err)
		return
	case err != nil:
		if model.FilterType(req.FilterType).Validate() != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		zap.L().Error("chunk processing failed",
			zap.String("session_id", req.SessionID),
			zap.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "chunk processing failed")
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"success":    true,
		"session_id": req.SessionID,
		"results":    stats,
		"chunk_info": info,
	})
}

func (s *Server) handleMiniBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BatchSize   int `json:"batch_size"`
		StartOffset int `json:"start_offset"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	stats, info, err := s.enricher.MiniBatch(r.Context(), req.BatchSize, req.StartOffset)
	switch {
	case eris.Is(err, ratelimit.ErrDailyLimit):
		s.respondLimited(w, err)
		return
	case err != nil:
		zap.L().Error("mini batch failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "mini batch failed")
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"success":    true,
		"results":    stats,
		"batch_info": info,
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	analysis, err := s.enricher.Analyze(r.Context(), limit)
	if err != nil {
		zap.L().Error("company analysis failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "analysis failed")
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"success":  true,
		"analysis": analysis,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]any{
		"success":   true,
		"api_usage": s.usage(),
		"requests": map[string]int64{
			"total_requests":     s.totalRequests.Load(),
			"successful_scrapes": s.successfulScrapes.Load(),
			"failed_scrapes":     s.failedScrapes.Load(),
		},
	})
}

// respondLimited maps the daily budget to 429 and anything else (usually a
// cancelled request) to 503.
func (s *Server) respondLimited(w http.ResponseWriter, err error) {
	if eris.Is(err, ratelimit.ErrDailyLimit) {
		respondError(w, http.StatusTooManyRequests, err.Error())
		return
	}
	respondError(w, http.StatusServiceUnavailable, "rate limiter unavailable")
}
