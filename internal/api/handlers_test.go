package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/jobsync/internal/enrich"
	"github.com/sells-group/jobsync/internal/model"
	"github.com/sells-group/jobsync/internal/progress"
	"github.com/sells-group/jobsync/internal/ratelimit"
	"github.com/sells-group/jobsync/pkg/apollo"
)

const testKey = "test-api-key"

type fakeEnricher struct {
	chunkStats *model.ChunkStats
	chunkInfo  *model.ChunkInfo
	chunkErr   error
	chunkReq   model.ChunkRequest

	batchStats *model.MiniBatchStats
	batchInfo  *model.MiniBatchInfo
	batchErr   error

	analysis *model.BookAnalysis

	enrichResult *model.EnrichResult
	enrichErr    error
	enrichParams enrich.EnrichParams
}

func (f *fakeEnricher) ProcessChunk(_ context.Context, req model.ChunkRequest) (*model.ChunkStats, *model.ChunkInfo, error) {
	f.chunkReq = req
	return f.chunkStats, f.chunkInfo, f.chunkErr
}

func (f *fakeEnricher) MiniBatch(_ context.Context, _, _ int) (*model.MiniBatchStats, *model.MiniBatchInfo, error) {
	return f.batchStats, f.batchInfo, f.batchErr
}

func (f *fakeEnricher) Analyze(_ context.Context, _ int) (*model.BookAnalysis, error) {
	return f.analysis, nil
}

func (f *fakeEnricher) EnrichCompany(_ context.Context, p enrich.EnrichParams) (*model.EnrichResult, error) {
	f.enrichParams = p
	return f.enrichResult, f.enrichErr
}

type fakeIngestor struct {
	summary  *model.IngestSummary
	err      error
	asyncRun bool
	query    model.ScrapeQuery
}

func (f *fakeIngestor) Run(_ context.Context, query model.ScrapeQuery) (*model.IngestSummary, error) {
	f.query = query
	return f.summary, f.err
}

func (f *fakeIngestor) RunAsync(_ string, query model.ScrapeQuery) {
	f.asyncRun = true
	f.query = query
}

type fakePeople struct {
	people []apollo.Person
	err    error
}

func (f *fakePeople) SearchPeople(context.Context, string, int, apollo.Filter) ([]apollo.Person, error) {
	return f.people, f.err
}

func (f *fakePeople) EnrichOrganization(context.Context, string) (*apollo.Organization, error) {
	return nil, nil
}

type fakeAdmit struct {
	err   error
	calls int
}

func (f *fakeAdmit) Admit(context.Context) error {
	f.calls++
	return f.err
}

type testServer struct {
	srv      *Server
	enricher *fakeEnricher
	ingestor *fakeIngestor
	people   *fakePeople
	admit    *fakeAdmit
	tracker  *progress.Tracker
}

func newTestServer() *testServer {
	ts := &testServer{
		enricher: &fakeEnricher{},
		ingestor: &fakeIngestor{},
		people:   &fakePeople{},
		admit:    &fakeAdmit{},
		tracker:  progress.NewTracker(),
	}
	usage := func() ratelimit.Usage {
		return ratelimit.Usage{TotalCalls: 7, DayUsed: 3, DayLimit: 600}
	}
	ts.srv = NewServer(testKey, ts.enricher, ts.ingestor, ts.people, ts.admit, ts.tracker, usage)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-API-Key", testKey)

	rec := httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(rec, req)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return rec, payload
}

func TestHealth(t *testing.T) {
	ts := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestScrape(t *testing.T) {
	ts := newTestServer()
	ts.ingestor.summary = &model.IngestSummary{TotalJobsFound: 12, JobsCreated: 10, JobsSkipped: 2}

	rec, payload := ts.do(t, http.MethodPost, "/scrape", model.ScrapeQuery{SearchTerm: "plumber", Location: "Denver, CO"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, payload["success"])
	summary := payload["summary"].(map[string]any)
	assert.Equal(t, float64(12), summary["total_jobs_found"])
	assert.Equal(t, "plumber", ts.ingestor.query.SearchTerm)
	assert.NotEmpty(t, payload["timestamp"])
}

func TestScrapeFailure(t *testing.T) {
	ts := newTestServer()
	ts.ingestor.err = assert.AnError

	rec, payload := ts.do(t, http.MethodPost, "/scrape", model.ScrapeQuery{})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, payload["success"])
	assert.Equal(t, int64(1), ts.srv.failedScrapes.Load())
	assert.Equal(t, int64(0), ts.srv.successfulScrapes.Load())
}

func TestScrapeAsyncAndStatus(t *testing.T) {
	ts := newTestServer()

	rec, payload := ts.do(t, http.MethodPost, "/scrape_async", model.ScrapeQuery{SearchTerm: "electrician"})

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, ts.ingestor.asyncRun)
	jobID, ok := payload["job_id"].(string)
	require.True(t, ok)
	require.NotEmpty(t, jobID)

	// The fake never registers the job, so polling it is a 404.
	rec, payload = ts.do(t, http.MethodGet, "/scrape_status/"+jobID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, payload["success"])

	ts.tracker.Start(jobID)
	rec, payload = ts.do(t, http.MethodGet, "/scrape_status/"+jobID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	job := payload["job"].(map[string]any)
	assert.Equal(t, "processing", job["status"])
}

func TestSearchContacts(t *testing.T) {
	ts := newTestServer()
	ts.people.people = []apollo.Person{
		{FirstName: "Ada", LastName: "Byrne", Email: "ada@acme.com"},
		{FirstName: "Sam", LastName: "Ortiz"},
	}

	rec, payload := ts.do(t, http.MethodPost, "/search_contacts", map[string]any{
		"domain": "acme.com",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, "acme.com", payload["domain"])
	assert.Equal(t, "all", payload["filter_type"])
	assert.Equal(t, float64(2), payload["contacts_found"])
	assert.Equal(t, 1, ts.admit.calls)
}

func TestSearchContactsRequiresDomain(t *testing.T) {
	ts := newTestServer()

	rec, payload := ts.do(t, http.MethodPost, "/search_contacts", map[string]any{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, payload["error"], "domain")
	assert.Zero(t, ts.admit.calls)
}

func TestSearchContactsRejectsBadFilter(t *testing.T) {
	ts := newTestServer()

	rec, payload := ts.do(t, http.MethodPost, "/search_contacts", map[string]any{
		"domain":      "acme.com",
		"filter_type": "interns",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, payload["error"], "filter_type")
}

func TestSearchContactsDailyLimit(t *testing.T) {
	ts := newTestServer()
	ts.admit.err = ratelimit.ErrDailyLimit

	rec, _ := ts.do(t, http.MethodPost, "/search_contacts", map[string]any{"domain": "acme.com"})

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestEnrichContacts(t *testing.T) {
	ts := newTestServer()
	ts.enricher.enrichResult = &model.EnrichResult{
		CompanyID:       "acc-1",
		Domain:          "acme.com",
		ContactsFound:   3,
		ContactsCreated: 3,
	}

	rec, payload := ts.do(t, http.MethodPost, "/enrich_contacts", map[string]any{
		"company_id":      "acc-1",
		"company_name":    "Acme Plumbing",
		"company_website": "https://acme.com",
		"force_apollo":    true,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, payload["success"])
	result := payload["result"].(map[string]any)
	assert.Equal(t, float64(3), result["contacts_created"])

	assert.Equal(t, "acc-1", ts.enricher.enrichParams.CompanyID)
	assert.True(t, ts.enricher.enrichParams.Force)
	assert.True(t, ts.enricher.enrichParams.SkipDuplicates, "skip_duplicates defaults to true")
}

func TestEnrichContactsSkipDuplicatesOff(t *testing.T) {
	ts := newTestServer()
	ts.enricher.enrichResult = &model.EnrichResult{}

	rec, _ := ts.do(t, http.MethodPost, "/enrich_contacts", map[string]any{
		"company_id":      "acc-1",
		"company_website": "https://acme.com",
		"skip_duplicates": false,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, ts.enricher.enrichParams.SkipDuplicates)
}

func TestEnrichContactsMissingFields(t *testing.T) {
	ts := newTestServer()

	rec, payload := ts.do(t, http.MethodPost, "/enrich_contacts", map[string]any{
		"company_website": "https://acme.com",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, payload["error"], "company_id")

	rec, payload = ts.do(t, http.MethodPost, "/enrich_contacts", map[string]any{
		"company_id": "acc-1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, payload["error"], "company_website")
}

func TestEnrichContactsNoDomain(t *testing.T) {
	ts := newTestServer()
	ts.enricher.enrichErr = enrich.ErrNoDomain

	rec, _ := ts.do(t, http.MethodPost, "/enrich_contacts", map[string]any{
		"company_id":      "acc-1",
		"company_website": "not a url",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnrichChunked(t *testing.T) {
	ts := newTestServer()
	next := 25
	ts.enricher.chunkStats = &model.ChunkStats{CompaniesAnalyzed: 25, CompaniesEnriched: 20}
	ts.enricher.chunkInfo = &model.ChunkInfo{
		Offset:             0,
		ChunkSize:          25,
		CompaniesProcessed: 25,
		TotalCompanies:     60,
		HasMore:            true,
		NextOffset:         &next,
		ProgressPercentage: 41.67,
	}

	rec, payload := ts.do(t, http.MethodPost, "/enrich_companies_chunked", model.ChunkRequest{
		ChunkSize: 25,
		SessionID: "sess-1",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, "sess-1", payload["session_id"])

	results := payload["results"].(map[string]any)
	assert.Equal(t, float64(20), results["companies_enriched"])

	info := payload["chunk_info"].(map[string]any)
	assert.Equal(t, true, info["has_more"])
	assert.Equal(t, float64(25), info["next_offset"])
	assert.Equal(t, float64(41.67), info["progress_percentage"])
}

func TestEnrichChunkedGeneratesSessionID(t *testing.T) {
	ts := newTestServer()
	ts.enricher.chunkStats = &model.ChunkStats{}
	ts.enricher.chunkInfo = &model.ChunkInfo{}

	_, payload := ts.do(t, http.MethodPost, "/enrich_companies_chunked", model.ChunkRequest{ChunkSize: 10})

	sessionID, ok := payload["session_id"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, sessionID)
	assert.Equal(t, sessionID, ts.enricher.chunkReq.SessionID)
}

func TestEnrichChunkedErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"session busy", enrich.ErrSessionBusy, http.StatusConflict},
		{"daily limit", ratelimit.ErrDailyLimit, http.StatusTooManyRequests},
		{"other", assert.AnError, http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer()
			ts.enricher.chunkErr = tc.err

			rec, payload := ts.do(t, http.MethodPost, "/enrich_companies_chunked", model.ChunkRequest{ChunkSize: 10})

			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, false, payload["success"])
		})
	}
}

func TestMiniBatchEndpoint(t *testing.T) {
	ts := newTestServer()
	ts.enricher.batchStats = &model.MiniBatchStats{CompaniesProcessed: 5, CompaniesEnriched: 4, ContactsCreated: 12}
	ts.enricher.batchInfo = &model.MiniBatchInfo{Offset: 0, BatchSize: 5, HasMore: true}

	rec, payload := ts.do(t, http.MethodPost, "/enrich_mini_batch", map[string]any{
		"batch_size": 5,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	results := payload["results"].(map[string]any)
	assert.Equal(t, float64(12), results["contacts_created"])
	info := payload["batch_info"].(map[string]any)
	assert.Equal(t, true, info["has_more"])
}

func TestAnalyzeCompanies(t *testing.T) {
	ts := newTestServer()
	ts.enricher.analysis = &model.BookAnalysis{
		TotalCompanies:        40,
		CompaniesWithContacts: 15,
	}

	rec, payload := ts.do(t, http.MethodGet, "/analyze_companies?limit=40", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	analysis := payload["analysis"].(map[string]any)
	assert.Equal(t, float64(40), analysis["total_companies"])
}

func TestAnalyzeRejectsBadLimit(t *testing.T) {
	ts := newTestServer()

	rec, _ := ts.do(t, http.MethodGet, "/analyze_companies?limit=nope", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStats(t *testing.T) {
	ts := newTestServer()
	ts.ingestor.summary = &model.IngestSummary{}
	ts.do(t, http.MethodPost, "/scrape", model.ScrapeQuery{})

	rec, payload := ts.do(t, http.MethodGet, "/stats", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	usage := payload["api_usage"].(map[string]any)
	assert.Equal(t, float64(7), usage["total_calls"])
	assert.Equal(t, float64(600), usage["per_day"])

	requests := payload["requests"].(map[string]any)
	// The scrape call above plus this stats call.
	assert.Equal(t, float64(2), requests["total_requests"])
	assert.Equal(t, float64(1), requests["successful_scrapes"])
}
