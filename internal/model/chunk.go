package model

import "github.com/rotisserie/eris"

// FilterType narrows an enrichment-source people search by role.
type FilterType string

const (
	FilterAll        FilterType = "all"
	FilterManagers   FilterType = "managers"
	FilterExecutives FilterType = "executives"
)

// Validate rejects unknown filter types.
func (f FilterType) Validate() error {
	switch f {
	case FilterAll, FilterManagers, FilterExecutives:
		return nil
	default:
		return eris.Errorf("invalid filter_type %q: use all, managers, or executives", string(f))
	}
}

// CompanyStatus records the per-company outcome within a chunk.
type CompanyStatus string

const (
	CompanyStatusEnriched   CompanyStatus = "enriched"
	CompanyStatusSkipped    CompanyStatus = "skipped"
	CompanyStatusNoContacts CompanyStatus = "no_contacts_found"
	CompanyStatusError      CompanyStatus = "error"
)

// Skip reasons surfaced in CompanyResult.Reason.
const (
	SkipReasonNoWebsite     = "no_website"
	SkipReasonInvalidDomain = "invalid_domain"
)

// ChunkRequest is one bounded invocation of the bulk-enrichment orchestrator.
// The caller owns SessionID and StartOffset between invocations; the
// orchestrator keeps no durable state of its own.
type ChunkRequest struct {
	ChunkSize          int        `json:"chunk_size"`
	StartOffset        int        `json:"start_offset"`
	ContactsPerCompany int        `json:"contacts_per_company"`
	FilterType         FilterType `json:"filter_type"`
	SessionID          string     `json:"session_id"`
}

// CompanyResult is the per-company outcome reported back to the caller.
type CompanyResult struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Website         string        `json:"website"`
	Status          CompanyStatus `json:"status"`
	Reason          string        `json:"reason,omitempty"`
	ContactsFound   int           `json:"contacts_found,omitempty"`
	ContactsCreated int           `json:"contacts_created,omitempty"`
	ContactsSkipped int           `json:"contacts_skipped,omitempty"`
	ApolloMarked    bool          `json:"apollo_marked,omitempty"`
	Error           string        `json:"error,omitempty"`
}

// ChunkStats aggregates one processed chunk.
type ChunkStats struct {
	CompaniesAnalyzed    int             `json:"companies_analyzed"`
	CompaniesEnriched    int             `json:"companies_enriched"`
	CompaniesSkipped     int             `json:"companies_skipped"`
	TotalContactsCreated int             `json:"total_contacts_created"`
	Companies            []CompanyResult `json:"companies"`
}

// ChunkInfo is the continuation block of a chunk response. NextOffset is nil
// when the eligible list is exhausted.
type ChunkInfo struct {
	Offset             int     `json:"offset"`
	ChunkSize          int     `json:"chunk_size"`
	CompaniesProcessed int     `json:"companies_processed"`
	TotalCompanies     int     `json:"total_companies"`
	// TotalIsEstimate marks TotalCompanies (and the progress derived from
	// it) as a lower bound: the lazy Directory scan has not reached the end
	// of the book yet.
	TotalIsEstimate    bool    `json:"total_is_estimate,omitempty"`
	HasMore            bool    `json:"has_more"`
	NextOffset         *int    `json:"next_offset,omitempty"`
	ProgressPercentage float64 `json:"progress_percentage"`
}

// MiniBatchStats aggregates one mini-batch pass, which reports far less
// detail than a full chunk.
type MiniBatchStats struct {
	CompaniesProcessed int `json:"companies_processed"`
	CompaniesEnriched  int `json:"companies_enriched"`
	ContactsCreated    int `json:"contacts_created"`
}

// MiniBatchInfo is the continuation block of a mini-batch response.
type MiniBatchInfo struct {
	Offset     int  `json:"offset"`
	BatchSize  int  `json:"batch_size"`
	NextOffset *int `json:"next_offset,omitempty"`
	HasMore    bool `json:"has_more"`
	Completed  bool `json:"completed"`
}

// EnrichResult is the outcome of enriching a single company on demand.
type EnrichResult struct {
	CompanyID        string   `json:"company_id"`
	CompanyName      string   `json:"company_name"`
	Domain           string   `json:"domain"`
	Message          string   `json:"message,omitempty"`
	ExistingContacts int      `json:"existing_contacts,omitempty"`
	ContactsFound    int      `json:"contacts_found"`
	ContactsCreated  int      `json:"contacts_created"`
	ContactsSkipped  int      `json:"contacts_skipped"`
	ApolloMarked     bool     `json:"apollo_marked,omitempty"`
	CreditsSaved     bool     `json:"credits_saved,omitempty"`
	Errors           []string `json:"errors,omitempty"`
}

// BookAnalysis summarizes the company book for the analyze operation.
type BookAnalysis struct {
	TotalCompanies           int       `json:"total_companies"`
	CompaniesWithContacts    int       `json:"companies_with_contacts"`
	CompaniesWithoutContacts int       `json:"companies_without_contacts"`
	CompaniesWithoutWebsite  int       `json:"companies_without_website"`
	CompaniesMarkedExhausted int       `json:"companies_marked_no_apollo"`
	WithContacts             []Company `json:"with_contacts"`
	WithoutContacts          []Company `json:"without_contacts"`
	WithoutWebsite           []Company `json:"without_website"`
	MarkedExhausted          []Company `json:"marked_no_apollo"`
}
