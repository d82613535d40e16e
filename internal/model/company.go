package model

// Company is a Directory account record as the enrichment pipeline sees it.
type Company struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Website string `json:"website"`

	// Domain is derived from Website, never stored in the Directory.
	Domain string `json:"domain,omitempty"`

	// Exhausted mirrors the Apollo_Contact flag on the Directory record:
	// true means a previous search returned zero candidates, so the
	// company is skipped by eligibility scans until the flag is cleared.
	Exhausted bool `json:"exhausted"`
}

// CompanyProfile holds best-effort firmographic data from the enrichment
// source, applied when a company record is first created.
type CompanyProfile struct {
	Phone       string `json:"phone,omitempty"`
	LinkedInURL string `json:"linkedin_url,omitempty"`
	FacebookURL string `json:"facebook_url,omitempty"`
	TwitterURL  string `json:"twitter_url,omitempty"`
	Industry    string `json:"industry,omitempty"`
	Employees   int    `json:"estimated_num_employees,omitempty"`
	Revenue     string `json:"annual_revenue,omitempty"`
	ApolloID    string `json:"apollo_id,omitempty"`
	ApolloURL   string `json:"apollo_url,omitempty"`
}

// Resolution classifies the outcome of resolving a scraped company name
// against the Directory.
type Resolution string

const (
	ResolutionFoundExisting  Resolution = "found_existing"
	ResolutionCreatedNew     Resolution = "created_new"
	ResolutionCreationFailed Resolution = "creation_failed"
)
