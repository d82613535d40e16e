package model

// JobPosting is one scraped posting before it is written to the Directory.
type JobPosting struct {
	SourceID       string `json:"id"`
	Title          string `json:"title"`
	CompanyName    string `json:"company"`
	Location       string `json:"location"`
	JobURL         string `json:"job_url"`
	DirectURL      string `json:"job_url_direct"`
	CompanyURL     string `json:"company_url"`
	CompanyWebsite string `json:"company_url_direct"`
	DatePosted     string `json:"date_posted"`
	Description    string `json:"description"`
}

// ScrapeQuery describes one job-board search.
type ScrapeQuery struct {
	SearchTerm    string `json:"search_term"`
	Location      string `json:"location"`
	ResultsWanted int    `json:"results_wanted"`
	HoursOld      int    `json:"hours_old"`
	Country       string `json:"country"`
}

// IngestSummary aggregates one scrape-and-create run.
type IngestSummary struct {
	TotalJobsFound        int `json:"total_jobs_found"`
	JobsCreated           int `json:"jobs_created"`
	JobsSkipped           int `json:"jobs_skipped"`
	ExistingCompaniesUsed int `json:"existing_companies_used"`
	NewCompaniesCreated   int `json:"new_companies_created"`
}
