package model

// Candidate is a transient person result from the enrichment source. It is
// checked against the Directory and either becomes a Contact or is discarded;
// it is never persisted directly.
type Candidate struct {
	ApolloID    string   `json:"apollo_id"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	Email       string   `json:"email,omitempty"`
	Title       string   `json:"title,omitempty"`
	Seniority   string   `json:"seniority,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	LinkedInURL string   `json:"linkedin_url,omitempty"`
	OrgName     string   `json:"organization_name,omitempty"`
	OrgID       string   `json:"organization_id,omitempty"`
	Departments []string `json:"departments,omitempty"`
	City        string   `json:"city,omitempty"`
	State       string   `json:"state,omitempty"`
	Country     string   `json:"country,omitempty"`
	ApolloURL   string   `json:"apollo_person_url,omitempty"`
}

// FullName returns the candidate's display name.
func (c Candidate) FullName() string {
	return c.FirstName + " " + c.LastName
}
