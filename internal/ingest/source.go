package ingest

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/jobsync/internal/model"
	"github.com/sells-group/jobsync/pkg/jobspy"
)

// Source is the external job-board scraper boundary.
type Source interface {
	Fetch(ctx context.Context, query model.ScrapeQuery) ([]model.JobPosting, error)
}

// jobspySource adapts the scraping-service client to the Source boundary.
type jobspySource struct {
	client jobspy.Client
}

// NewJobSpySource wraps a scraping-service client as a Source.
func NewJobSpySource(client jobspy.Client) Source {
	return &jobspySource{client: client}
}

func (s *jobspySource) Fetch(ctx context.Context, query model.ScrapeQuery) ([]model.JobPosting, error) {
	if query.ResultsWanted <= 0 {
		query.ResultsWanted = 50
	}
	if query.HoursOld <= 0 {
		query.HoursOld = 1440
	}
	if query.Country == "" {
		query.Country = "USA"
	}

	postings, err := s.client.Search(ctx, jobspy.SearchRequest{
		SearchTerm:    query.SearchTerm,
		Location:      query.Location,
		ResultsWanted: query.ResultsWanted,
		HoursOld:      query.HoursOld,
		Country:       query.Country,
	})
	if err != nil {
		return nil, eris.Wrap(err, "ingest: fetch postings")
	}

	out := make([]model.JobPosting, 0, len(postings))
	for _, p := range postings {
		out = append(out, model.JobPosting{
			SourceID:       p.ID,
			Title:          p.Title,
			CompanyName:    p.Company,
			Location:       p.Location,
			JobURL:         p.JobURL,
			DirectURL:      p.JobURLDirect,
			CompanyURL:     p.CompanyURL,
			CompanyWebsite: p.CompanyWebsite,
			DatePosted:     p.DatePosted,
			Description:    p.Description,
		})
	}
	return out, nil
}
