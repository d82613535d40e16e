package enrich

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/jobsync/internal/model"
)

// Analyze inspects up to limit companies and buckets them by enrichment
// state: holding contacts, missing contacts, missing a website, or flagged
// exhausted. Companies without a website are not contact-probed.
func (o *Orchestrator) Analyze(ctx context.Context, limit int) (*model.BookAnalysis, error) {
	if limit <= 0 {
		limit = 100
	}

	analysis := &model.BookAnalysis{}
	page := 1
	for analysis.TotalCompanies < limit {
		// Paging is relative to per_page, so the page size must stay
		// fixed across iterations; the final page is trimmed locally.
		accounts, more, err := o.dir.ListAccounts(ctx, page, directoryPageSize)
		if err != nil {
			return nil, eris.Wrap(err, "enrich: analyze companies")
		}
		if len(accounts) == 0 {
			break
		}
		if remaining := limit - analysis.TotalCompanies; len(accounts) > remaining {
			accounts = accounts[:remaining]
		}

		for _, a := range accounts {
			company := model.Company{
				ID:        a.ID,
				Name:      a.Name,
				Website:   a.Website,
				Exhausted: bool(a.ApolloContact),
			}
			analysis.TotalCompanies++

			if company.Exhausted {
				analysis.CompaniesMarkedExhausted++
				analysis.MarkedExhausted = append(analysis.MarkedExhausted, company)
			}
			if company.Website == "" {
				analysis.CompaniesWithoutWebsite++
				analysis.WithoutWebsite = append(analysis.WithoutWebsite, company)
				continue
			}

			has, err := o.dir.AccountHasContacts(ctx, company.ID)
			if err != nil {
				return nil, eris.Wrap(err, "enrich: analyze contact probe")
			}
			if has {
				analysis.CompaniesWithContacts++
				analysis.WithContacts = append(analysis.WithContacts, company)
			} else {
				analysis.CompaniesWithoutContacts++
				analysis.WithoutContacts = append(analysis.WithoutContacts, company)
			}
		}

		if !more {
			break
		}
		page++
	}

	return analysis, nil
}
