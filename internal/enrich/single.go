package enrich

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/jobsync/internal/model"
	"github.com/sells-group/jobsync/pkg/apollo"
)

// ErrNoDomain is returned when a website URL yields no usable domain.
var ErrNoDomain = eris.New("enrich: could not extract domain from website URL")

// EnrichParams is a single-company enrichment request.
type EnrichParams struct {
	CompanyID      string
	CompanyName    string
	Website        string
	MaxContacts    int
	FilterType     model.FilterType
	SkipDuplicates bool
	// Force bypasses both the existing-contact and the exhausted-flag
	// short circuits, spending search credits regardless.
	Force bool
}

// EnrichCompany enriches one named company on demand. Companies that already
// have contacts, or that are flagged exhausted, are skipped without spending
// a search call unless Force is set.
func (o *Orchestrator) EnrichCompany(ctx context.Context, p EnrichParams) (*model.EnrichResult, error) {
	if p.MaxContacts <= 0 {
		p.MaxContacts = 10
	}
	if p.FilterType == "" {
		p.FilterType = model.FilterAll
	}
	if err := p.FilterType.Validate(); err != nil {
		return nil, err
	}

	domain := ExtractDomain(p.Website)
	if domain == "" {
		return nil, ErrNoDomain
	}

	result := &model.EnrichResult{
		CompanyID:   p.CompanyID,
		CompanyName: p.CompanyName,
		Domain:      domain,
	}

	has, err := o.dir.AccountHasContacts(ctx, p.CompanyID)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: check existing contacts")
	}
	if has && !p.Force {
		result.Message = "company already has contacts, skipping search to save credits"
		result.ExistingContacts = 1
		result.CreditsSaved = true
		return result, nil
	}

	exhausted, err := o.dir.GetAccountExhausted(ctx, p.CompanyID)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: check exhausted flag")
	}
	if exhausted && !p.Force {
		result.Message = "company is flagged as having no enrichment-source contacts, skipping search"
		result.CreditsSaved = true
		return result, nil
	}

	if err := o.limiter.Admit(ctx); err != nil {
		return nil, err
	}

	people, err := o.src.SearchPeople(ctx, domain, p.MaxContacts, apollo.Filter(p.FilterType))
	if err != nil {
		return nil, eris.Wrap(err, "enrich: people search")
	}

	candidates := usableCandidates(people)
	result.ContactsFound = len(candidates)

	if len(candidates) == 0 {
		if err := o.dir.SetAccountExhausted(ctx, p.CompanyID, true); err != nil {
			zap.L().Warn("failed to flag account exhausted",
				zap.String("account_id", p.CompanyID),
				zap.Error(err),
			)
		} else {
			result.ApolloMarked = true
		}
		result.Message = "no contacts found for this domain, company flagged to skip future searches"
		return result, nil
	}

	for _, person := range candidates {
		if p.SkipDuplicates {
			exists, err := o.dir.ContactExists(ctx, person.Email, person.FirstName, person.LastName, p.CompanyID)
			if err != nil {
				// An unanswered duplicate check must not turn into a
				// duplicate create.
				result.ContactsSkipped++
				result.Errors = append(result.Errors,
					fmt.Sprintf("duplicate check failed for %s %s: %v", person.FirstName, person.LastName, err))
				continue
			}
			if exists {
				result.ContactsSkipped++
				zap.L().Debug("skipped duplicate contact",
					zap.String("name", person.FirstName+" "+person.LastName),
				)
				continue
			}
		}

		if _, err := o.dir.CreateContact(ctx, contactFields(person, p.CompanyID)); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("failed to create contact %s %s: %v", person.FirstName, person.LastName, err))
			continue
		}
		result.ContactsCreated++
	}

	zap.L().Info("single-company enrichment complete",
		zap.String("company", p.CompanyName),
		zap.Int("found", result.ContactsFound),
		zap.Int("created", result.ContactsCreated),
		zap.Int("skipped", result.ContactsSkipped),
	)
	return result, nil
}
