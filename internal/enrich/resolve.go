package enrich

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/jobsync/internal/model"
	"github.com/sells-group/jobsync/pkg/apollo"
	"github.com/sells-group/jobsync/pkg/zoho"
)

// Resolver maps a scraped company name to a Directory account id, creating
// the account when no match exists.
type Resolver struct {
	dir   zoho.Client
	src   apollo.Client
	cache *Cache
	now   func() time.Time
}

// NewResolver creates a resolver bound to one run's cache.
func NewResolver(dir zoho.Client, src apollo.Client, cache *Cache) *Resolver {
	return &Resolver{dir: dir, src: src, cache: cache, now: time.Now}
}

// FindOrCreate resolves a company name against the Directory.
// Cascade: run cache, exact name search, contains search with a
// case-insensitive exact confirm, then creation. Newly created accounts get
// a best-effort firmographic profile from the enrichment source when the
// website yields a domain.
func (r *Resolver) FindOrCreate(ctx context.Context, name, website string) (string, model.Resolution, error) {
	if id, ok := r.cache.Lookup(name); ok {
		return id, model.ResolutionFoundExisting, nil
	}

	account, err := r.dir.SearchAccountByName(ctx, name)
	if err != nil {
		return "", model.ResolutionCreationFailed, eris.Wrap(err, "enrich: resolve company")
	}
	if account != nil {
		zap.L().Debug("resolve: matched existing account",
			zap.String("name", name),
			zap.String("account_id", account.ID),
		)
		r.cache.Store(name, account.ID)
		return account.ID, model.ResolutionFoundExisting, nil
	}

	fields := map[string]any{
		"Account_Name":   name,
		"Account_Source": "Indeed",
		"Account_Type":   "COLD",
	}
	if website != "" {
		fields["Website"] = website
	}
	r.applyProfile(ctx, fields, website)

	id, err := r.dir.CreateAccount(ctx, fields)
	if err != nil {
		zap.L().Warn("resolve: account creation failed",
			zap.String("name", name),
			zap.Error(err),
		)
		return "", model.ResolutionCreationFailed, eris.Wrap(err, "enrich: create company")
	}

	zap.L().Info("resolve: created new account",
		zap.String("name", name),
		zap.String("account_id", id),
	)
	r.cache.Store(name, id)
	return id, model.ResolutionCreatedNew, nil
}

// applyProfile adds firmographic fields from the enrichment source to a
// pending account payload. Failures are logged and ignored: the account is
// created either way.
func (r *Resolver) applyProfile(ctx context.Context, fields map[string]any, website string) {
	domain := ExtractDomain(website)
	if domain == "" {
		return
	}

	org, err := r.src.EnrichOrganization(ctx, domain)
	if err != nil {
		zap.L().Warn("resolve: profile enrichment failed",
			zap.String("domain", domain),
			zap.Error(err),
		)
		return
	}
	if org == nil {
		return
	}

	if org.Phone != "" {
		fields["Phone"] = org.Phone
	}
	if org.LinkedInURL != "" {
		fields["Linkedin_Page"] = org.LinkedInURL
	}
	if org.FacebookURL != "" {
		fields["Facebook"] = org.FacebookURL
	}
	if org.TwitterURL != "" {
		fields["X_Twitter"] = org.TwitterURL
	}
	if org.Industry != "" {
		fields["Industry"] = org.Industry
	}
	if org.Employees > 0 {
		fields["Employees"] = org.Employees
	}
	if org.RevenueValue > 0 {
		fields["Annual_Revenue"] = org.RevenueValue
	}
	if url := org.OrgURL(); url != "" {
		fields["Apollo_URL"] = url
	}
	fields["Last_Enriched"] = r.now().Format("2006-01-02 15:04:05")
	fields["Data_Source"] = "Indeed + Apollo.io"
}
