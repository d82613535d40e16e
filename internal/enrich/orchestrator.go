package enrich

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/jobsync/internal/model"
	"github.com/sells-group/jobsync/pkg/apollo"
	"github.com/sells-group/jobsync/pkg/zoho"
)

// departmentFieldLimit is the Directory's Department field size. Candidates
// whose joined department list exceeds it cannot be stored and are dropped.
const departmentFieldLimit = 50

// Admitter gates enrichment-source calls against the shared rate budget.
type Admitter interface {
	Admit(ctx context.Context) error
}

// Config holds the orchestrator's tunable parameters.
type Config struct {
	DefaultChunkSize     int
	DefaultContacts      int
	DefaultFilter        model.FilterType
	CompanyDelay         time.Duration
	MiniBatchDelay       time.Duration
	MiniBatchContacts    int
	MiniBatchMaxSize     int
	MiniBatchDefaultSize int
}

// DefaultConfig mirrors the service's shipped tuning.
func DefaultConfig() Config {
	return Config{
		DefaultChunkSize:     10,
		DefaultContacts:      3,
		DefaultFilter:        model.FilterManagers,
		CompanyDelay:         500 * time.Millisecond,
		MiniBatchDelay:       200 * time.Millisecond,
		MiniBatchContacts:    2,
		MiniBatchMaxSize:     10,
		MiniBatchDefaultSize: 5,
	}
}

// Orchestrator drives bulk enrichment one bounded chunk at a time. It is
// deliberately sequential within a chunk: parallel companies would race the
// search-then-create duplicate checks and burn through the rate budget.
type Orchestrator struct {
	dir     zoho.Client
	src     apollo.Client
	limiter Admitter
	scanner *Scanner
	cfg     Config

	sleep func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator wires the chunk engine.
func NewOrchestrator(dir zoho.Client, src apollo.Client, limiter Admitter, scanner *Scanner, cfg Config) *Orchestrator {
	return &Orchestrator{
		dir:     dir,
		src:     src,
		limiter: limiter,
		scanner: scanner,
		cfg:     cfg,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ProcessChunk enriches the slice [StartOffset, StartOffset+ChunkSize) of the
// session's eligible-company list and reports a continuation. Per-company
// failures are recorded in the result and never abort the chunk; only a
// session conflict, the daily rate budget, or cancellation abort the call.
func (o *Orchestrator) ProcessChunk(ctx context.Context, req model.ChunkRequest) (*model.ChunkStats, *model.ChunkInfo, error) {
	if req.ChunkSize <= 0 {
		req.ChunkSize = o.cfg.DefaultChunkSize
	}
	if req.ContactsPerCompany <= 0 {
		req.ContactsPerCompany = o.cfg.DefaultContacts
	}
	if req.FilterType == "" {
		req.FilterType = o.cfg.DefaultFilter
	}
	if err := req.FilterType.Validate(); err != nil {
		return nil, nil, err
	}
	if req.StartOffset < 0 {
		req.StartOffset = 0
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	zap.L().Info("processing enrichment chunk",
		zap.String("session_id", req.SessionID),
		zap.Int("offset", req.StartOffset),
		zap.Int("chunk_size", req.ChunkSize),
		zap.String("filter", string(req.FilterType)),
	)

	slice, err := o.scanner.Eligible(ctx, req.SessionID, req.StartOffset, req.ChunkSize)
	if err != nil {
		return nil, nil, err
	}

	stats := &model.ChunkStats{
		CompaniesAnalyzed: len(slice.Companies),
		Companies:         make([]model.CompanyResult, 0, len(slice.Companies)),
	}

	for i, company := range slice.Companies {
		result, err := o.enrichOne(ctx, company, req.ContactsPerCompany, req.FilterType)
		if err != nil {
			return nil, nil, err
		}
		stats.Companies = append(stats.Companies, result)

		switch result.Status {
		case model.CompanyStatusEnriched:
			stats.CompaniesEnriched++
			stats.TotalContactsCreated += result.ContactsCreated
		default:
			stats.CompaniesSkipped++
		}

		if i < len(slice.Companies)-1 {
			if err := o.sleep(ctx, o.cfg.CompanyDelay); err != nil {
				return nil, nil, eris.Wrap(err, "enrich: chunk cancelled")
			}
		}
	}

	info := &model.ChunkInfo{
		Offset:             req.StartOffset,
		ChunkSize:          req.ChunkSize,
		CompaniesProcessed: len(slice.Companies),
		TotalCompanies:     slice.Known,
		TotalIsEstimate:    !slice.Complete,
		HasMore:            slice.Known > req.StartOffset+req.ChunkSize,
		ProgressPercentage: progress(req.StartOffset, len(slice.Companies), slice.Known),
	}
	if info.HasMore {
		next := req.StartOffset + req.ChunkSize
		info.NextOffset = &next
	}

	zap.L().Info("chunk complete",
		zap.String("session_id", req.SessionID),
		zap.Int("processed", info.CompaniesProcessed),
		zap.Int("enriched", stats.CompaniesEnriched),
		zap.Int("contacts_created", stats.TotalContactsCreated),
		zap.Bool("has_more", info.HasMore),
	)
	return stats, info, nil
}

// progress reports percent complete against the known eligible total,
// rounded to two decimals. The total is exact once the scan finishes and a
// lower bound before that.
func progress(offset, processed, total int) float64 {
	if total == 0 {
		return 100
	}
	pct := 100 * float64(offset+processed) / float64(total)
	if pct > 100 {
		pct = 100
	}
	return math.Round(pct*100) / 100
}

// enrichOne processes one company. The returned error is reserved for
// run-fatal conditions (daily budget, cancellation); everything else lands
// in the CompanyResult.
func (o *Orchestrator) enrichOne(ctx context.Context, company model.Company, perCompany int, filter model.FilterType) (model.CompanyResult, error) {
	result := model.CompanyResult{
		ID:      company.ID,
		Name:    company.Name,
		Website: company.Website,
	}

	if company.Website == "" {
		result.Status = model.CompanyStatusSkipped
		result.Reason = model.SkipReasonNoWebsite
		return result, nil
	}

	domain := ExtractDomain(company.Website)
	if domain == "" {
		result.Status = model.CompanyStatusSkipped
		result.Reason = model.SkipReasonInvalidDomain
		return result, nil
	}

	if err := o.limiter.Admit(ctx); err != nil {
		// Daily budget exhaustion and cancellation stop the whole chunk.
		return result, err
	}

	people, err := o.src.SearchPeople(ctx, domain, perCompany, apollo.Filter(filter))
	if err != nil {
		zap.L().Error("people search failed",
			zap.String("company", company.Name),
			zap.String("domain", domain),
			zap.Error(err),
		)
		result.Status = model.CompanyStatusError
		result.Error = err.Error()
		return result, nil
	}

	candidates := usableCandidates(people)
	result.ContactsFound = len(candidates)

	if len(candidates) == 0 {
		if err := o.dir.SetAccountExhausted(ctx, company.ID, true); err != nil {
			zap.L().Warn("failed to flag account exhausted",
				zap.String("account_id", company.ID),
				zap.Error(err),
			)
		} else {
			result.ApolloMarked = true
		}
		result.Status = model.CompanyStatusNoContacts
		return result, nil
	}

	for _, p := range candidates {
		exists, err := o.dir.ContactExists(ctx, p.Email, p.FirstName, p.LastName, company.ID)
		if err != nil {
			// Without a trustworthy answer, creating could duplicate an
			// existing contact. Skip the candidate.
			zap.L().Warn("contact existence check failed, skipping candidate",
				zap.String("email", p.Email),
				zap.Error(err),
			)
			result.ContactsSkipped++
			continue
		}
		if exists {
			result.ContactsSkipped++
			continue
		}

		if _, err := o.dir.CreateContact(ctx, contactFields(p, company.ID)); err != nil {
			zap.L().Error("contact creation failed",
				zap.String("company", company.Name),
				zap.String("name", p.FirstName+" "+p.LastName),
				zap.Error(err),
			)
			continue
		}
		result.ContactsCreated++
	}

	result.Status = model.CompanyStatusEnriched
	return result, nil
}

// usableCandidates drops people whose joined department list would overflow
// the Directory's Department field.
func usableCandidates(people []apollo.Person) []apollo.Person {
	out := people[:0:0]
	for _, p := range people {
		if len(strings.Join(p.Departments, ", ")) > departmentFieldLimit {
			zap.L().Warn("dropping candidate, department list too long",
				zap.String("name", p.FirstName+" "+p.LastName),
			)
			continue
		}
		out = append(out, p)
	}
	return out
}

// contactFields maps a person to a Directory contact payload. Empty values
// are dropped by the client before the call.
func contactFields(p apollo.Person, accountID string) map[string]any {
	return map[string]any{
		"First_Name":      p.FirstName,
		"Last_Name":       p.LastName,
		"Email":           p.Email,
		"Account_Name":    map[string]any{"id": accountID},
		"Title":           p.Title,
		"Phone":           p.Phone,
		"LinkedIn":        p.LinkedInURL,
		"Mailing_City":    p.City,
		"Mailing_State":   p.State,
		"Mailing_Country": p.Country,
		"Department":      strings.Join(p.Departments, ", "),
		"Lead_Source":     "Apollo.io",
		"Apollo_ID":       p.ID,
		"Apollo_URL":      p.PersonURL(),
	}
}
