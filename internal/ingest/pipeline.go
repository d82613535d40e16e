// Package ingest turns scraped job postings into Directory records: one
// account per distinct company, one job per posting, linked together.
package ingest

import (
	"context"
	"math/rand/v2"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/jobsync/internal/enrich"
	"github.com/sells-group/jobsync/internal/model"
	"github.com/sells-group/jobsync/internal/progress"
	"github.com/sells-group/jobsync/pkg/apollo"
	"github.com/sells-group/jobsync/pkg/zoho"
)

// Pipeline is the scrape-and-create flow. Postings are processed one at a
// time; company lookups within a run are served from a fresh name cache so a
// company appearing in many postings is resolved once.
type Pipeline struct {
	src     Source
	dir     zoho.Client
	profile apollo.Client
	tracker *progress.Tracker

	sleep func(ctx context.Context, d time.Duration) error
}

// NewPipeline wires the ingest flow. tracker may be nil when no asynchronous
// runs are needed.
func NewPipeline(src Source, dir zoho.Client, profile apollo.Client, tracker *progress.Tracker) *Pipeline {
	return &Pipeline{
		src:     src,
		dir:     dir,
		profile: profile,
		tracker: tracker,
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

// Run scrapes one query and writes the results to the Directory. Per-posting
// failures are logged and counted as skips; only the scrape itself or
// cancellation fail the run.
func (p *Pipeline) Run(ctx context.Context, query model.ScrapeQuery) (*model.IngestSummary, error) {
	return p.run(ctx, query, nil)
}

// RunAsync starts a background run tracked under jobID. The caller polls the
// tracker for completion; the run detaches from the caller's context.
func (p *Pipeline) RunAsync(jobID string, query model.ScrapeQuery) {
	p.tracker.Start(jobID)

	go func() {
		summary, err := p.run(context.Background(), query, func(u progress.Update) {
			p.tracker.Apply(jobID, u)
		})
		if err != nil {
			zap.L().Error("background scrape failed",
				zap.String("job_id", jobID),
				zap.Error(err),
			)
			p.tracker.Fail(jobID, err)
			return
		}
		p.tracker.Complete(jobID, *summary)
	}()
}

func (p *Pipeline) run(ctx context.Context, query model.ScrapeQuery, report func(progress.Update)) (*model.IngestSummary, error) {
	if report == nil {
		report = func(progress.Update) {}
	}

	zap.L().Info("starting scrape",
		zap.String("search_term", query.SearchTerm),
		zap.String("location", query.Location),
		zap.Int("results_wanted", query.ResultsWanted),
	)

	postings, err := p.src.Fetch(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: scrape failed")
	}

	summary := &model.IngestSummary{TotalJobsFound: len(postings)}
	total := len(postings)
	report(progress.Update{TotalJobs: &total})

	resolver := enrich.NewResolver(p.dir, p.profile, enrich.NewCache())

	for i, posting := range postings {
		if err := p.processPosting(ctx, resolver, posting, summary); err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(err, "ingest: run cancelled")
			}
			zap.L().Error("posting not ingested",
				zap.String("source_id", posting.SourceID),
				zap.String("company", posting.CompanyName),
				zap.Error(err),
			)
		}

		processed := i + 1
		report(progress.Update{
			ProcessedJobs: &processed,
			JobsCreated:   &summary.JobsCreated,
			JobsSkipped:   &summary.JobsSkipped,
		})

		// Courtesy delay between Directory writes.
		if i < len(postings)-1 {
			delay := 500*time.Millisecond + time.Duration(rand.Int64N(int64(time.Second)))
			if err := p.sleep(ctx, delay); err != nil {
				return nil, eris.Wrap(err, "ingest: run cancelled")
			}
		}
	}

	zap.L().Info("scrape complete",
		zap.Int("found", summary.TotalJobsFound),
		zap.Int("created", summary.JobsCreated),
		zap.Int("skipped", summary.JobsSkipped),
		zap.Int("new_companies", summary.NewCompaniesCreated),
	)
	return summary, nil
}

func (p *Pipeline) processPosting(ctx context.Context, resolver *enrich.Resolver, posting model.JobPosting, summary *model.IngestSummary) error {
	name := posting.CompanyName
	if name == "" {
		name = "Unknown Company"
	}

	accountID, resolution, err := resolver.FindOrCreate(ctx, name, posting.CompanyWebsite)
	if err != nil {
		summary.JobsSkipped++
		return err
	}
	switch resolution {
	case model.ResolutionCreatedNew:
		summary.NewCompaniesCreated++
	case model.ResolutionFoundExisting:
		summary.ExistingCompaniesUsed++
	}

	exists, err := p.dir.JobExists(ctx, posting.SourceID)
	if err != nil {
		summary.JobsSkipped++
		return err
	}
	if exists {
		zap.L().Debug("job already in directory",
			zap.String("source_id", posting.SourceID),
		)
		summary.JobsSkipped++
		return nil
	}

	if _, err := p.dir.CreateJob(ctx, jobFields(posting, accountID), accountID); err != nil {
		summary.JobsSkipped++
		return err
	}
	summary.JobsCreated++
	return nil
}

// jobFields maps a posting to a Directory job payload.
func jobFields(posting model.JobPosting, accountID string) map[string]any {
	fields := map[string]any{
		"Name":            posting.Title,
		"ID_Indeed":       posting.SourceID,
		"Location":        posting.Location,
		"Account":         map[string]any{"id": accountID},
		"Related_company": map[string]any{"id": accountID},
		"Date_Found":      time.Now().Format("2006-01-02"),
	}
	if posting.JobURL != "" {
		fields["Job_URL"] = posting.JobURL
	}
	if posting.DirectURL != "" {
		fields["Job_URL_Direct"] = posting.DirectURL
	}
	if posting.CompanyName != "" {
		fields["Company"] = posting.CompanyName
	}
	if posting.CompanyURL != "" {
		fields["Company_URL_Indeed"] = posting.CompanyURL
	}
	if posting.CompanyWebsite != "" {
		fields["Company_URL"] = posting.CompanyWebsite
	}
	if posting.Description != "" {
		fields["Description"] = truncateDescription(posting.Description, 1000)
	}
	return fields
}

// truncateDescription caps s at max bytes with a "..." suffix, backing up so
// the cut never lands inside a multi-byte rune.
func truncateDescription(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
