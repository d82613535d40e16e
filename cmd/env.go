package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/jobsync/internal/enrich"
	"github.com/sells-group/jobsync/internal/ingest"
	"github.com/sells-group/jobsync/internal/model"
	"github.com/sells-group/jobsync/internal/progress"
	"github.com/sells-group/jobsync/internal/ratelimit"
	"github.com/sells-group/jobsync/internal/store"
	"github.com/sells-group/jobsync/pkg/apollo"
	"github.com/sells-group/jobsync/pkg/jobspy"
	"github.com/sells-group/jobsync/pkg/zoho"
)

// appEnv holds the wired service collaborators shared by the commands.
type appEnv struct {
	Dir          zoho.Client
	People       apollo.Client
	Limiter      *ratelimit.Limiter
	Orchestrator *enrich.Orchestrator
	Tracker      *progress.Tracker
	Pipeline     *ingest.Pipeline
}

func initEnv(ctx context.Context) (*appEnv, error) {
	if cfg.Zoho.ClientID == "" || cfg.Zoho.ClientSecret == "" || cfg.Zoho.RefreshToken == "" {
		return nil, eris.New("zoho credentials are required (JOBSYNC_ZOHO_CLIENT_ID, JOBSYNC_ZOHO_CLIENT_SECRET, JOBSYNC_ZOHO_REFRESH_TOKEN)")
	}
	if cfg.Apollo.Key == "" {
		return nil, eris.New("apollo API key is required (JOBSYNC_APOLLO_KEY)")
	}

	tokens := zoho.NewRefreshTokenSource(
		cfg.Zoho.AccountsURL,
		cfg.Zoho.ClientID,
		cfg.Zoho.ClientSecret,
		cfg.Zoho.RefreshToken,
	)
	dir := zoho.NewClient(tokens,
		zoho.WithBaseURL(cfg.Zoho.BaseURL),
		zoho.WithRateLimit(cfg.Zoho.RPS),
	)

	people := apollo.NewClient(cfg.Apollo.Key, apollo.WithBaseURL(cfg.Apollo.BaseURL))

	limiter := ratelimit.New(ratelimit.Config{
		PerMinute: cfg.RateLimit.PerMinute,
		PerHour:   cfg.RateLimit.PerHour,
		PerDay:    cfg.RateLimit.PerDay,
	})

	scanner := enrich.NewScanner(dir, time.Duration(cfg.Enrich.SessionTTLMins)*time.Minute)

	enrichCfg := enrich.DefaultConfig()
	if cfg.Enrich.ChunkSize > 0 {
		enrichCfg.DefaultChunkSize = cfg.Enrich.ChunkSize
	}
	if cfg.Enrich.ContactsPerCompany > 0 {
		enrichCfg.DefaultContacts = cfg.Enrich.ContactsPerCompany
	}
	if cfg.Enrich.FilterType != "" {
		enrichCfg.DefaultFilter = model.FilterType(cfg.Enrich.FilterType)
	}
	if cfg.Enrich.CompanyDelayMS > 0 {
		enrichCfg.CompanyDelay = time.Duration(cfg.Enrich.CompanyDelayMS) * time.Millisecond
	}

	orch := enrich.NewOrchestrator(dir, people, limiter, scanner, enrichCfg)

	scraper := jobspy.NewClient(cfg.Ingest.ScraperKey, cfg.Ingest.ScraperURL)
	tracker := progress.NewTracker()
	pipeline := ingest.NewPipeline(ingest.NewJobSpySource(scraper), dir, people, tracker)

	return &appEnv{
		Dir:          dir,
		People:       people,
		Limiter:      limiter,
		Orchestrator: orch,
		Tracker:      tracker,
		Pipeline:     pipeline,
	}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DSN
		if dsn == "" {
			dsn = "jobsync.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}
