package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/jobsync/internal/model"
	"github.com/sells-group/jobsync/internal/resilience"
	"github.com/sells-group/jobsync/internal/store"
)

var driveCmd = &cobra.Command{
	Use:   "drive",
	Short: "Drive a full enrichment run, one chunk at a time",
	Long:  "Calls the enrich_companies_chunked endpoint in a loop until the eligible list is exhausted, recording each chunk so an interrupted run can resume.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		apiURL, _ := cmd.Flags().GetString("api-url")
		if apiURL == "" {
			apiURL = cfg.Drive.APIURL
		}
		if apiURL == "" {
			return eris.New("drive API URL is required (--api-url or JOBSYNC_DRIVE_API_URL)")
		}
		apiKey, _ := cmd.Flags().GetString("api-key")
		if apiKey == "" {
			apiKey = cfg.Drive.APIKey
		}

		sessionID, _ := cmd.Flags().GetString("session")
		if sessionID == "" {
			sessionID = "daily-" + time.Now().Format("20060102-150405")
		}
		resume, _ := cmd.Flags().GetBool("resume")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		offset := 0
		if resume {
			next, ok, err := st.NextOffset(ctx, sessionID)
			if err != nil {
				return eris.Wrap(err, "drive: resume offset")
			}
			if ok {
				offset = next
				zap.L().Info("resuming session",
					zap.String("session_id", sessionID),
					zap.Int("offset", offset),
				)
			}
		}

		d := &driver{
			apiURL:    apiURL,
			apiKey:    apiKey,
			sessionID: sessionID,
			chunkSize: cfg.Drive.ChunkSize,
			contacts:  cfg.Drive.ContactsPerCompany,
			filter:    cfg.Drive.FilterType,
			store:     st,
			breaker:   resilience.NewBreaker(cfg.Drive.MaxConsecutiveFailures),
			retry: resilience.RetryConfig{
				MaxAttempts: cfg.Drive.MaxRetries,
				Delay:       time.Duration(cfg.Drive.RetryDelaySecs) * time.Second,
				OnRetry:     resilience.RetryLogger("jobsync", "process_chunk"),
			},
			http: &http.Client{
				Timeout: time.Duration(cfg.Drive.ChunkTimeoutSecs) * time.Second,
			},
		}

		return d.run(ctx, offset)
	},
}

func init() {
	driveCmd.Flags().String("api-url", "", "base URL of the jobsync API")
	driveCmd.Flags().String("api-key", "", "API key for the jobsync API")
	driveCmd.Flags().String("session", "", "session id (default daily-<timestamp>)")
	driveCmd.Flags().Bool("resume", false, "resume from the last recorded offset of the session")
	rootCmd.AddCommand(driveCmd)
}

// driver loops the chunked endpoint until the eligible list runs out or too
// many consecutive chunks fail.
type driver struct {
	apiURL    string
	apiKey    string
	sessionID string
	chunkSize int
	contacts  int
	filter    string
	store     store.Store
	breaker   *resilience.Breaker
	retry     resilience.RetryConfig
	http      *http.Client

	totalCompanies int
	totalEnriched  int
	totalSkipped   int
	totalContacts  int
}

type chunkResponse struct {
	Success   bool             `json:"success"`
	SessionID string           `json:"session_id"`
	Results   model.ChunkStats `json:"results"`
	ChunkInfo model.ChunkInfo  `json:"chunk_info"`
	Error     string           `json:"error"`
}

func (d *driver) run(ctx context.Context, offset int) error {
	start := time.Now()
	zap.L().Info("starting enrichment drive",
		zap.String("session_id", d.sessionID),
		zap.Int("chunk_size", d.chunkSize),
		zap.Int("offset", offset),
	)

	for {
		if err := d.breaker.Allow(); err != nil {
			d.logSummary(start)
			return eris.Wrap(err, "drive")
		}

		resp, err := d.processChunk(ctx, offset)
		d.breaker.Record(err)

		if err != nil {
			if ctx.Err() != nil {
				d.logSummary(start)
				return err
			}
			zap.L().Error("chunk failed",
				zap.Int("offset", offset),
				zap.Int("consecutive_failures", d.breaker.Failures()),
				zap.Error(err),
			)
			d.record(ctx, offset, model.RunStatusFailed, model.ChunkStats{}, err)
			// Skip past the bad chunk rather than hammering it.
			offset += d.chunkSize
			continue
		}

		d.totalCompanies += resp.Results.CompaniesAnalyzed
		d.totalEnriched += resp.Results.CompaniesEnriched
		d.totalSkipped += resp.Results.CompaniesSkipped
		d.totalContacts += resp.Results.TotalContactsCreated
		d.record(ctx, offset, model.RunStatusComplete, resp.Results, nil)

		zap.L().Info("chunk complete",
			zap.Int("offset", offset),
			zap.Float64("progress_pct", resp.ChunkInfo.ProgressPercentage),
			zap.Int("companies", resp.Results.CompaniesAnalyzed),
			zap.Int("enriched", resp.Results.CompaniesEnriched),
			zap.Int("total_enriched", d.totalEnriched),
		)

		if !resp.ChunkInfo.HasMore {
			break
		}
		if resp.ChunkInfo.NextOffset != nil {
			offset = *resp.ChunkInfo.NextOffset
		} else {
			offset += d.chunkSize
		}

		select {
		case <-ctx.Done():
			d.logSummary(start)
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}

	d.logSummary(start)
	return nil
}

// processChunk posts one chunk request, retrying transient failures with a
// fixed delay.
func (d *driver) processChunk(ctx context.Context, offset int) (*chunkResponse, error) {
	return resilience.DoVal(ctx, d.retry, func(ctx context.Context) (*chunkResponse, error) {
		payload, err := json.Marshal(model.ChunkRequest{
			ChunkSize:          d.chunkSize,
			StartOffset:        offset,
			ContactsPerCompany: d.contacts,
			FilterType:         model.FilterType(d.filter),
			SessionID:          d.sessionID,
		})
		if err != nil {
			return nil, eris.Wrap(err, "drive: marshal chunk request")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			d.apiURL+"/enrich_companies_chunked", bytes.NewReader(payload))
		if err != nil {
			return nil, eris.Wrap(err, "drive: build request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-Key", d.apiKey)

		httpResp, err := d.http.Do(req)
		if err != nil {
			return nil, resilience.NewTransientError(eris.Wrap(err, "drive: post chunk"), 0)
		}
		defer httpResp.Body.Close()

		body, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return nil, resilience.NewTransientError(eris.Wrap(err, "drive: read response"), 0)
		}

		if httpResp.StatusCode != http.StatusOK {
			err := eris.Errorf("drive: chunk request failed: HTTP %d: %s", httpResp.StatusCode, body)
			if resilience.IsTransientHTTPStatus(httpResp.StatusCode) {
				return nil, resilience.NewTransientError(err, httpResp.StatusCode)
			}
			return nil, err
		}

		var resp chunkResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, eris.Wrap(err, "drive: decode response")
		}
		if !resp.Success {
			return nil, eris.Errorf("drive: chunk rejected: %s", resp.Error)
		}
		return &resp, nil
	})
}

func (d *driver) record(ctx context.Context, offset int, status model.RunStatus, stats model.ChunkStats, cause error) {
	rec := model.RunRecord{
		SessionID: d.sessionID,
		Offset:    offset,
		ChunkSize: d.chunkSize,
		Status:    status,
		Stats:     stats,
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	if err := d.store.RecordChunk(ctx, rec); err != nil {
		zap.L().Warn("failed to record chunk run", zap.Int("offset", offset), zap.Error(err))
	}
}

func (d *driver) logSummary(start time.Time) {
	elapsed := time.Since(start)
	perCompany := time.Duration(0)
	if d.totalCompanies > 0 {
		perCompany = elapsed / time.Duration(d.totalCompanies)
	}
	zap.L().Info("enrichment drive finished",
		zap.String("session_id", d.sessionID),
		zap.Int("companies_processed", d.totalCompanies),
		zap.Int("companies_enriched", d.totalEnriched),
		zap.Int("companies_skipped", d.totalSkipped),
		zap.Int("contacts_created", d.totalContacts),
		zap.String("elapsed", elapsed.Round(time.Second).String()),
		zap.String("avg_per_company", perCompany.Round(time.Millisecond).String()),
	)
	fmt.Printf("Session %s: %d companies, %d enriched, %d contacts created in %s\n",
		d.sessionID, d.totalCompanies, d.totalEnriched, d.totalContacts, elapsed.Round(time.Second))
}
