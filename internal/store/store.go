// Package store persists the chunk-run log. The drive loop records one row
// per processed chunk so an interrupted session can resume from the last
// successful offset.
package store

import (
	"context"

	"github.com/sells-group/jobsync/internal/model"
)

// RunFilter specifies criteria for listing recorded chunk runs.
type RunFilter struct {
	SessionID string          `json:"session_id,omitempty"`
	Status    model.RunStatus `json:"status,omitempty"`
	Limit     int             `json:"limit,omitempty"`
	Offset    int             `json:"offset,omitempty"`
}

// Store defines the run-log persistence interface.
type Store interface {
	// RecordChunk appends one chunk-run row.
	RecordChunk(ctx context.Context, record model.RunRecord) error

	// NextOffset returns the offset after the session's furthest successful
	// chunk, for resumption. ok is false when the session has no complete
	// chunks recorded.
	NextOffset(ctx context.Context, sessionID string) (offset int, ok bool, err error)

	// ListRuns returns recorded chunk runs, newest first.
	ListRuns(ctx context.Context, filter RunFilter) ([]model.RunRecord, error)

	// SessionSummary aggregates all recorded chunks of one session.
	SessionSummary(ctx context.Context, sessionID string) (*model.SessionSummary, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

func summarize(sessionID string, records []model.RunRecord) *model.SessionSummary {
	summary := &model.SessionSummary{SessionID: sessionID}
	for _, r := range records {
		summary.ChunksRecorded++
		if r.Status == model.RunStatusFailed {
			summary.ChunksFailed++
			continue
		}
		if next := r.Offset + r.ChunkSize; next > summary.LastOffset {
			summary.LastOffset = next
		}
		summary.CompaniesAnalyzed += r.Stats.CompaniesAnalyzed
		summary.CompaniesEnriched += r.Stats.CompaniesEnriched
		summary.CompaniesSkipped += r.Stats.CompaniesSkipped
		summary.TotalContactsCreated += r.Stats.TotalContactsCreated
	}
	return summary
}
