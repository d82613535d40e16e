package model

import "time"

// RunStatus is the terminal state of one recorded chunk run.
type RunStatus string

const (
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunRecord is one persisted chunk-run log row. The drive command writes one
// per chunk so an interrupted run can resume from the last successful offset.
type RunRecord struct {
	ID        string     `json:"id"`
	SessionID string     `json:"session_id"`
	Offset    int        `json:"offset"`
	ChunkSize int        `json:"chunk_size"`
	Status    RunStatus  `json:"status"`
	Stats     ChunkStats `json:"stats"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// SessionSummary aggregates all recorded chunks of one session.
type SessionSummary struct {
	SessionID            string `json:"session_id"`
	ChunksRecorded       int    `json:"chunks_recorded"`
	ChunksFailed         int    `json:"chunks_failed"`
	LastOffset           int    `json:"last_offset"`
	CompaniesAnalyzed    int    `json:"companies_analyzed"`
	CompaniesEnriched    int    `json:"companies_enriched"`
	CompaniesSkipped     int    `json:"companies_skipped"`
	TotalContactsCreated int    `json:"total_contacts_created"`
}
