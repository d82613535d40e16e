// Package progress tracks the status of background jobs so callers can poll
// completion by an opaque job id.
package progress

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/jobsync/internal/model"
)

// ErrUnknownJob is returned for job ids the tracker has never seen or has
// already pruned.
var ErrUnknownJob = eris.New("progress: unknown job id")

// State is a job's lifecycle phase. Processing jobs move to exactly one of
// the two terminal states.
type State string

const (
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateError      State = "error"
)

// Job is a snapshot of one tracked background job.
type Job struct {
	ID            string               `json:"job_id"`
	State         State                `json:"status"`
	StartedAt     time.Time            `json:"start_time"`
	EndedAt       *time.Time           `json:"end_time,omitempty"`
	TotalJobs     int                  `json:"total_jobs,omitempty"`
	ProcessedJobs int                  `json:"processed_jobs,omitempty"`
	JobsCreated   int                  `json:"jobs_created,omitempty"`
	JobsSkipped   int                  `json:"jobs_skipped,omitempty"`
	Summary       *model.IngestSummary `json:"summary,omitempty"`
	Error         string               `json:"error,omitempty"`
}

// Update mutates the live counters of a processing job.
type Update struct {
	TotalJobs     *int
	ProcessedJobs *int
	JobsCreated   *int
	JobsSkipped   *int
}

// Tracker is a process-wide registry of background jobs. Each worker writes
// only its own entry, but the map itself is shared, so all access goes
// through the mutex. Entries accumulate until Prune is called.
type Tracker struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	now  func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		jobs: make(map[string]*Job),
		now:  time.Now,
	}
}

// Start registers a new job in the processing state.
func (t *Tracker) Start(jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[jobID] = &Job{
		ID:        jobID,
		State:     StateProcessing,
		StartedAt: t.now(),
	}
}

// Apply updates a processing job's counters. Updates to unknown or already
// terminal jobs are dropped.
func (t *Tracker) Apply(jobID string, u Update) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[jobID]
	if !ok || job.State != StateProcessing {
		return
	}
	if u.TotalJobs != nil {
		job.TotalJobs = *u.TotalJobs
	}
	if u.ProcessedJobs != nil {
		job.ProcessedJobs = *u.ProcessedJobs
	}
	if u.JobsCreated != nil {
		job.JobsCreated = *u.JobsCreated
	}
	if u.JobsSkipped != nil {
		job.JobsSkipped = *u.JobsSkipped
	}
}

// Complete moves a job to the completed state with its final summary.
func (t *Tracker) Complete(jobID string, summary model.IngestSummary) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[jobID]
	if !ok {
		return
	}
	end := t.now()
	job.State = StateCompleted
	job.EndedAt = &end
	job.Summary = &summary
}

// Fail moves a job to the error state.
func (t *Tracker) Fail(jobID string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[jobID]
	if !ok {
		return
	}
	end := t.now()
	job.State = StateError
	job.EndedAt = &end
	if err != nil {
		job.Error = err.Error()
	}
}

// Get returns a copy of the job's current state. The copy never aliases
// tracker-internal memory, so callers can serialize it without holding any
// lock.
func (t *Tracker) Get(jobID string) (Job, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	job, ok := t.jobs[jobID]
	if !ok {
		return Job{}, ErrUnknownJob
	}
	snapshot := *job
	if job.EndedAt != nil {
		end := *job.EndedAt
		snapshot.EndedAt = &end
	}
	if job.Summary != nil {
		summary := *job.Summary
		snapshot.Summary = &summary
	}
	return snapshot, nil
}

// Prune drops terminal jobs that ended before cutoff and reports how many
// were removed. Processing jobs are never pruned.
func (t *Tracker) Prune(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for id, job := range t.jobs {
		if job.State == StateProcessing || job.EndedAt == nil {
			continue
		}
		if job.EndedAt.Before(cutoff) {
			delete(t.jobs, id)
			removed++
		}
	}
	return removed
}
