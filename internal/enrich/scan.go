package enrich

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/jobsync/internal/model"
	"github.com/sells-group/jobsync/pkg/zoho"
)

// ErrSessionBusy is returned when a chunk call arrives for a session that is
// still processing a previous chunk. Callers must serialize calls per
// session; concurrent calls would double-process the same offset range.
var ErrSessionBusy = eris.New("enrich: session is already processing a chunk")

// directoryPageSize is the Directory's maximum listing page.
const directoryPageSize = 200

// scanState is the cached progress of one session's eligibility scan.
// eligible grows monotonically as Directory pages are consumed; nextPage is
// the first unread page. Once done is set the list is the complete eligible
// set for this session's view of the Directory.
type scanState struct {
	busy     bool
	eligible []model.Company
	nextPage int
	done     bool
	lastUsed time.Time
}

// Slice is one served portion of the eligible-company list.
type Slice struct {
	Companies []model.Company
	// Known is how many eligible companies the scan has seen so far. Exact
	// once Complete is true, otherwise a lower bound.
	Known int
	// Complete reports that the Directory has been fully scanned, making
	// Known the true eligible total.
	Complete bool
}

// Scanner derives the ordered list of companies eligible for enrichment:
// not flagged exhausted and with no existing contact. Scan progress is
// cached per session so sequential chunk calls with increasing offsets do
// O(chunkSize) new Directory work instead of rescanning from page one.
type Scanner struct {
	dir zoho.Client
	ttl time.Duration

	mu       sync.Mutex
	sessions map[string]*scanState
	now      func() time.Time
}

// NewScanner creates a scanner. Sessions idle longer than ttl are dropped.
func NewScanner(dir zoho.Client, ttl time.Duration) *Scanner {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Scanner{
		dir:      dir,
		ttl:      ttl,
		sessions: make(map[string]*scanState),
		now:      time.Now,
	}
}

// acquire locks the session for one chunk call, creating it if unknown.
func (s *Scanner) acquire(sessionID string) (*scanState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, st := range s.sessions {
		if !st.busy && now.Sub(st.lastUsed) > s.ttl {
			delete(s.sessions, id)
		}
	}

	st, ok := s.sessions[sessionID]
	if !ok {
		st = &scanState{nextPage: 1}
		s.sessions[sessionID] = st
	}
	if st.busy {
		return nil, ErrSessionBusy
	}
	st.busy = true
	st.lastUsed = now
	return st, nil
}

func (s *Scanner) release(st *scanState) {
	s.mu.Lock()
	st.busy = false
	st.lastUsed = s.now()
	s.mu.Unlock()
}

// Sessions reports how many session scans are currently cached.
func (s *Scanner) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Eligible returns the slice [offset, offset+size) of the session's
// eligible-company list, extending the underlying Directory scan just far
// enough to serve it plus one lookahead entry so the caller can tell whether
// more work remains. It fails with ErrSessionBusy if the session is mid-call.
func (s *Scanner) Eligible(ctx context.Context, sessionID string, offset, size int) (*Slice, error) {
	st, err := s.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer s.release(st)

	// One entry past the slice end decides has_more without a full scan.
	if err := s.extend(ctx, st, offset+size+1); err != nil {
		return nil, err
	}

	result := &Slice{Known: len(st.eligible), Complete: st.done}
	if offset < len(st.eligible) {
		end := min(offset+size, len(st.eligible))
		result.Companies = append([]model.Company(nil), st.eligible[offset:end]...)
	}
	return result, nil
}

// extend consumes Directory pages until at least want eligible companies are
// cached or the Directory is exhausted.
func (s *Scanner) extend(ctx context.Context, st *scanState, want int) error {
	for !st.done && len(st.eligible) < want {
		accounts, more, err := s.dir.ListAccounts(ctx, st.nextPage, directoryPageSize)
		if err != nil {
			return eris.Wrap(err, "enrich: list accounts")
		}

		for _, a := range accounts {
			if bool(a.ApolloContact) {
				continue
			}
			has, err := s.dir.AccountHasContacts(ctx, a.ID)
			if err != nil {
				return eris.Wrap(err, "enrich: probe contacts")
			}
			if has {
				continue
			}
			st.eligible = append(st.eligible, model.Company{
				ID:      a.ID,
				Name:    a.Name,
				Website: a.Website,
			})
		}

		st.nextPage++
		if !more || len(accounts) == 0 {
			st.done = true
		}
	}

	if st.done {
		zap.L().Debug("eligibility scan complete",
			zap.Int("eligible", len(st.eligible)),
			zap.Int("pages", st.nextPage-1),
		)
	}
	return nil
}

// EligibleUpTo runs a session-less truncated scan returning at most limit
// eligible companies, for callers that do not carry a continuation.
func (s *Scanner) EligibleUpTo(ctx context.Context, limit int) ([]model.Company, bool, error) {
	st := &scanState{nextPage: 1}
	if err := s.extend(ctx, st, limit+1); err != nil {
		return nil, false, err
	}
	more := len(st.eligible) > limit || !st.done
	if len(st.eligible) > limit {
		st.eligible = st.eligible[:limit]
	}
	return st.eligible, more, nil
}
