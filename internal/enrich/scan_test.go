package enrich

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/jobsync/pkg/zoho"
)

func TestScannerFiltersExhaustedAndContacted(t *testing.T) {
	t.Parallel()

	dir := newFakeDirectory(
		zoho.Account{ID: "a1", Name: "One", Website: "https://one.com"},
		zoho.Account{ID: "a2", Name: "Two", ApolloContact: true},
		zoho.Account{ID: "a3", Name: "Three"},
		zoho.Account{ID: "a4", Name: "Four"},
	)
	dir.contactsByAccount["a3"] = 2

	s := NewScanner(dir, time.Minute)
	slice, err := s.Eligible(context.Background(), "s1", 0, 10)

	require.NoError(t, err)
	require.Len(t, slice.Companies, 2)
	assert.Equal(t, "a1", slice.Companies[0].ID)
	assert.Equal(t, "a4", slice.Companies[1].ID)
	assert.True(t, slice.Complete)
	assert.Equal(t, 2, slice.Known)

	// Exhausted accounts are never contact-probed.
	assert.Equal(t, 3, dir.probeCalls)
}

func TestScannerReusesSessionState(t *testing.T) {
	t.Parallel()

	accounts := make([]zoho.Account, 8)
	for i := range accounts {
		accounts[i] = zoho.Account{ID: fmt.Sprintf("a%d", i), Name: fmt.Sprintf("Co %d", i)}
	}
	dir := newFakeDirectory(accounts...)

	s := NewScanner(dir, time.Minute)

	first, err := s.Eligible(context.Background(), "s1", 0, 3)
	require.NoError(t, err)
	require.Len(t, first.Companies, 3)

	listCallsAfterFirst := dir.listCalls
	probesAfterFirst := dir.probeCalls

	second, err := s.Eligible(context.Background(), "s1", 3, 3)
	require.NoError(t, err)
	require.Len(t, second.Companies, 3)
	assert.Equal(t, "a3", second.Companies[0].ID)

	// The single Directory page was already consumed; the second chunk is
	// served entirely from the session cache.
	assert.Equal(t, listCallsAfterFirst, dir.listCalls)
	assert.Equal(t, probesAfterFirst, dir.probeCalls)
}

func TestScannerBackwardsOffsetServedFromCache(t *testing.T) {
	t.Parallel()

	dir := newFakeDirectory(
		zoho.Account{ID: "a1", Name: "One"},
		zoho.Account{ID: "a2", Name: "Two"},
		zoho.Account{ID: "a3", Name: "Three"},
	)
	s := NewScanner(dir, time.Minute)

	_, err := s.Eligible(context.Background(), "s1", 2, 1)
	require.NoError(t, err)

	slice, err := s.Eligible(context.Background(), "s1", 0, 2)
	require.NoError(t, err)
	require.Len(t, slice.Companies, 2)
	assert.Equal(t, "a1", slice.Companies[0].ID)
}

func TestScannerRejectsConcurrentSession(t *testing.T) {
	t.Parallel()

	dir := newFakeDirectory(zoho.Account{ID: "a1", Name: "One"})
	s := NewScanner(dir, time.Minute)

	st, err := s.acquire("s1")
	require.NoError(t, err)

	_, err = s.Eligible(context.Background(), "s1", 0, 5)
	assert.ErrorIs(t, err, ErrSessionBusy)

	// A different session is unaffected.
	_, err = s.Eligible(context.Background(), "s2", 0, 5)
	assert.NoError(t, err)

	s.release(st)
	_, err = s.Eligible(context.Background(), "s1", 0, 5)
	assert.NoError(t, err)
}

func TestScannerExpiresIdleSessions(t *testing.T) {
	t.Parallel()

	dir := newFakeDirectory(zoho.Account{ID: "a1", Name: "One"})
	s := NewScanner(dir, 10*time.Minute)

	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_, err := s.Eligible(context.Background(), "stale", 0, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Sessions())

	now = now.Add(11 * time.Minute)
	_, err = s.Eligible(context.Background(), "fresh", 0, 5)
	require.NoError(t, err)

	// The stale session was pruned during acquire.
	assert.Equal(t, 1, s.Sessions())
}

func TestEligibleUpTo(t *testing.T) {
	t.Parallel()

	accounts := make([]zoho.Account, 6)
	for i := range accounts {
		accounts[i] = zoho.Account{ID: fmt.Sprintf("a%d", i), Name: fmt.Sprintf("Co %d", i)}
	}
	dir := newFakeDirectory(accounts...)
	s := NewScanner(dir, time.Minute)

	companies, more, err := s.EligibleUpTo(context.Background(), 4)
	require.NoError(t, err)
	assert.Len(t, companies, 4)
	assert.True(t, more)

	companies, more, err = s.EligibleUpTo(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, companies, 6)
	assert.False(t, more)
}
