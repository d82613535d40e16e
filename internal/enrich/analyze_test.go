package enrich

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/jobsync/pkg/zoho"
)

func TestAnalyze_BucketsCompanies(t *testing.T) {
	t.Parallel()

	dir := newFakeDirectory(
		zoho.Account{ID: "a1", Name: "Contacted", Website: "https://one.example.com"},
		zoho.Account{ID: "a2", Name: "Fresh", Website: "https://two.example.com"},
		zoho.Account{ID: "a3", Name: "No Site"},
		zoho.Account{ID: "a4", Name: "Tapped Out", Website: "https://four.example.com", ApolloContact: true},
	)
	dir.contactsByAccount["a1"] = 3

	o, _ := newTestOrchestrator(dir, newFakeSource())
	analysis, err := o.Analyze(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 4, analysis.TotalCompanies)
	assert.Equal(t, 1, analysis.CompaniesWithContacts)
	assert.Equal(t, 2, analysis.CompaniesWithoutContacts)
	assert.Equal(t, 1, analysis.CompaniesWithoutWebsite)
	assert.Equal(t, 1, analysis.CompaniesMarkedExhausted)

	require.Len(t, analysis.WithContacts, 1)
	assert.Equal(t, "a1", analysis.WithContacts[0].ID)
	require.Len(t, analysis.WithoutWebsite, 1)
	assert.Equal(t, "a3", analysis.WithoutWebsite[0].ID)
	require.Len(t, analysis.MarkedExhausted, 1)
	assert.True(t, analysis.MarkedExhausted[0].Exhausted)
}

func TestAnalyze_HonorsLimit(t *testing.T) {
	t.Parallel()

	dir := newFakeDirectory(eligibleAccounts(30)...)
	o, _ := newTestOrchestrator(dir, newFakeSource())

	analysis, err := o.Analyze(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 10, analysis.TotalCompanies)
	assert.Equal(t, 10, analysis.CompaniesWithoutContacts)
}

func TestAnalyze_PagesBeyondOnePage(t *testing.T) {
	t.Parallel()

	dir := newFakeDirectory(eligibleAccounts(300)...)
	o, _ := newTestOrchestrator(dir, newFakeSource())

	analysis, err := o.Analyze(context.Background(), 250)
	require.NoError(t, err)

	assert.Equal(t, 250, analysis.TotalCompanies)
	require.Len(t, analysis.WithoutContacts, 250)

	// Every company in the range appears exactly once: the second page must
	// continue past the first 200 records, not re-read them.
	seen := make(map[string]int, 250)
	for _, c := range analysis.WithoutContacts {
		seen[c.ID]++
	}
	for i := 0; i < 250; i++ {
		id := fmt.Sprintf("a%d", i)
		assert.Equal(t, 1, seen[id], "company %s", id)
	}
}

func TestAnalyze_SkipsContactProbeWithoutWebsite(t *testing.T) {
	t.Parallel()

	dir := newFakeDirectory(
		zoho.Account{ID: "a1", Name: "No Site"},
	)
	o, _ := newTestOrchestrator(dir, newFakeSource())

	_, err := o.Analyze(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 0, dir.probeCalls)
}
