// Package enrich implements the company enrichment engine: eligibility
// scanning over the Directory, chunked orchestration of enrichment-source
// searches, company resolution for scraped postings, and the book analysis
// report.
package enrich

import "strings"

// ExtractDomain derives a bare domain from a website URL. It lowercases,
// strips the scheme and a leading www, and cuts at the first path, query or
// fragment separator. Returns "" for anything that does not look like a
// domain (no dot, or 3 characters or fewer). Pure and total.
func ExtractDomain(rawURL string) string {
	s := strings.ToLower(strings.TrimSpace(rawURL))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")

	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)

	if len(s) <= 3 || !strings.Contains(s, ".") {
		return ""
	}
	return s
}
