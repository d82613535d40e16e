// Package apollo provides a client for the Apollo.io people search and
// organization enrichment API.
package apollo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Filter narrows a people search to a band of roles.
type Filter string

const (
	FilterAll        Filter = "all"
	FilterManagers   Filter = "managers"
	FilterExecutives Filter = "executives"
)

// RateLimitError indicates Apollo's own rate limit rejected the call even
// after retries. The caller's quota accounting treats it as transient.
type RateLimitError struct {
	Body string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("apollo: rate limit exceeded: %s", e.Body)
}

// Person is one people-search result, trimmed to the fields the sync uses.
type Person struct {
	ID           string       `json:"id"`
	FirstName    string       `json:"first_name"`
	LastName     string       `json:"last_name"`
	Email        string       `json:"email"`
	Title        string       `json:"title"`
	Seniority    string       `json:"seniority"`
	Phone        string       `json:"phone"`
	LinkedInURL  string       `json:"linkedin_url"`
	City         string       `json:"city"`
	State        string       `json:"state"`
	Country      string       `json:"country"`
	Departments  []string     `json:"departments"`
	Organization Organization `json:"organization"`
}

// PersonURL returns the Apollo app link for the person, or "" without an id.
func (p Person) PersonURL() string {
	if p.ID == "" {
		return ""
	}
	return "https://app.apollo.io/#/people/" + p.ID
}

// Organization is Apollo's firmographic record for a company.
type Organization struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Phone        string  `json:"phone"`
	LinkedInURL  string  `json:"linkedin_url"`
	FacebookURL  string  `json:"facebook_url"`
	TwitterURL   string  `json:"twitter_url"`
	Industry     string  `json:"industry"`
	Employees    int     `json:"estimated_num_employees"`
	Revenue      string  `json:"annual_revenue_printed"`
	RevenueValue float64 `json:"annual_revenue"`
}

// OrgURL returns the Apollo app link for the organization, or "" without an id.
func (o Organization) OrgURL() string {
	if o.ID == "" {
		return ""
	}
	return "https://app.apollo.io/#/organizations/" + o.ID
}

// Client defines the Apollo operations used by the enrichment pipeline.
type Client interface {
	// SearchPeople finds up to perPage people at the given company domain.
	// People without both a first and a last name are dropped; a locked
	// email placeholder is cleared rather than propagated.
	SearchPeople(ctx context.Context, domain string, perPage int, filter Filter) ([]Person, error)
	// EnrichOrganization fetches firmographic data for a domain. Returns
	// nil without error when Apollo has no record for it.
	EnrichOrganization(ctx context.Context, domain string) (*Organization, error)
}

// Option configures the Apollo client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates an Apollo client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.apollo.io",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// post executes one JSON POST with exponential backoff on transient statuses.
func (c *httpClient) post(ctx context.Context, path string, payload any) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, eris.Wrap(err, "apollo: marshal request")
	}

	var lastErr error
	var lastStatus int
	var lastBody []byte
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+path, strings.NewReader(string(body)))
		if err != nil {
			return nil, 0, eris.Wrap(err, "apollo: create request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Cache-Control", "no-cache")
		req.Header.Set("X-Api-Key", c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, 0, eris.Wrap(lastErr, "apollo: request failed")
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrap(readErr, "apollo: read response body")
		}
		lastStatus = resp.StatusCode
		lastBody = respBody

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("apollo: status %d: %s", resp.StatusCode, string(respBody))
			zap.L().Warn("apollo call failed, retrying",
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt),
			)
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		return respBody, resp.StatusCode, nil
	}

	if lastStatus != 0 {
		return lastBody, lastStatus, nil
	}
	return nil, 0, eris.Wrap(lastErr, "apollo: request failed")
}

type searchResponse struct {
	People []Person `json:"people"`
}

func (c *httpClient) SearchPeople(ctx context.Context, domain string, perPage int, filter Filter) ([]Person, error) {
	if domain == "" {
		return nil, nil
	}
	if perPage <= 0 {
		perPage = 10
	}

	payload := map[string]any{
		"q_organization_domains_list": []string{domain},
		"contact_email_status":        []string{"verified", "unverified", "likely_to_engage"},
		"page":                        1,
		"per_page":                    perPage,
	}
	switch filter {
	case FilterManagers:
		payload["person_titles[]"] = []string{"manager"}
		payload["include_similar_titles"] = true
	case FilterExecutives:
		payload["person_seniorities"] = []string{"director", "manager", "c_suite"}
		payload["person_titles[]"] = []string{
			"manager", "director", "president", "CEO", "CFO", "CTO",
			"CMO", "COO", "founder", "owner", "partner",
		}
		payload["include_similar_titles"] = true
	}

	body, status, err := c.post(ctx, "/api/v1/mixed_people/search", payload)
	if err != nil {
		return nil, err
	}
	if status == http.StatusTooManyRequests {
		return nil, &RateLimitError{Body: string(body)}
	}
	if status != http.StatusOK {
		return nil, eris.Errorf("apollo: people search: unexpected status %d: %s", status, string(body))
	}

	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "apollo: unmarshal people search")
	}

	people := make([]Person, 0, len(result.People))
	for _, p := range result.People {
		if p.FirstName == "" || p.LastName == "" {
			continue
		}
		if strings.Contains(p.Email, "email_not_unlocked@") {
			// Locked email; the person is still usable without one.
			p.Email = ""
		}
		people = append(people, p)
		if len(people) >= perPage {
			break
		}
	}
	return people, nil
}

type enrichResponse struct {
	Organization *Organization `json:"organization"`
}

func (c *httpClient) EnrichOrganization(ctx context.Context, domain string) (*Organization, error) {
	if domain == "" {
		return nil, nil
	}

	body, status, err := c.post(ctx, "/api/v1/organizations/enrich", map[string]any{"domain": domain})
	if err != nil {
		return nil, err
	}
	if status == http.StatusTooManyRequests {
		return nil, &RateLimitError{Body: string(body)}
	}
	if status != http.StatusOK {
		return nil, eris.Errorf("apollo: org enrich: unexpected status %d: %s", status, string(body))
	}

	var result enrichResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "apollo: unmarshal org enrich")
	}
	return result.Organization, nil
}
