// Package jobspy provides a client for a JobSpy-compatible job board
// scraping service.
package jobspy

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Posting is one scraped job listing as the service returns it.
type Posting struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Company        string `json:"company"`
	Location       string `json:"location"`
	JobURL         string `json:"job_url"`
	JobURLDirect   string `json:"job_url_direct"`
	CompanyURL     string `json:"company_url"`
	CompanyWebsite string `json:"company_url_direct"`
	DatePosted     string `json:"date_posted"`
	Description    string `json:"description"`
}

// SearchRequest describes one board search.
type SearchRequest struct {
	SiteNames     []string `json:"site_name"`
	SearchTerm    string   `json:"search_term"`
	Location      string   `json:"location,omitempty"`
	ResultsWanted int      `json:"results_wanted"`
	HoursOld      int      `json:"hours_old,omitempty"`
	Country       string   `json:"country_indeed,omitempty"`
}

// Client defines the scraping operations.
type Client interface {
	// Search runs one board search and returns the scraped postings.
	Search(ctx context.Context, req SearchRequest) ([]Posting, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
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

// NewClient creates a scraping-service client. Board scrapes are slow, so
// the default timeout is generous.
func NewClient(apiKey, baseURL string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 5 * time.Minute,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// retryDo executes a request with exponential backoff on transient failures.
func (c *httpClient) retryDo(ctx context.Context, method, url string, payload any) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, eris.Wrap(err, "jobspy: marshal request")
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(encoded))
		if err != nil {
			return nil, 0, eris.Wrap(err, "jobspy: create request")
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("X-API-Key", c.apiKey)
		}

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
			return nil, 0, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrap(readErr, "jobspy: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("jobspy: status %d: %s", resp.StatusCode, string(body))
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		return body, resp.StatusCode, nil
	}

	return nil, 0, lastErr
}

type searchResponse struct {
	Jobs  []Posting `json:"jobs"`
	Count int       `json:"count"`
}

func (c *httpClient) Search(ctx context.Context, req SearchRequest) ([]Posting, error) {
	if len(req.SiteNames) == 0 {
		req.SiteNames = []string{"indeed"}
	}

	body, status, err := c.retryDo(ctx, http.MethodPost, c.baseURL+"/api/v1/search_jobs", req)
	if err != nil {
		return nil, eris.Wrap(err, "jobspy: search request failed")
	}
	if status != http.StatusOK {
		return nil, eris.Errorf("jobspy: unexpected status %d: %s", status, string(body))
	}

	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "jobspy: unmarshal response")
	}
	return result.Jobs, nil
}
