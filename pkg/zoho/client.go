// Package zoho provides a refresh-token-authenticated client for the
// Zoho CRM v2 REST API.
package zoho

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Module names within the CRM.
const (
	AccountsModule = "Accounts"
	ContactsModule = "Contacts"
	JobsModule     = "Jobs"
	JunctionModule = "Account_X_Job"
)

// AuthError indicates the OAuth credentials were rejected. It is fatal:
// retrying with the same credentials cannot succeed.
type AuthError struct {
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("zoho: authentication failed (status %d): %s", e.StatusCode, e.Body)
}

// ValidationError indicates the CRM rejected the request payload.
type ValidationError struct {
	StatusCode int
	Body       string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("zoho: request rejected (status %d): %s", e.StatusCode, e.Body)
}

// TokenSource yields a valid access token for API calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource returns a fixed token. Used in tests.
func StaticTokenSource(token string) TokenSource {
	return staticTokenSource(token)
}

type staticTokenSource string

func (s staticTokenSource) Token(context.Context) (string, error) {
	return string(s), nil
}

// RefreshTokenSource exchanges a long-lived refresh token for access tokens
// against the Zoho accounts server and caches them until near expiry.
type RefreshTokenSource struct {
	accountsURL  string
	clientID     string
	clientSecret string
	refreshToken string
	http         *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
	now     func() time.Time
}

// NewRefreshTokenSource creates a caching token source. accountsURL is the
// Zoho accounts server, e.g. https://accounts.zoho.com.
func NewRefreshTokenSource(accountsURL, clientID, clientSecret, refreshToken string) *RefreshTokenSource {
	return &RefreshTokenSource{
		accountsURL:  strings.TrimSuffix(accountsURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		refreshToken: refreshToken,
		http:         &http.Client{Timeout: 30 * time.Second},
		now:          time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error"`
}

// Token returns the cached access token, refreshing it when less than a
// minute of validity remains.
func (s *RefreshTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Before(s.expires.Add(-time.Minute)) {
		return s.token, nil
	}

	form := url.Values{
		"refresh_token": {s.refreshToken},
		"client_id":     {s.clientID},
		"client_secret": {s.clientSecret},
		"grant_type":    {"refresh_token"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.accountsURL+"/oauth/v2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", eris.Wrap(err, "zoho: create token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "zoho: token request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "zoho: read token response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", &AuthError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", eris.Wrap(err, "zoho: unmarshal token response")
	}
	// The accounts server reports grant errors inside a 200 response.
	if tr.Error != "" || tr.AccessToken == "" {
		return "", &AuthError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	s.token = tr.AccessToken
	if tr.ExpiresIn > 0 {
		s.expires = s.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	} else {
		s.expires = s.now().Add(time.Hour)
	}
	return s.token, nil
}

// Client defines the CRM operations used by the sync and enrichment
// pipelines.
type Client interface {
	ListAccounts(ctx context.Context, page, perPage int) ([]Account, bool, error)
	SearchAccountByName(ctx context.Context, name string) (*Account, error)
	CreateAccount(ctx context.Context, fields map[string]any) (string, error)
	UpdateAccount(ctx context.Context, id string, fields map[string]any) error
	GetAccountExhausted(ctx context.Context, id string) (bool, error)
	SetAccountExhausted(ctx context.Context, id string, exhausted bool) error
	AccountHasContacts(ctx context.Context, id string) (bool, error)
	ContactExists(ctx context.Context, email, firstName, lastName, accountID string) (bool, error)
	CreateContact(ctx context.Context, fields map[string]any) (string, error)
	JobExists(ctx context.Context, sourceID string) (bool, error)
	CreateJob(ctx context.Context, fields map[string]any, accountID string) (string, error)
}

// Option configures the Zoho client.
type Option func(*httpClient)

// WithBaseURL sets a custom API base URL (for testing).
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

// WithRateLimit sets a per-second courtesy limit on CRM calls.
// A burst equal to the integer portion of rps is allowed.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

type httpClient struct {
	tokens  TokenSource
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Zoho CRM client.
func NewClient(tokens TokenSource, opts ...Option) Client {
	c := &httpClient{
		tokens:  tokens,
		baseURL: "https://www.zohoapis.com",
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

// do executes one CRM call with a fresh token, retrying transient failures
// with exponential backoff. Auth and validation failures are classified and
// never retried. A 204 comes back as (nil, 204, nil): the CRM uses it for
// empty result sets.
func (c *httpClient) do(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var bodyBytes []byte
	if payload != nil {
		var err error
		bodyBytes, err = json.Marshal(payload)
		if err != nil {
			return nil, 0, eris.Wrap(err, "zoho: marshal request")
		}
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, 0, eris.Wrap(err, "zoho: rate limit")
			}
		}

		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, 0, err
		}

		var reqBody io.Reader
		if bodyBytes != nil {
			reqBody = strings.NewReader(string(bodyBytes))
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
		if err != nil {
			return nil, 0, eris.Wrap(err, "zoho: create request")
		}
		req.Header.Set("Authorization", "Zoho-oauthtoken "+token)
		if bodyBytes != nil {
			req.Header.Set("Content-Type", "application/json")
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
			return nil, 0, eris.Wrap(lastErr, "zoho: request failed")
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrap(readErr, "zoho: read response body")
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return nil, resp.StatusCode, &AuthError{StatusCode: resp.StatusCode, Body: string(body)}
		case resp.StatusCode == http.StatusBadRequest ||
			resp.StatusCode == http.StatusUnprocessableEntity:
			return nil, resp.StatusCode, &ValidationError{StatusCode: resp.StatusCode, Body: string(body)}
		case retryableStatusCode(resp.StatusCode) && attempt < maxAttempts:
			lastErr = eris.Errorf("zoho: status %d: %s", resp.StatusCode, string(body))
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

	return nil, 0, eris.Wrap(lastErr, "zoho: request failed")
}

// createdID extracts the new record id from a create response.
func createdID(body []byte) (string, error) {
	var result struct {
		Data []struct {
			Code    string `json:"code"`
			Details struct {
				ID string `json:"id"`
			} `json:"details"`
			Message string `json:"message"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", eris.Wrap(err, "zoho: unmarshal create response")
	}
	if len(result.Data) == 0 {
		return "", eris.New("zoho: create response contained no records")
	}
	rec := result.Data[0]
	if rec.Details.ID == "" {
		return "", eris.Errorf("zoho: create failed: %s %s", rec.Code, rec.Message)
	}
	return rec.Details.ID, nil
}
