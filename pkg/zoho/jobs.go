package zoho

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// JobExists reports whether a job posting with the given scraper source id is
// already in the CRM.
func (c *httpClient) JobExists(ctx context.Context, sourceID string) (bool, error) {
	query := url.Values{"criteria": {"ID_Indeed:equals:" + sourceID}}

	body, status, err := c.do(ctx, http.MethodGet, "/crm/v2/"+JobsModule+"/search", query, nil)
	if err != nil {
		return false, eris.Wrap(err, "zoho: search job")
	}
	if status == http.StatusNoContent {
		return false, nil
	}
	if status != http.StatusOK {
		return false, eris.Errorf("zoho: search job: unexpected status %d: %s", status, string(body))
	}

	var result struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return false, eris.Wrap(err, "zoho: unmarshal job search")
	}
	return len(result.Data) > 0, nil
}

// CreateJob creates a job record linked to an account and then a junction
// record tying the two together. The junction is best-effort: the job id is
// still returned when the junction insert fails, since the job itself carries
// the account lookup.
func (c *httpClient) CreateJob(ctx context.Context, fields map[string]any, accountID string) (string, error) {
	payload := map[string]any{"data": []map[string]any{fields}}

	body, status, err := c.do(ctx, http.MethodPost, "/crm/v2/"+JobsModule, nil, payload)
	if err != nil {
		return "", eris.Wrap(err, "zoho: create job")
	}
	if status != http.StatusCreated {
		return "", eris.Errorf("zoho: create job: unexpected status %d: %s", status, string(body))
	}
	jobID, err := createdID(body)
	if err != nil {
		return "", eris.Wrap(err, "zoho: create job")
	}

	junction := map[string]any{
		"data": []map[string]any{{
			"Related_Job":     map[string]any{"id": jobID},
			"Related_company": map[string]any{"id": accountID},
		}},
	}
	jBody, jStatus, jErr := c.do(ctx, http.MethodPost, "/crm/v2/"+JunctionModule, nil, junction)
	if jErr != nil || jStatus != http.StatusCreated {
		zap.L().Warn("junction record not created",
			zap.String("job_id", jobID),
			zap.String("account_id", accountID),
			zap.Int("status", jStatus),
			zap.String("body", string(jBody)),
			zap.Error(jErr),
		)
	}

	return jobID, nil
}
