package zoho

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rotisserie/eris"
)

// ContactExists reports whether a contact is already in the CRM. When an
// email is available it is the sole criterion; otherwise the check falls
// back to first+last name scoped to the account.
func (c *httpClient) ContactExists(ctx context.Context, email, firstName, lastName, accountID string) (bool, error) {
	var criteria string
	switch {
	case email != "":
		criteria = "Email:equals:" + email
	case firstName != "" && lastName != "":
		criteria = fmt.Sprintf(
			"((First_Name:equals:%s) and (Last_Name:equals:%s) and (Account_Name.id:equals:%s))",
			firstName, lastName, accountID,
		)
	default:
		// Nothing to match on.
		return false, nil
	}

	query := url.Values{
		"criteria": {criteria},
		"fields":   {"id,Email,First_Name,Last_Name,Account_Name"},
	}

	body, status, err := c.do(ctx, http.MethodGet, "/crm/v2/"+ContactsModule+"/search", query, nil)
	if err != nil {
		return false, eris.Wrap(err, "zoho: search contact")
	}
	if status == http.StatusNoContent {
		return false, nil
	}
	if status != http.StatusOK {
		return false, eris.Errorf("zoho: search contact: unexpected status %d: %s", status, string(body))
	}

	var result struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return false, eris.Wrap(err, "zoho: unmarshal contact search")
	}
	return len(result.Data) > 0, nil
}

// CreateContact creates a contact record and returns its id. Nil and empty
// values are dropped before the call; the CRM rejects explicit nulls on some
// field types.
func (c *httpClient) CreateContact(ctx context.Context, fields map[string]any) (string, error) {
	cleaned := make(map[string]any, len(fields))
	for k, v := range fields {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		cleaned[k] = v
	}
	payload := map[string]any{"data": []map[string]any{cleaned}}

	body, status, err := c.do(ctx, http.MethodPost, "/crm/v2/"+ContactsModule, nil, payload)
	if err != nil {
		return "", eris.Wrap(err, "zoho: create contact")
	}
	if status != http.StatusCreated {
		return "", eris.Errorf("zoho: create contact: unexpected status %d: %s", status, string(body))
	}
	id, err := createdID(body)
	if err != nil {
		return "", eris.Wrap(err, "zoho: create contact")
	}
	return id, nil
}
