package zoho

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// BoolString is a CRM boolean that may arrive as a JSON bool or as the
// strings "true"/"false". Checkbox fields serialize either way depending on
// how the record was written.
type BoolString bool

// UnmarshalJSON accepts true/false, "true"/"false" and null.
func (b *BoolString) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	switch strings.ToLower(s) {
	case "true":
		*b = true
	case "false", "null", "":
		*b = false
	default:
		return eris.Errorf("zoho: cannot parse %q as boolean", s)
	}
	return nil
}

// MarshalJSON writes the string form the CRM expects on updates.
func (b BoolString) MarshalJSON() ([]byte, error) {
	if b {
		return []byte(`"true"`), nil
	}
	return []byte(`"false"`), nil
}

// Account is a CRM account record, limited to the fields the sync reads.
type Account struct {
	ID            string     `json:"id"`
	Name          string     `json:"Account_Name"`
	Website       string     `json:"Website"`
	ApolloContact BoolString `json:"Apollo_Contact"`
}

type accountListResponse struct {
	Data []Account `json:"data"`
	Info struct {
		MoreRecords bool `json:"more_records"`
	} `json:"info"`
}

// ListAccounts fetches one page of accounts. The second return reports
// whether more pages remain.
func (c *httpClient) ListAccounts(ctx context.Context, page, perPage int) ([]Account, bool, error) {
	query := url.Values{
		"page":     {strconv.Itoa(page)},
		"per_page": {strconv.Itoa(perPage)},
		"fields":   {"id,Account_Name,Website,Apollo_Contact"},
	}

	body, status, err := c.do(ctx, http.MethodGet, "/crm/v2/"+AccountsModule, query, nil)
	if err != nil {
		return nil, false, eris.Wrap(err, "zoho: list accounts")
	}
	if status == http.StatusNoContent {
		return nil, false, nil
	}
	if status != http.StatusOK {
		return nil, false, eris.Errorf("zoho: list accounts: unexpected status %d: %s", status, string(body))
	}

	var result accountListResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, false, eris.Wrap(err, "zoho: unmarshal accounts page")
	}
	return result.Data, result.Info.MoreRecords, nil
}

// searchAccounts runs one criteria search against the accounts module.
func (c *httpClient) searchAccounts(ctx context.Context, criteria string) ([]Account, error) {
	query := url.Values{"criteria": {criteria}}

	body, status, err := c.do(ctx, http.MethodGet, "/crm/v2/"+AccountsModule+"/search", query, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, eris.Errorf("zoho: account search: unexpected status %d: %s", status, string(body))
	}

	var result accountListResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "zoho: unmarshal account search")
	}
	return result.Data, nil
}

// SearchAccountByName looks up an account by exact name, falling back to a
// contains search confirmed with a case-insensitive comparison. Returns nil
// when no account matches.
func (c *httpClient) SearchAccountByName(ctx context.Context, name string) (*Account, error) {
	accounts, err := c.searchAccounts(ctx, "Account_Name:equals:"+name)
	if err != nil {
		return nil, eris.Wrap(err, "zoho: search account")
	}
	if len(accounts) > 0 {
		return &accounts[0], nil
	}

	accounts, err = c.searchAccounts(ctx, "Account_Name:contains:"+name)
	if err != nil {
		return nil, eris.Wrap(err, "zoho: search account")
	}
	for i := range accounts {
		if strings.EqualFold(accounts[i].Name, name) {
			return &accounts[i], nil
		}
	}
	return nil, nil
}

// CreateAccount creates an account record and returns its id.
func (c *httpClient) CreateAccount(ctx context.Context, fields map[string]any) (string, error) {
	payload := map[string]any{"data": []map[string]any{fields}}

	body, status, err := c.do(ctx, http.MethodPost, "/crm/v2/"+AccountsModule, nil, payload)
	if err != nil {
		return "", eris.Wrap(err, "zoho: create account")
	}
	if status != http.StatusCreated {
		return "", eris.Errorf("zoho: create account: unexpected status %d: %s", status, string(body))
	}
	id, err := createdID(body)
	if err != nil {
		return "", eris.Wrap(err, "zoho: create account")
	}
	return id, nil
}

// UpdateAccount sets the given fields on an existing account.
func (c *httpClient) UpdateAccount(ctx context.Context, id string, fields map[string]any) error {
	payload := map[string]any{"data": []map[string]any{fields}}

	body, status, err := c.do(ctx, http.MethodPut, "/crm/v2/"+AccountsModule+"/"+id, nil, payload)
	if err != nil {
		return eris.Wrap(err, "zoho: update account")
	}
	if status != http.StatusOK {
		return eris.Errorf("zoho: update account %s: unexpected status %d: %s", id, status, string(body))
	}
	return nil
}

// GetAccountExhausted reads the Apollo_Contact flag on an account. True means
// a previous run found no contacts at the enrichment source.
func (c *httpClient) GetAccountExhausted(ctx context.Context, id string) (bool, error) {
	query := url.Values{"fields": {"Apollo_Contact"}}

	body, status, err := c.do(ctx, http.MethodGet, "/crm/v2/"+AccountsModule+"/"+id, query, nil)
	if err != nil {
		return false, eris.Wrap(err, "zoho: get account flag")
	}
	if status == http.StatusNoContent {
		return false, nil
	}
	if status != http.StatusOK {
		return false, eris.Errorf("zoho: get account flag: unexpected status %d: %s", status, string(body))
	}

	var result struct {
		Data []struct {
			ApolloContact BoolString `json:"Apollo_Contact"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return false, eris.Wrap(err, "zoho: unmarshal account flag")
	}
	if len(result.Data) == 0 {
		return false, nil
	}
	return bool(result.Data[0].ApolloContact), nil
}

// SetAccountExhausted writes the Apollo_Contact flag. The CRM checkbox wants
// the boolean as a string.
func (c *httpClient) SetAccountExhausted(ctx context.Context, id string, exhausted bool) error {
	return c.UpdateAccount(ctx, id, map[string]any{
		"Apollo_Contact": BoolString(exhausted),
	})
}

// AccountHasContacts probes for a single contact linked to the account.
// The CRM answers 204 when none exist.
func (c *httpClient) AccountHasContacts(ctx context.Context, id string) (bool, error) {
	query := url.Values{
		"criteria": {"Account_Name.id:equals:" + id},
		"page":     {"1"},
		"per_page": {"1"},
	}

	body, status, err := c.do(ctx, http.MethodGet, "/crm/v2/"+ContactsModule+"/search", query, nil)
	if err != nil {
		return false, eris.Wrap(err, "zoho: probe account contacts")
	}
	if status == http.StatusNoContent {
		return false, nil
	}
	if status != http.StatusOK {
		return false, eris.Errorf("zoho: probe account contacts: unexpected status %d: %s", status, string(body))
	}

	var result struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return false, eris.Wrap(err, "zoho: unmarshal contact probe")
	}
	return len(result.Data) > 0, nil
}
