package enrich

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/jobsync/pkg/apollo"
	"github.com/sells-group/jobsync/pkg/zoho"
)

// fakeDirectory is an in-memory zoho.Client. Accounts are served in slice
// order; the page size is whatever the caller asks for.
type fakeDirectory struct {
	mu       sync.Mutex
	accounts []zoho.Account
	// contactsByAccount makes AccountHasContacts answer true.
	contactsByAccount map[string]int
	// existingEmails and existingNames drive ContactExists.
	existingEmails map[string]bool
	existingNames  map[string]bool // key: first|last|accountID
	jobs           map[string]bool

	created        []map[string]any // contact payloads
	createdAccouts []map[string]any
	createdJobs    []map[string]any

	listCalls   int
	probeCalls  int
	searchErr   error
	createErr   error
	exhaustErr  error
	dupCheckErr error
	nextAccount int
}

func newFakeDirectory(accounts ...zoho.Account) *fakeDirectory {
	return &fakeDirectory{
		accounts:          accounts,
		contactsByAccount: make(map[string]int),
		existingEmails:    make(map[string]bool),
		existingNames:     make(map[string]bool),
		jobs:              make(map[string]bool),
	}
}

func (f *fakeDirectory) ListAccounts(_ context.Context, page, perPage int) ([]zoho.Account, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++

	start := (page - 1) * perPage
	if start >= len(f.accounts) {
		return nil, false, nil
	}
	end := min(start+perPage, len(f.accounts))
	return f.accounts[start:end], end < len(f.accounts), nil
}

func (f *fakeDirectory) SearchAccountByName(_ context.Context, name string) (*zoho.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	for i := range f.accounts {
		if strings.EqualFold(f.accounts[i].Name, name) {
			return &f.accounts[i], nil
		}
	}
	return nil, nil
}

func (f *fakeDirectory) CreateAccount(_ context.Context, fields map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextAccount++
	id := fmt.Sprintf("acct-%d", f.nextAccount)
	f.createdAccouts = append(f.createdAccouts, fields)
	name, _ := fields["Account_Name"].(string)
	website, _ := fields["Website"].(string)
	f.accounts = append(f.accounts, zoho.Account{ID: id, Name: name, Website: website})
	return id, nil
}

func (f *fakeDirectory) UpdateAccount(_ context.Context, id string, fields map[string]any) error {
	return f.setExhausted(id, fields)
}

func (f *fakeDirectory) setExhausted(id string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.exhaustErr != nil {
		return f.exhaustErr
	}
	if v, ok := fields["Apollo_Contact"]; ok {
		for i := range f.accounts {
			if f.accounts[i].ID == id {
				b, isBool := v.(zoho.BoolString)
				f.accounts[i].ApolloContact = zoho.BoolString(isBool && bool(b))
			}
		}
	}
	return nil
}

func (f *fakeDirectory) GetAccountExhausted(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.accounts {
		if f.accounts[i].ID == id {
			return bool(f.accounts[i].ApolloContact), nil
		}
	}
	return false, nil
}

func (f *fakeDirectory) SetAccountExhausted(_ context.Context, id string, exhausted bool) error {
	return f.setExhausted(id, map[string]any{"Apollo_Contact": zoho.BoolString(exhausted)})
}

func (f *fakeDirectory) AccountHasContacts(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probeCalls++
	return f.contactsByAccount[id] > 0, nil
}

func (f *fakeDirectory) ContactExists(_ context.Context, email, first, last, accountID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dupCheckErr != nil {
		return false, f.dupCheckErr
	}
	if email != "" {
		return f.existingEmails[email], nil
	}
	return f.existingNames[first+"|"+last+"|"+accountID], nil
}

func (f *fakeDirectory) CreateContact(_ context.Context, fields map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, fields)

	// Make a created contact visible to later duplicate checks, the way
	// the real Directory would.
	if email, ok := fields["Email"].(string); ok && email != "" {
		f.existingEmails[email] = true
	}
	acct, _ := fields["Account_Name"].(map[string]any)
	accountID, _ := acct["id"].(string)
	first, _ := fields["First_Name"].(string)
	last, _ := fields["Last_Name"].(string)
	f.existingNames[first+"|"+last+"|"+accountID] = true
	f.contactsByAccount[accountID]++
	return "contact-1", nil
}

func (f *fakeDirectory) JobExists(_ context.Context, sourceID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobs[sourceID], nil
}

func (f *fakeDirectory) CreateJob(_ context.Context, fields map[string]any, accountID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.createdJobs = append(f.createdJobs, fields)
	if sourceID, ok := fields["ID_Indeed"].(string); ok {
		f.jobs[sourceID] = true
	}
	return "job-1", nil
}

// fakeSource is an in-memory apollo.Client keyed by domain.
type fakeSource struct {
	mu          sync.Mutex
	people      map[string][]apollo.Person
	orgs        map[string]*apollo.Organization
	searchErr   error
	errDomains  map[string]error
	enrichErr   error
	searchCalls int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		people:     make(map[string][]apollo.Person),
		orgs:       make(map[string]*apollo.Organization),
		errDomains: make(map[string]error),
	}
}

func (f *fakeSource) SearchPeople(_ context.Context, domain string, perPage int, _ apollo.Filter) ([]apollo.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if err := f.errDomains[domain]; err != nil {
		return nil, err
	}
	people := f.people[domain]
	if len(people) > perPage {
		people = people[:perPage]
	}
	return people, nil
}

func (f *fakeSource) EnrichOrganization(_ context.Context, domain string) (*apollo.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enrichErr != nil {
		return nil, f.enrichErr
	}
	return f.orgs[domain], nil
}

// fakeAdmitter counts admissions and can be armed to fail.
type fakeAdmitter struct {
	mu     sync.Mutex
	admits int
	err    error
}

func (f *fakeAdmitter) Admit(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.admits++
	return nil
}

func (f *fakeAdmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.admits
}

var errBoom = eris.New("boom")
