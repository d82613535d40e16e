package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractDomain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"full url with query", "https://www.Example.com/careers?x=1", "example.com"},
		{"http scheme", "http://acme.io", "acme.io"},
		{"no scheme", "acme.io/about", "acme.io"},
		{"www only", "www.acme.io", "acme.io"},
		{"fragment", "https://acme.io#team", "acme.io"},
		{"query before path", "https://acme.io?utm=1", "acme.io"},
		{"surrounding whitespace", "  https://acme.io  ", "acme.io"},
		{"subdomain kept", "https://jobs.acme.io", "jobs.acme.io"},
		{"no dot", "abc", ""},
		{"too short", "a.b", ""},
		{"empty", "", ""},
		{"scheme only", "https://", ""},
		{"bare slash", "/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractDomain(tt.in))
		})
	}
}
