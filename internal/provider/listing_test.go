package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const numberedAnswer = `Here are some current openings that match your search:

1. **Senior Go Engineer at Acme Corp**
   - Location: Austin, TX
   - Job Type: Full-time
   - Salary: $150,000 - $180,000 per year
   - Key Requirements: Go, Kubernetes; PostgreSQL
   - Apply: https://acme.example/careers/123).

2. **Backend Developer - Globex**
   Globex is hiring a backend developer to build payment services.
   Requirements:
   - 3+ years of Go
   - gRPC experience
   Benefits:
   - Health insurance
   Remote, contract role paying $70/hour. See www.globex.example/jobs.

3. Platform Engineer`

func TestSplitListings(t *testing.T) {
	t.Run("numbered list drops intro", func(t *testing.T) {
		sections := splitListings(numberedAnswer)
		require.Len(t, sections, 3)
		assert.Contains(t, sections[0], "Senior Go Engineer")
		assert.NotContains(t, sections[0], "current openings")
	})

	t.Run("blank lines without numbering", func(t *testing.T) {
		sections := splitListings("Go Developer at A\nLocation: Remote\n\n\nRust Developer at B\r\nLocation: Berlin")
		require.Len(t, sections, 2)
		assert.Equal(t, "Rust Developer at B\nLocation: Berlin", sections[1])
	})
}

func TestParseListingLabeled(t *testing.T) {
	sections := splitListings(numberedAnswer)

	job, ok := parseListing(sections[0])
	require.True(t, ok)
	assert.Equal(t, "Senior Go Engineer", job.Title)
	assert.Equal(t, "Acme Corp", job.Company)
	assert.Equal(t, "Austin, TX", job.Location)
	assert.Equal(t, "Full-time", job.JobType)
	assert.Equal(t, "$150,000 - $180,000 per year", job.Salary)
	assert.Equal(t, []string{"Go", "Kubernetes", "PostgreSQL"}, job.Requirements)
	assert.Equal(t, "https://acme.example/careers/123", job.ApplicationLink)
}

func TestParseListingProse(t *testing.T) {
	sections := splitListings(numberedAnswer)

	job, ok := parseListing(sections[1])
	require.True(t, ok)
	assert.Equal(t, "Backend Developer", job.Title)
	assert.Equal(t, "Globex", job.Company)
	assert.Equal(t, []string{"3+ years of Go", "gRPC experience"}, job.Requirements)
	assert.Equal(t, []string{"Health insurance"}, job.Benefits)
	assert.Contains(t, job.Description, "payment services")
	assert.Equal(t, "Remote", job.Location)
	assert.Equal(t, "contract", job.JobType)
	assert.Equal(t, "$70/hour", job.Salary)
	assert.Equal(t, "www.globex.example/jobs", job.ApplicationLink)
}

func TestParseListingRejectsShortText(t *testing.T) {
	if _, ok := parseListing("  n/a  "); ok {
		t.Error("Expected short text to be rejected")
	}
}

func TestSplitTitleLine(t *testing.T) {
	tests := []struct {
		line    string
		title   string
		company string
	}{
		{"Data Engineer at Initech", "Data Engineer", "Initech"},
		{"Data Engineer @ Initech", "Data Engineer", "Initech"},
		{"Initech: Data Engineer", "Initech", "Data Engineer"},
		{"Lead Software Engineer Hooli", "Lead Software Engineer", "Hooli"},
		{"Platform Engineer", "Platform Engineer", ""},
		{"Something Else Entirely", "Something Else Entirely", ""},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			title, company := splitTitleLine(tt.line)
			if title != tt.title || company != tt.company {
				t.Errorf("Expected (%q, %q), got (%q, %q)", tt.title, tt.company, title, company)
			}
		})
	}
}
