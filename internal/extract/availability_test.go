package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckAvailability(t *testing.T) {
	longFiller := strings.Repeat("We are hiring engineers to build things. ", 20)

	tests := []struct {
		name       string
		pageText   string
		wantClosed bool
		wantReason string
	}{
		{
			name:       "open posting",
			pageText:   longFiller,
			wantClosed: false,
		},
		{
			name:       "filled position",
			pageText:   longFiller + " Unfortunately this position has been filled.",
			wantClosed: true,
			wantReason: "Position already filled",
		},
		{
			name:       "expired posting",
			pageText:   longFiller + " This posting has expired.",
			wantClosed: true,
			wantReason: "Posting expired",
		},
		{
			name:       "closed applications",
			pageText:   longFiller + " Sorry, this job is no longer accepting applications.",
			wantClosed: true,
			wantReason: "No longer accepting applications",
		},
		{
			name:       "case insensitive",
			pageText:   longFiller + " THIS JOB IS NO LONGER AVAILABLE",
			wantClosed: true,
			wantReason: "Job posting closed",
		},
		{
			name:       "404 page",
			pageText:   longFiller + " Error 404 Not Found.",
			wantClosed: true,
			wantReason: "Page not found",
		},
		{
			name:       "bare status code is not a marker",
			pageText:   longFiller + " Call us on +1 404 555 0100.",
			wantClosed: false,
		},
		{
			name:       "near-empty page treated as removed",
			pageText:   "Not found",
			wantClosed: true,
			wantReason: "No job description found - possibly removed or expired",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			closed, reason := CheckAvailability(tt.pageText)
			assert.Equal(t, tt.wantClosed, closed)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestCheckRestriction(t *testing.T) {
	tests := []struct {
		name           string
		description    string
		wantRestricted bool
		wantReason     string
		wantWarning    string
	}{
		{
			name:        "clean description",
			description: "Build distributed systems in Go.",
		},
		{
			name:           "hard restriction",
			description:    "We are unable to sponsor visas for this role.",
			wantRestricted: true,
			wantReason:     "Employer unable to sponsor visas",
		},
		{
			name:           "citizens only",
			description:    "Open to US Citizens Only due to contract requirements.",
			wantRestricted: true,
			wantReason:     "Citizenship requirement",
		},
		{
			name:        "soft warning",
			description: "Candidates must hold valid work authorization.",
			wantWarning: "Posting mentions: work authorization",
		},
		{
			name:           "hard restriction wins over warning",
			description:    "Work authorization required; we will not sponsor.",
			wantRestricted: true,
			wantReason:     "Employer will not sponsor visas",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restricted, reason, warning := CheckRestriction(tt.description)
			assert.Equal(t, tt.wantRestricted, restricted)
			assert.Equal(t, tt.wantReason, reason)
			assert.Equal(t, tt.wantWarning, warning)
		})
	}
}
