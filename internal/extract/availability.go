package extract

import "strings"

// closedPhrase pairs a page-text marker with the reason reported upstream.
type closedPhrase struct {
	marker string
	reason string
}

var closedPhrases = []closedPhrase{
	{"position has been filled", "Position already filled"},
	{"this job is no longer available", "Job posting closed"},
	{"posting has expired", "Posting expired"},
	{"job posting is no longer active", "Job no longer active"},
	{"position is no longer open", "Position closed"},
	{"this position has been closed", "Position closed"},
	{"sorry, this job is no longer accepting applications", "No longer accepting applications"},
	{"this opportunity is no longer available", "Opportunity closed"},
	{"this vacancy has been closed", "Vacancy closed"},
	{"404 not found", "Page not found"},
	{"page not found", "Page not found"},
}

// restrictedPhrases are hard stop markers for work-authorization limits.
var restrictedPhrases = []closedPhrase{
	{"unable to sponsor", "Employer unable to sponsor visas"},
	{"cannot provide sponsorship", "No visa sponsorship provided"},
	{"no visa sponsorship", "No visa sponsorship provided"},
	{"without the need for sponsorship", "Requires existing work authorization"},
	{"will not sponsor", "Employer will not sponsor visas"},
	{"citizens only", "Citizenship requirement"},
}

// visaWarningPhrases are soft markers carried forward as a warning rather
// than a stop.
var visaWarningPhrases = []string{
	"work authorization",
	"authorized to work",
	"security clearance",
	"sponsorship may be available",
}

// CheckAvailability scans raw page text for closed-posting markers. The
// scan runs before any LLM call so dead pages never pay for normalization.
func CheckAvailability(pageText string) (unavailable bool, reason string) {
	lower := strings.ToLower(pageText)

	for _, p := range closedPhrases {
		if strings.Contains(lower, p.marker) {
			return true, p.reason
		}
	}

	// Pages with essentially no content are treated as removed.
	if len(strings.TrimSpace(pageText)) < 200 {
		return true, "No job description found - possibly removed or expired"
	}

	return false, ""
}

// CheckRestriction scans the job description for hard visa restrictions and
// soft warnings. A hard restriction stops processing; a warning is carried
// into evaluation.
func CheckRestriction(description string) (restricted bool, reason string, warning string) {
	lower := strings.ToLower(description)

	for _, p := range restrictedPhrases {
		if strings.Contains(lower, p.marker) {
			return true, p.reason, ""
		}
	}

	for _, marker := range visaWarningPhrases {
		if strings.Contains(lower, marker) {
			return false, "", "Posting mentions: " + marker
		}
	}

	return false, "", ""
}
