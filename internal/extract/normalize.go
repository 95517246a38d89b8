package extract

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/jobfoundry/apply-cli/internal/model"
	"github.com/jobfoundry/apply-cli/pkg/anthropic"
)

const normalizationSystem = `You extract job posting data from raw page text.

Find and extract:
- Job title (e.g. "Software Engineer", "Product Manager")
- Company name
- Location (city, country, or "Remote")
- Work arrangement: Remote, Hybrid, or Onsite
- The full job description: responsibilities, requirements, benefits

Clean the description: drop navigation menus, headers, footers, "Apply now"
buttons, cookie banners, and tracking boilerplate. Keep the complete
description intact, preserving markdown formatting and bullet points.

Respond with a single JSON object:
{
  "job_title": "...",
  "company_name": "...",
  "location": "..." or null,
  "work_mode": "Remote" | "Hybrid" | "Onsite" | null,
  "job_description": "..."
}`

// normalizedPayload is the JSON shape returned by the normalization call.
type normalizedPayload struct {
	JobTitle       string `json:"job_title"`
	CompanyName    string `json:"company_name"`
	Location       string `json:"location"`
	WorkMode       string `json:"work_mode"`
	JobDescription string `json:"job_description"`
}

// normalizeJob runs one LLM call turning raw page text into a normalized
// job record. Parse failures are content errors (recoverable upstream).
func normalizeJob(ctx context.Context, llm anthropic.Client, llmModel, url, pageText string) (*model.ExtractedJob, anthropic.TokenUsage, error) {
	var usage anthropic.TokenUsage

	resp, err := llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     llmModel,
		MaxTokens: 4096,
		System: []anthropic.SystemBlock{
			{Text: normalizationSystem},
		},
		Messages: []anthropic.Message{
			{Role: "user", Content: "Page URL: " + url + "\n\nPage text:\n\n" + pageText},
		},
	})
	if err != nil {
		return nil, usage, eris.Wrap(err, "extract: normalization call")
	}
	usage = resp.Usage

	var payload normalizedPayload
	cleaned := anthropic.CleanJSON(resp.Text())
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, usage, Technical(KindContent, "normalization returned unparseable JSON", err)
	}

	return &model.ExtractedJob{
		URL:         url,
		Title:       strings.TrimSpace(payload.JobTitle),
		Company:     strings.TrimSpace(payload.CompanyName),
		Description: strings.TrimSpace(payload.JobDescription),
		Location:    strings.TrimSpace(payload.Location),
		WorkMode:    strings.TrimSpace(payload.WorkMode),
	}, usage, nil
}
