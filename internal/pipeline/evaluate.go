package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/jobfoundry/apply-cli/internal/model"
	"github.com/jobfoundry/apply-cli/pkg/anthropic"
)

const evaluationSystem = `You are a balanced but brutally honest hiring manager. Always return valid JSON.`

// evaluationPayload is the JSON shape returned by the evaluation call.
type evaluationPayload struct {
	MatchScore int      `json:"match_score"`
	Summary    string   `json:"summary"`
	Strengths  []string `json:"strengths"`
	Gaps       []string `json:"gaps"`
	Reasoning  string   `json:"reasoning"`
}

// evaluate scores the master resume against the job description in one LLM
// call. Extraction visa warnings flow into the prompt and back out on the
// result.
func (p *Pipeline) evaluate(ctx context.Context, job *model.ExtractedJob) (*model.Evaluation, error) {
	visa := job.VisaWarning
	if visa == "" {
		visa = "None detected (assume eligible/possible)"
	}

	var prompt strings.Builder
	prompt.WriteString("Evaluate this candidate's MASTER resume against the job description with professional, data-driven judgment.\n\n")
	prompt.WriteString("CANDIDATE CONTEXT:\n")
	if p.cfg.CandidateContext != "" {
		prompt.WriteString("- " + p.cfg.CandidateContext + "\n")
	}
	prompt.WriteString("- This is the MASTER resume (not yet tailored). Do NOT penalize the score for it being generic or long; judge whether the candidate has the required skills and experience.\n")
	prompt.WriteString("- VISA STATUS: " + visa + "\n\n")
	prompt.WriteString("MASTER RESUME:\n" + p.cfg.MasterResume + "\n\n")
	prompt.WriteString("JOB DESCRIPTION:\n" + job.Description + "\n\n")
	prompt.WriteString(`Return ONLY valid JSON in this exact structure:
{
  "match_score": <integer 0-100>,
  "summary": "brief 1-2 sentence honest assessment of fit",
  "strengths": ["specific strength", ...],
  "gaps": ["specific gap", ...],
  "reasoning": "why this specific score"
}

SCORING GUIDELINES:
- 90-100: candidate has ALL critical skills and experience required.
- 80-89: candidate has MOST critical skills; gaps are minor or learnable.
- 60-79: moderate fit; some key requirements missing.
- below 60: major misalignment.
- If the job requires citizenship, a green card, or clearance the candidate lacks, the score MUST be below 50 regardless of skills.

Be decisive. Use the full range.`)

	resp, err := p.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     p.cfg.EvalModel,
		MaxTokens: 2048,
		System: []anthropic.SystemBlock{
			{Text: evaluationSystem},
		},
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt.String()},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "evaluate: llm call")
	}
	resp.Usage.LogUsage(p.cfg.EvalModel, "evaluate")

	var payload evaluationPayload
	if err := json.Unmarshal([]byte(anthropic.CleanJSON(resp.Text())), &payload); err != nil {
		return nil, eris.Wrap(err, "evaluate: parse response")
	}
	if payload.MatchScore < 0 || payload.MatchScore > 100 {
		return nil, eris.New(fmt.Sprintf("evaluate: score %d out of range", payload.MatchScore))
	}

	eval := &model.Evaluation{
		Score:     payload.MatchScore,
		Strengths: payload.Strengths,
		Gaps:      payload.Gaps,
		Narrative: payload.Summary,
	}
	if job.VisaWarning != "" {
		eval.VisaWarning = job.VisaWarning
	}
	return eval, nil
}
